package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mindpal/mindpal-backend/internal/logger"
	"github.com/mindpal/mindpal-backend/internal/types"
	"github.com/mindpal/mindpal-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	log.Info("Loading environment variables...")
	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "mindpal", log)
	log.Debug("Environment variables loaded")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	log.Info("Connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("Failed to connect to Postgres: %w", err)
	}

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		log.Error("Failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("Failed to enable uuid-ossp extension: %w", err)
	}
	log.Info("uuid-ossp extension enabled")

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.Note{},
		&types.NoteVersion{},
		&types.SplitRun{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}
	s.log.Info("Configuring foreign key relationships for postgres tables...")
	if err := s.addForeignKey("fk_note_version_note_id", `
		ALTER TABLE "note_version"
		ADD CONSTRAINT "fk_note_version_note_id"
		FOREIGN KEY ("note_id")
		REFERENCES "note"("id")
		ON DELETE CASCADE
	`); err != nil {
		return err
	}
	// parent_note_id is a back-reference only: deleting a parent must never
	// cascade into its split children.
	if err := s.addForeignKey("fk_note_parent_note_id", `
		ALTER TABLE "note"
		ADD CONSTRAINT "fk_note_parent_note_id"
		FOREIGN KEY ("parent_note_id")
		REFERENCES "note"("id")
		ON DELETE SET NULL
	`); err != nil {
		return err
	}
	return nil
}

// addForeignKey adds a named constraint only when it does not already exist,
// keeping AutoMigrateAll safe to run on every boot.
func (s *PostgresService) addForeignKey(name, ddl string) error {
	var count int64
	if err := s.db.Raw(`SELECT COUNT(*) FROM pg_constraint WHERE conname = ?`, name).Scan(&count).Error; err != nil {
		return fmt.Errorf("Failed to check for constraint %s: %w", name, err)
	}
	if count > 0 {
		return nil
	}
	if err := s.db.Exec(ddl).Error; err != nil {
		return fmt.Errorf("Failed to add %s: %w", name, err)
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
