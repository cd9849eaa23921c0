package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mindpal/mindpal-backend/internal/logger"
	"github.com/mindpal/mindpal-backend/internal/types"
)

type SplitRunRepo interface {
	Create(ctx context.Context, tx *gorm.DB, runs []*types.SplitRun) ([]*types.SplitRun, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.SplitRun, error)
	GetByParentID(ctx context.Context, tx *gorm.DB, parentID uuid.UUID) ([]*types.SplitRun, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type splitRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSplitRunRepo(db *gorm.DB, baseLog *logger.Logger) SplitRunRepo {
	repoLog := baseLog.With("repo", "SplitRunRepo")
	return &splitRunRepo{db: db, log: repoLog}
}

func (sr *splitRunRepo) Create(ctx context.Context, tx *gorm.DB, runs []*types.SplitRun) ([]*types.SplitRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	if len(runs) == 0 {
		return []*types.SplitRun{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (sr *splitRunRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.SplitRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var results []*types.SplitRun
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (sr *splitRunRepo) GetByParentID(ctx context.Context, tx *gorm.DB, parentID uuid.UUID) ([]*types.SplitRun, error) {
	if parentID == uuid.Nil {
		return nil, fmt.Errorf("missing parent_note_id")
	}
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var results []*types.SplitRun
	if err := transaction.WithContext(ctx).
		Model(&types.SplitRun{}).
		Where("parent_note_id = ?", parentID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (sr *splitRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.SplitRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}
