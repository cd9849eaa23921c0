package repos

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mindpal/mindpal-backend/internal/logger"
	"github.com/mindpal/mindpal-backend/internal/types"
)

// NoteVersionRepo is append-only apart from DeleteByNoteID, which exists so a
// note's full history can be removed together with the note itself.
type NoteVersionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, versions []*types.NoteVersion) ([]*types.NoteVersion, error)
	GetByNoteID(ctx context.Context, tx *gorm.DB, noteID uuid.UUID) ([]*types.NoteVersion, error)
	GetByNoteAndNumber(ctx context.Context, tx *gorm.DB, noteID uuid.UUID, versionNumber int) (*types.NoteVersion, error)
	CountByNoteIDs(ctx context.Context, tx *gorm.DB, noteIDs []uuid.UUID) (map[uuid.UUID]int, error)
	DeleteByNoteID(ctx context.Context, tx *gorm.DB, noteID uuid.UUID) error
}

type noteVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNoteVersionRepo(db *gorm.DB, baseLog *logger.Logger) NoteVersionRepo {
	repoLog := baseLog.With("repo", "NoteVersionRepo")
	return &noteVersionRepo{db: db, log: repoLog}
}

func (vr *noteVersionRepo) Create(ctx context.Context, tx *gorm.DB, versions []*types.NoteVersion) ([]*types.NoteVersion, error) {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	if len(versions) == 0 {
		return []*types.NoteVersion{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&versions).Error; err != nil {
		return nil, err
	}
	return versions, nil
}

func (vr *noteVersionRepo) GetByNoteID(ctx context.Context, tx *gorm.DB, noteID uuid.UUID) ([]*types.NoteVersion, error) {
	if noteID == uuid.Nil {
		return nil, fmt.Errorf("missing note_id")
	}
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	var results []*types.NoteVersion
	if err := transaction.WithContext(ctx).
		Model(&types.NoteVersion{}).
		Where("note_id = ?", noteID).
		Order("version_number ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (vr *noteVersionRepo) GetByNoteAndNumber(ctx context.Context, tx *gorm.DB, noteID uuid.UUID, versionNumber int) (*types.NoteVersion, error) {
	if noteID == uuid.Nil {
		return nil, fmt.Errorf("missing note_id")
	}
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	var out types.NoteVersion
	if err := transaction.WithContext(ctx).
		Where("note_id = ? AND version_number = ?", noteID, versionNumber).
		Take(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (vr *noteVersionRepo) CountByNoteIDs(ctx context.Context, tx *gorm.DB, noteIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(noteIDs))
	if len(noteIDs) == 0 {
		return out, nil
	}
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	var rows []struct {
		NoteID uuid.UUID
		Count  int
	}
	if err := transaction.WithContext(ctx).
		Model(&types.NoteVersion{}).
		Select("note_id, COUNT(*) as count").
		Where("note_id IN ?", noteIDs).
		Group("note_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.NoteID] = r.Count
	}
	return out, nil
}

func (vr *noteVersionRepo) DeleteByNoteID(ctx context.Context, tx *gorm.DB, noteID uuid.UUID) error {
	if noteID == uuid.Nil {
		return fmt.Errorf("missing note_id")
	}
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	return transaction.WithContext(ctx).
		Where("note_id = ?", noteID).
		Delete(&types.NoteVersion{}).Error
}
