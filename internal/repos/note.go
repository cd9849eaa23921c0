package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mindpal/mindpal-backend/internal/logger"
	"github.com/mindpal/mindpal-backend/internal/types"
)

type NoteRepo interface {
	Create(ctx context.Context, tx *gorm.DB, notes []*types.Note) ([]*types.Note, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Note, error)
	// LockByID takes a row lock on the note so append-next-version never races
	// with itself. Requires a caller transaction.
	LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Note, error)
	GetByPatient(ctx context.Context, tx *gorm.DB, patientID uuid.UUID, kind *types.NoteKind) ([]*types.Note, error)
	GetByParentID(ctx context.Context, tx *gorm.DB, parentID uuid.UUID) ([]*types.Note, error)
	CountByPatientAndKind(ctx context.Context, tx *gorm.DB, patientID uuid.UUID, kind types.NoteKind) (int64, error)
	CountByParentID(ctx context.Context, tx *gorm.DB, parentID uuid.UUID) (int64, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type noteRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNoteRepo(db *gorm.DB, baseLog *logger.Logger) NoteRepo {
	repoLog := baseLog.With("repo", "NoteRepo")
	return &noteRepo{db: db, log: repoLog}
}

func (nr *noteRepo) Create(ctx context.Context, tx *gorm.DB, notes []*types.Note) ([]*types.Note, error) {
	transaction := tx
	if transaction == nil {
		transaction = nr.db
	}
	if len(notes) == 0 {
		return []*types.Note{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

func (nr *noteRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Note, error) {
	transaction := tx
	if transaction == nil {
		transaction = nr.db
	}
	var results []*types.Note
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

func (nr *noteRepo) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Note, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	if tx == nil {
		return nil, fmt.Errorf("LockByID requires a transaction")
	}
	var out types.Note
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (nr *noteRepo) GetByPatient(ctx context.Context, tx *gorm.DB, patientID uuid.UUID, kind *types.NoteKind) ([]*types.Note, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("missing patient_id")
	}
	transaction := tx
	if transaction == nil {
		transaction = nr.db
	}
	q := transaction.WithContext(ctx).
		Model(&types.Note{}).
		Where("patient_id = ?", patientID)
	if kind != nil {
		q = q.Where("kind = ?", *kind)
	}
	var results []*types.Note
	if err := q.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (nr *noteRepo) GetByParentID(ctx context.Context, tx *gorm.DB, parentID uuid.UUID) ([]*types.Note, error) {
	if parentID == uuid.Nil {
		return nil, fmt.Errorf("missing parent_note_id")
	}
	transaction := tx
	if transaction == nil {
		transaction = nr.db
	}
	var results []*types.Note
	if err := transaction.WithContext(ctx).
		Model(&types.Note{}).
		Where("parent_note_id = ?", parentID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (nr *noteRepo) CountByPatientAndKind(ctx context.Context, tx *gorm.DB, patientID uuid.UUID, kind types.NoteKind) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = nr.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Note{}).
		Where("patient_id = ? AND kind = ?", patientID, kind).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (nr *noteRepo) CountByParentID(ctx context.Context, tx *gorm.DB, parentID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = nr.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Note{}).
		Where("parent_note_id = ?", parentID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (nr *noteRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	transaction := tx
	if transaction == nil {
		transaction = nr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Note{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (nr *noteRepo) DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	transaction := tx
	if transaction == nil {
		transaction = nr.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.Note{}).Error
}
