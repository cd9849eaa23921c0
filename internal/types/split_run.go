package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SplitMode string

const (
	SplitModeDefaults SplitMode = "defaults"
	SplitModeCustom   SplitMode = "custom"
	SplitModeInferred SplitMode = "inferred"
)

func (m SplitMode) Valid() bool {
	switch m {
	case SplitModeDefaults, SplitModeCustom, SplitModeInferred:
		return true
	}
	return false
}

type SplitRunStatus string

const (
	SplitRunPending    SplitRunStatus = "pending"
	SplitRunResolving  SplitRunStatus = "resolving"
	SplitRunGenerating SplitRunStatus = "generating"
	// SplitRunCompleted is terminal; the run may still carry per-category
	// failures since sibling creation is not transactional across children.
	SplitRunCompleted SplitRunStatus = "completed"
	// SplitRunFailed is terminal and only reachable before any child exists.
	SplitRunFailed SplitRunStatus = "failed"
)

// SplitRun records one split-generation invocation against a
// conceptualization note.
type SplitRun struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ParentNoteID uuid.UUID `gorm:"type:uuid;not null;index" json:"parent_note_id"`
	RequestedBy  uuid.UUID `gorm:"type:uuid;not null" json:"requested_by"`

	Mode   SplitMode      `gorm:"column:mode;type:text;not null" json:"mode"`
	Status SplitRunStatus `gorm:"column:status;type:text;not null;default:'pending';index" json:"status"`

	Categories   datatypes.JSON `gorm:"column:categories;type:jsonb" json:"categories,omitempty"`
	ChildNoteIDs datatypes.JSON `gorm:"column:child_note_ids;type:jsonb" json:"child_note_ids,omitempty"`
	Failures     datatypes.JSON `gorm:"column:failures;type:jsonb" json:"failures,omitempty"`
	Error        string         `gorm:"column:error" json:"error,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (SplitRun) TableName() string { return "split_run" }

// CategoryFailure is one per-category failure inside a completed run,
// serialized into SplitRun.Failures.
type CategoryFailure struct {
	Category string `json:"category"`
	Error    string `json:"error"`
}
