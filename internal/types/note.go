package types

import (
	"time"

	"github.com/google/uuid"
)

type NoteKind string

const (
	NoteKindConceptualization NoteKind = "conceptualization"
	NoteKindFollowup          NoteKind = "followup"
	NoteKindSplit             NoteKind = "split"
)

func (k NoteKind) Valid() bool {
	switch k {
	case NoteKindConceptualization, NoteKindFollowup, NoteKindSplit:
		return true
	}
	return false
}

// Note is a clinical document. Its content mirrors the newest NoteVersion
// verbatim, and CurrentVersion always equals that version's number.
type Note struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	PatientID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"patient_id"`
	AuthorID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"author_id"`
	ParentNoteID *uuid.UUID `gorm:"type:uuid;column:parent_note_id;index" json:"parent_note_id,omitempty"`

	Kind            NoteKind `gorm:"column:kind;type:text;not null;index" json:"kind"`
	Title           string   `gorm:"column:title;not null" json:"title"`
	ContentMarkdown string   `gorm:"column:content_markdown;type:text;not null" json:"content_markdown"`
	CurrentVersion  int      `gorm:"column:current_version;not null;default:1" json:"current_version"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Note) TableName() string { return "note" }

// NoteListItem is the list-view projection with the per-note version count.
type NoteListItem struct {
	ID           uuid.UUID  `json:"id"`
	PatientID    uuid.UUID  `json:"patient_id"`
	AuthorID     uuid.UUID  `json:"author_id"`
	ParentNoteID *uuid.UUID `json:"parent_note_id,omitempty"`
	Kind         NoteKind   `json:"kind"`
	Title        string     `json:"title"`
	VersionCount int        `json:"version_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
