package types

import (
	"time"

	"github.com/google/uuid"
)

// NoteVersion is an immutable snapshot of a note's content. Version numbers
// for a note form a contiguous sequence from 1; rows are never updated or
// deleted while the note lives.
type NoteVersion struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	NoteID   uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_note_version_number,priority:1" json:"note_id"`
	Note     *Note     `gorm:"constraint:OnDelete:CASCADE;foreignKey:NoteID;references:ID" json:"-"`
	EditorID uuid.UUID `gorm:"type:uuid;not null" json:"editor_id"`

	ContentMarkdown string `gorm:"column:content_markdown;type:text;not null" json:"content_markdown"`
	VersionNumber   int    `gorm:"column:version_number;not null;uniqueIndex:idx_note_version_number,priority:2" json:"version_number"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (NoteVersion) TableName() string { return "note_version" }
