package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mindpal/mindpal-backend/internal/logger"
	"github.com/mindpal/mindpal-backend/internal/noteerr"
	"github.com/mindpal/mindpal-backend/internal/repos"
	"github.com/mindpal/mindpal-backend/internal/sse"
	"github.com/mindpal/mindpal-backend/internal/ssedata"
	"github.com/mindpal/mindpal-backend/internal/types"
)

// NoteService mediates every mutation to a note so the version invariant
// always holds: the note row mirrors its newest version, and version numbers
// per note are contiguous from 1.
type NoteService interface {
	Create(ctx context.Context, tx *gorm.DB, in CreateNoteInput) (*types.Note, error)
	Get(ctx context.Context, tx *gorm.DB, noteID uuid.UUID) (*types.Note, error)
	ListByPatient(ctx context.Context, tx *gorm.DB, patientID uuid.UUID, kind *types.NoteKind) ([]*types.NoteListItem, error)
	Update(ctx context.Context, tx *gorm.DB, noteID, editorID uuid.UUID, title, content *string) (*types.Note, error)
	Restore(ctx context.Context, tx *gorm.DB, noteID, editorID uuid.UUID, versionNumber int) (*types.Note, error)
	Delete(ctx context.Context, tx *gorm.DB, noteID uuid.UUID) error
	ListVersions(ctx context.Context, tx *gorm.DB, noteID uuid.UUID) ([]*types.NoteVersion, error)
	ListSplits(ctx context.Context, tx *gorm.DB, parentNoteID uuid.UUID) ([]*types.Note, error)
}

type CreateNoteInput struct {
	PatientID    uuid.UUID
	AuthorID     uuid.UUID
	Kind         types.NoteKind
	Title        string
	Content      string
	ParentNoteID *uuid.UUID
}

type noteService struct {
	db          *gorm.DB
	log         *logger.Logger
	noteRepo    repos.NoteRepo
	versionRepo repos.NoteVersionRepo
}

func NewNoteService(
	db *gorm.DB,
	baseLog *logger.Logger,
	noteRepo repos.NoteRepo,
	versionRepo repos.NoteVersionRepo,
) NoteService {
	serviceLog := baseLog.With("service", "NoteService")
	return &noteService{
		db:          db,
		log:         serviceLog,
		noteRepo:    noteRepo,
		versionRepo: versionRepo,
	}
}

// inTx joins the caller's transaction when one is supplied, otherwise opens
// its own. Note+version writes must be all-or-nothing either way.
func (ns *noteService) inTx(ctx context.Context, tx *gorm.DB, fn func(tx *gorm.DB) error) error {
	if tx != nil {
		return fn(tx)
	}
	return ns.db.WithContext(ctx).Transaction(fn)
}

func (ns *noteService) Create(ctx context.Context, tx *gorm.DB, in CreateNoteInput) (*types.Note, error) {
	if in.PatientID == uuid.Nil {
		return nil, noteerr.Validation("patient_id is required")
	}
	if in.AuthorID == uuid.Nil {
		return nil, noteerr.Validation("author_id is required")
	}
	if !in.Kind.Valid() {
		return nil, noteerr.Validation("kind must be one of: conceptualization, followup, split")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, noteerr.Validation("title is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, noteerr.Validation("content is required")
	}
	if in.Kind == types.NoteKindSplit && in.ParentNoteID == nil {
		return nil, noteerr.Validation("parent_note_id is required for split notes")
	}
	if in.Kind != types.NoteKindSplit && in.ParentNoteID != nil {
		return nil, noteerr.Validation("parent_note_id is only allowed for split notes")
	}

	var note *types.Note
	err := ns.inTx(ctx, tx, func(tx *gorm.DB) error {
		if in.Kind == types.NoteKindConceptualization {
			count, err := ns.noteRepo.CountByPatientAndKind(ctx, tx, in.PatientID, types.NoteKindConceptualization)
			if err != nil {
				return noteerr.Storage("count conceptualizations", err)
			}
			if count > 0 {
				return noteerr.Validation("patient already has a conceptualization note")
			}
		}
		if in.Kind == types.NoteKindSplit {
			parents, err := ns.noteRepo.GetByIDs(ctx, tx, []uuid.UUID{*in.ParentNoteID})
			if err != nil {
				return noteerr.Storage("load parent note", err)
			}
			if len(parents) == 0 {
				return noteerr.NotFound("note", "parent note %s not found", *in.ParentNoteID)
			}
			if parents[0].Kind != types.NoteKindConceptualization {
				return noteerr.InvalidKind(string(parents[0].Kind), "parent note must be a conceptualization note")
			}
		}

		now := time.Now().UTC()
		note = &types.Note{
			ID:              uuid.New(),
			PatientID:       in.PatientID,
			AuthorID:        in.AuthorID,
			ParentNoteID:    in.ParentNoteID,
			Kind:            in.Kind,
			Title:           in.Title,
			ContentMarkdown: in.Content,
			CurrentVersion:  1,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if _, err := ns.noteRepo.Create(ctx, tx, []*types.Note{note}); err != nil {
			return noteerr.Storage("create note", err)
		}
		version := &types.NoteVersion{
			ID:              uuid.New(),
			NoteID:          note.ID,
			EditorID:        in.AuthorID,
			ContentMarkdown: in.Content,
			VersionNumber:   1,
			CreatedAt:       now,
		}
		if _, err := ns.versionRepo.Create(ctx, tx, []*types.NoteVersion{version}); err != nil {
			return noteerr.Storage("create note version", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ns.appendEvent(ctx, note.PatientID, sse.SSEEventNoteCreated, map[string]interface{}{"note": note})
	return note, nil
}

func (ns *noteService) Get(ctx context.Context, tx *gorm.DB, noteID uuid.UUID) (*types.Note, error) {
	notes, err := ns.noteRepo.GetByIDs(ctx, tx, []uuid.UUID{noteID})
	if err != nil {
		return nil, noteerr.Storage("load note", err)
	}
	if len(notes) == 0 {
		return nil, noteerr.NotFound("note", "note %s not found", noteID)
	}
	return notes[0], nil
}

func (ns *noteService) ListByPatient(ctx context.Context, tx *gorm.DB, patientID uuid.UUID, kind *types.NoteKind) ([]*types.NoteListItem, error) {
	if patientID == uuid.Nil {
		return nil, noteerr.Validation("patient_id is required")
	}
	if kind != nil && !kind.Valid() {
		return nil, noteerr.Validation("unknown note kind %q", *kind)
	}
	notes, err := ns.noteRepo.GetByPatient(ctx, tx, patientID, kind)
	if err != nil {
		return nil, noteerr.Storage("list notes", err)
	}
	ids := make([]uuid.UUID, 0, len(notes))
	for _, n := range notes {
		ids = append(ids, n.ID)
	}
	counts, err := ns.versionRepo.CountByNoteIDs(ctx, tx, ids)
	if err != nil {
		return nil, noteerr.Storage("count versions", err)
	}
	items := make([]*types.NoteListItem, 0, len(notes))
	for _, n := range notes {
		items = append(items, &types.NoteListItem{
			ID:           n.ID,
			PatientID:    n.PatientID,
			AuthorID:     n.AuthorID,
			ParentNoteID: n.ParentNoteID,
			Kind:         n.Kind,
			Title:        n.Title,
			VersionCount: counts[n.ID],
			CreatedAt:    n.CreatedAt,
			UpdatedAt:    n.UpdatedAt,
		})
	}
	return items, nil
}

func (ns *noteService) Update(ctx context.Context, tx *gorm.DB, noteID, editorID uuid.UUID, title, content *string) (*types.Note, error) {
	if editorID == uuid.Nil {
		return nil, noteerr.Validation("editor_id is required")
	}
	if title != nil && strings.TrimSpace(*title) == "" {
		return nil, noteerr.Validation("title must not be empty")
	}
	if content != nil && strings.TrimSpace(*content) == "" {
		return nil, noteerr.Validation("content must not be empty")
	}

	var note *types.Note
	var changed bool
	err := ns.inTx(ctx, tx, func(tx *gorm.DB) error {
		var err error
		note, err = ns.lockNote(ctx, tx, noteID)
		if err != nil {
			return err
		}

		newTitle := note.Title
		if title != nil {
			newTitle = *title
		}
		newContent := note.ContentMarkdown
		if content != nil {
			newContent = *content
		}
		// Idempotent save: same title and content appends nothing.
		if newTitle == note.Title && newContent == note.ContentMarkdown {
			return nil
		}
		changed = true
		return ns.appendVersion(ctx, tx, note, editorID, newTitle, newContent)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		ns.appendEvent(ctx, note.PatientID, sse.SSEEventNoteUpdated, map[string]interface{}{"note": note})
	}
	return note, nil
}

func (ns *noteService) Restore(ctx context.Context, tx *gorm.DB, noteID, editorID uuid.UUID, versionNumber int) (*types.Note, error) {
	if editorID == uuid.Nil {
		return nil, noteerr.Validation("editor_id is required")
	}
	if versionNumber < 1 {
		return nil, noteerr.Validation("version number must be positive")
	}

	var note *types.Note
	err := ns.inTx(ctx, tx, func(tx *gorm.DB) error {
		var err error
		note, err = ns.lockNote(ctx, tx, noteID)
		if err != nil {
			return err
		}
		if versionNumber == note.CurrentVersion {
			return noteerr.NoOp("version %d is already current", versionNumber)
		}
		version, err := ns.versionRepo.GetByNoteAndNumber(ctx, tx, noteID, versionNumber)
		if err != nil {
			return noteerr.Storage("load version", err)
		}
		if version == nil {
			return noteerr.NotFound("version", "version %d not found for note %s", versionNumber, noteID)
		}
		// Restore grows history forward: the old content becomes the new
		// head version, nothing is rewritten or renumbered.
		return ns.appendVersion(ctx, tx, note, editorID, note.Title, version.ContentMarkdown)
	})
	if err != nil {
		return nil, err
	}

	ns.appendEvent(ctx, note.PatientID, sse.SSEEventNoteRestored, map[string]interface{}{
		"note":             note,
		"restored_version": versionNumber,
	})
	return note, nil
}

func (ns *noteService) Delete(ctx context.Context, tx *gorm.DB, noteID uuid.UUID) error {
	var patientID uuid.UUID
	err := ns.inTx(ctx, tx, func(tx *gorm.DB) error {
		note, err := ns.lockNote(ctx, tx, noteID)
		if err != nil {
			return err
		}
		patientID = note.PatientID
		if note.Kind == types.NoteKindConceptualization {
			count, err := ns.noteRepo.CountByParentID(ctx, tx, noteID)
			if err != nil {
				return noteerr.Storage("count split notes", err)
			}
			if count > 0 {
				return noteerr.Validation("cannot delete conceptualization note with %d split notes", count)
			}
		}
		if err := ns.versionRepo.DeleteByNoteID(ctx, tx, noteID); err != nil {
			return noteerr.Storage("delete versions", err)
		}
		if err := ns.noteRepo.DeleteByID(ctx, tx, noteID); err != nil {
			return noteerr.Storage("delete note", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	ns.appendEvent(ctx, patientID, sse.SSEEventNoteDeleted, map[string]interface{}{"note_id": noteID})
	return nil
}

func (ns *noteService) ListVersions(ctx context.Context, tx *gorm.DB, noteID uuid.UUID) ([]*types.NoteVersion, error) {
	if _, err := ns.Get(ctx, tx, noteID); err != nil {
		return nil, err
	}
	versions, err := ns.versionRepo.GetByNoteID(ctx, tx, noteID)
	if err != nil {
		return nil, noteerr.Storage("list versions", err)
	}
	return versions, nil
}

func (ns *noteService) ListSplits(ctx context.Context, tx *gorm.DB, parentNoteID uuid.UUID) ([]*types.Note, error) {
	parent, err := ns.Get(ctx, tx, parentNoteID)
	if err != nil {
		return nil, err
	}
	if parent.Kind != types.NoteKindConceptualization {
		return nil, noteerr.InvalidKind(string(parent.Kind), "note %s is not a conceptualization", parentNoteID)
	}
	splits, err := ns.noteRepo.GetByParentID(ctx, tx, parentNoteID)
	if err != nil {
		return nil, noteerr.Storage("list splits", err)
	}
	return splits, nil
}

// lockNote row-locks the note so read-current-version then append-next is
// serialized per note. Distinct notes never contend.
func (ns *noteService) lockNote(ctx context.Context, tx *gorm.DB, noteID uuid.UUID) (*types.Note, error) {
	if noteID == uuid.Nil {
		return nil, noteerr.Validation("note_id is required")
	}
	note, err := ns.noteRepo.LockByID(ctx, tx, noteID)
	if err != nil {
		return nil, noteerr.Storage("lock note", err)
	}
	if note == nil {
		return nil, noteerr.NotFound("note", "note %s not found", noteID)
	}
	return note, nil
}

func (ns *noteService) appendVersion(ctx context.Context, tx *gorm.DB, note *types.Note, editorID uuid.UUID, newTitle, newContent string) error {
	now := time.Now().UTC()
	next := note.CurrentVersion + 1
	version := &types.NoteVersion{
		ID:              uuid.New(),
		NoteID:          note.ID,
		EditorID:        editorID,
		ContentMarkdown: newContent,
		VersionNumber:   next,
		CreatedAt:       now,
	}
	if _, err := ns.versionRepo.Create(ctx, tx, []*types.NoteVersion{version}); err != nil {
		return noteerr.Storage("append version", err)
	}
	if err := ns.noteRepo.UpdateFields(ctx, tx, note.ID, map[string]interface{}{
		"title":            newTitle,
		"content_markdown": newContent,
		"current_version":  next,
	}); err != nil {
		return noteerr.Storage("update note head", err)
	}
	note.Title = newTitle
	note.ContentMarkdown = newContent
	note.CurrentVersion = next
	note.UpdatedAt = now
	return nil
}

func (ns *noteService) appendEvent(ctx context.Context, patientID uuid.UUID, event sse.SSEEvent, data map[string]interface{}) {
	ssd := ssedata.GetSSEData(ctx)
	if ssd == nil {
		ns.log.Debug("No SSEData in context; skipping event append", "event", event)
		return
	}
	ssd.AppendMessage(sse.SSEMessage{
		Channel: patientID.String(),
		Event:   event,
		Data:    data,
	})
}
