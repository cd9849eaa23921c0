package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mindpal/mindpal-backend/internal/logger"
	"github.com/mindpal/mindpal-backend/internal/noteerr"
	"github.com/mindpal/mindpal-backend/internal/repos"
	"github.com/mindpal/mindpal-backend/internal/types"
)

// splitFanOutLimit bounds concurrent child creation within one run.
const splitFanOutLimit = 4

// SplitService derives a set of categorized child notes from a
// conceptualization note. A run is additive: it never inspects or removes
// the children of earlier runs, and sibling failures never roll back
// already-created children.
type SplitService interface {
	Generate(ctx context.Context, tx *gorm.DB, parentNoteID, requestedBy uuid.UUID, mode types.SplitMode, custom []string) (*types.SplitRun, error)
	GetRun(ctx context.Context, tx *gorm.DB, runID uuid.UUID) (*types.SplitRun, error)
	ListRuns(ctx context.Context, tx *gorm.DB, parentNoteID uuid.UUID) ([]*types.SplitRun, error)
}

type splitService struct {
	db          *gorm.DB
	log         *logger.Logger
	noteService NoteService
	resolver    CategoryResolver
	runRepo     repos.SplitRunRepo
	notifier    SplitNotifier
}

func NewSplitService(
	db *gorm.DB,
	baseLog *logger.Logger,
	noteService NoteService,
	resolver CategoryResolver,
	runRepo repos.SplitRunRepo,
	notifier SplitNotifier,
) SplitService {
	serviceLog := baseLog.With("service", "SplitService")
	return &splitService{
		db:          db,
		log:         serviceLog,
		noteService: noteService,
		resolver:    resolver,
		runRepo:     runRepo,
		notifier:    notifier,
	}
}

func (ss *splitService) Generate(ctx context.Context, tx *gorm.DB, parentNoteID, requestedBy uuid.UUID, mode types.SplitMode, custom []string) (*types.SplitRun, error) {
	if requestedBy == uuid.Nil {
		return nil, noteerr.Validation("requested_by is required")
	}
	if !mode.Valid() {
		return nil, noteerr.Validation("unknown generation mode %q", mode)
	}

	parent, err := ss.noteService.Get(ctx, tx, parentNoteID)
	if err != nil {
		return nil, err
	}
	if parent.Kind != types.NoteKindConceptualization {
		return nil, noteerr.InvalidKind(string(parent.Kind), "only conceptualization notes may be split")
	}

	run := &types.SplitRun{
		ID:           uuid.New(),
		ParentNoteID: parent.ID,
		RequestedBy:  requestedBy,
		Mode:         mode,
		Status:       types.SplitRunPending,
	}
	if _, err := ss.runRepo.Create(ctx, tx, []*types.SplitRun{run}); err != nil {
		return nil, noteerr.Storage("create split run", err)
	}
	ss.notifier.RunStarted(ctx, parent.PatientID, run)

	ss.updateRun(ctx, tx, run, map[string]interface{}{"status": types.SplitRunResolving})
	run.Status = types.SplitRunResolving

	categories, err := ss.resolver.Resolve(ctx, mode, parent.ContentMarkdown, custom)
	if err != nil {
		// Failure is terminal only here, before any child exists.
		ss.updateRun(ctx, tx, run, map[string]interface{}{
			"status": types.SplitRunFailed,
			"error":  err.Error(),
		})
		run.Status = types.SplitRunFailed
		run.Error = err.Error()
		ss.notifier.RunFailed(ctx, parent.PatientID, run, err.Error())
		return nil, err
	}

	categoriesJSON, _ := json.Marshal(categories)
	ss.updateRun(ctx, tx, run, map[string]interface{}{
		"status":     types.SplitRunGenerating,
		"categories": datatypes.JSON(categoriesJSON),
	})
	run.Status = types.SplitRunGenerating
	run.Categories = datatypes.JSON(categoriesJSON)

	childIDs, failures := ss.generateChildren(ctx, parent, requestedBy, run, categories)

	childIDsJSON, _ := json.Marshal(childIDs)
	failuresJSON, _ := json.Marshal(failures)
	ss.updateRun(ctx, tx, run, map[string]interface{}{
		"status":         types.SplitRunCompleted,
		"child_note_ids": datatypes.JSON(childIDsJSON),
		"failures":       datatypes.JSON(failuresJSON),
	})
	run.Status = types.SplitRunCompleted
	run.ChildNoteIDs = datatypes.JSON(childIDsJSON)
	run.Failures = datatypes.JSON(failuresJSON)

	ss.notifier.RunCompleted(ctx, parent.PatientID, run)
	ss.log.Info("Split run completed",
		"run_id", run.ID,
		"parent_note_id", parent.ID,
		"mode", mode,
		"children", len(childIDs),
		"failures", len(failures),
	)
	return run, nil
}

// generateChildren fans one create per category out and joins before
// reporting: results from every category are collected even when some fail.
func (ss *splitService) generateChildren(ctx context.Context, parent *types.Note, requestedBy uuid.UUID, run *types.SplitRun, categories []string) ([]uuid.UUID, []types.CategoryFailure) {
	type childResult struct {
		note *types.Note
		err  error
	}
	results := make([]childResult, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(splitFanOutLimit)
	for i, label := range categories {
		i, label := i, label
		g.Go(func() error {
			// Each child is a fresh note with its own note+version
			// transaction; siblings share no state.
			child, err := ss.noteService.Create(gctx, nil, CreateNoteInput{
				PatientID:    parent.PatientID,
				AuthorID:     requestedBy,
				Kind:         types.NoteKindSplit,
				Title:        fmt.Sprintf("%s — %s", parent.Title, label),
				Content:      fmt.Sprintf("# %s\n\nNo information available for this category yet.", label),
				ParentNoteID: &parent.ID,
			})
			results[i] = childResult{note: child, err: err}
			if err != nil {
				ss.log.Warn("Split child creation failed", "run_id", run.ID, "category", label, "error", err)
				return nil
			}
			ss.notifier.ChildCreated(ctx, parent.PatientID, run, child)
			return nil
		})
	}
	_ = g.Wait()

	childIDs := make([]uuid.UUID, 0, len(categories))
	failures := make([]types.CategoryFailure, 0)
	for i, r := range results {
		if r.err != nil {
			failures = append(failures, types.CategoryFailure{Category: categories[i], Error: r.err.Error()})
			continue
		}
		childIDs = append(childIDs, r.note.ID)
	}
	return childIDs, failures
}

func (ss *splitService) GetRun(ctx context.Context, tx *gorm.DB, runID uuid.UUID) (*types.SplitRun, error) {
	runs, err := ss.runRepo.GetByIDs(ctx, tx, []uuid.UUID{runID})
	if err != nil {
		return nil, noteerr.Storage("load split run", err)
	}
	if len(runs) == 0 {
		return nil, noteerr.NotFound("split_run", "split run %s not found", runID)
	}
	return runs[0], nil
}

func (ss *splitService) ListRuns(ctx context.Context, tx *gorm.DB, parentNoteID uuid.UUID) ([]*types.SplitRun, error) {
	if _, err := ss.noteService.Get(ctx, tx, parentNoteID); err != nil {
		return nil, err
	}
	runs, err := ss.runRepo.GetByParentID(ctx, tx, parentNoteID)
	if err != nil {
		return nil, noteerr.Storage("list split runs", err)
	}
	return runs, nil
}

func (ss *splitService) updateRun(ctx context.Context, tx *gorm.DB, run *types.SplitRun, updates map[string]interface{}) {
	if err := ss.runRepo.UpdateFields(ctx, tx, run.ID, updates); err != nil {
		ss.log.Warn("Failed to update split run", "run_id", run.ID, "error", err)
	}
}
