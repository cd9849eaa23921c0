package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mindpal/mindpal-backend/internal/noteerr"
	"github.com/mindpal/mindpal-backend/internal/repos"
	"github.com/mindpal/mindpal-backend/internal/types"
)

type fakeOracle struct {
	labels []string
	err    error
	called bool
}

func (f *fakeOracle) SuggestCategories(ctx context.Context, content string) ([]string, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	return f.labels, nil
}

type splitFixture struct {
	db       *gorm.DB
	noteSvc  NoteService
	splitSvc SplitService
	oracle   *fakeOracle
}

func newSplitFixture(t *testing.T) *splitFixture {
	t.Helper()
	db := newTestDB(t)
	log := mustTestLogger(t)
	noteSvc := NewNoteService(db, log, repos.NewNoteRepo(db, log), repos.NewNoteVersionRepo(db, log))
	oracle := &fakeOracle{}
	resolver := NewCategoryResolver(log, oracle, CategoryConfig{
		Defaults:      []string{"Background", "Presenting Problem", "Symptoms", "Mental Status", "Treatment Plan"},
		MaxCategories: 10,
	})
	splitSvc := NewSplitService(db, log, noteSvc, resolver, repos.NewSplitRunRepo(db, log), NewSplitNotifier(log))
	return &splitFixture{db: db, noteSvc: noteSvc, splitSvc: splitSvc, oracle: oracle}
}

func (f *splitFixture) createConceptualization(t *testing.T, title string) *types.Note {
	t.Helper()
	note, err := f.noteSvc.Create(context.Background(), nil, CreateNoteInput{
		PatientID: uuid.New(),
		AuthorID:  uuid.New(),
		Kind:      types.NoteKindConceptualization,
		Title:     title,
		Content:   "Full formulation text.",
	})
	if err != nil {
		t.Fatalf("create conceptualization: %v", err)
	}
	return note
}

func decodeIDs(t *testing.T, raw []byte) []uuid.UUID {
	t.Helper()
	var ids []uuid.UUID
	if err := json.Unmarshal(raw, &ids); err != nil {
		t.Fatalf("decode child ids: %v", err)
	}
	return ids
}

func TestGenerate_DefaultsProducesOneChildPerCategory(t *testing.T) {
	f := newSplitFixture(t)
	ctx := context.Background()
	parent := f.createConceptualization(t, "Case Conceptualization")

	run, err := f.splitSvc.Generate(ctx, nil, parent.ID, uuid.New(), types.SplitModeDefaults, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if run.Status != types.SplitRunCompleted {
		t.Fatalf("run status: want=completed got=%s", run.Status)
	}
	if ids := decodeIDs(t, run.ChildNoteIDs); len(ids) != 5 {
		t.Fatalf("want 5 children, got %d", len(ids))
	}

	children, err := f.noteSvc.ListSplits(ctx, nil, parent.ID)
	if err != nil {
		t.Fatalf("ListSplits: %v", err)
	}
	if len(children) != 5 {
		t.Fatalf("want 5 split notes, got %d", len(children))
	}
	seen := map[string]bool{}
	for _, child := range children {
		if child.Kind != types.NoteKindSplit {
			t.Fatalf("child kind: %s", child.Kind)
		}
		if child.ParentNoteID == nil || *child.ParentNoteID != parent.ID {
			t.Fatalf("child parent not set")
		}
		if child.PatientID != parent.PatientID {
			t.Fatalf("child patient must match parent")
		}
		if !strings.HasPrefix(child.Title, parent.Title+" — ") {
			t.Fatalf("child title: %q", child.Title)
		}
		seen[child.Title] = true
	}
	if !seen["Case Conceptualization — Symptoms"] {
		t.Fatalf("expected a Symptoms child, titles: %v", seen)
	}
	if f.oracle.called {
		t.Fatalf("defaults mode must not consult the oracle")
	}
}

func TestGenerate_CustomCategories(t *testing.T) {
	f := newSplitFixture(t)
	ctx := context.Background()
	parent := f.createConceptualization(t, "P")

	run, err := f.splitSvc.Generate(ctx, nil, parent.ID, uuid.New(), types.SplitModeCustom, []string{"Goals", "Risks"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if run.Status != types.SplitRunCompleted {
		t.Fatalf("run status: want=completed got=%s", run.Status)
	}

	children, err := f.noteSvc.ListSplits(ctx, nil, parent.ID)
	if err != nil {
		t.Fatalf("ListSplits: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("want 2 children, got %d", len(children))
	}
	titles := map[string]string{}
	for _, child := range children {
		titles[child.Title] = child.ContentMarkdown
	}
	content, ok := titles["P — Goals"]
	if !ok {
		t.Fatalf("missing Goals child, titles: %v", titles)
	}
	if !strings.HasPrefix(content, "# Goals\n") {
		t.Fatalf("child content must open with the category heading: %q", content)
	}
	if _, ok := titles["P — Risks"]; !ok {
		t.Fatalf("missing Risks child, titles: %v", titles)
	}
}

func TestGenerate_TooManyCustomCategoriesFailsBeforeChildren(t *testing.T) {
	f := newSplitFixture(t)
	ctx := context.Background()
	parent := f.createConceptualization(t, "P")

	labels := make([]string, 11)
	for i := range labels {
		labels[i] = fmt.Sprintf("Category %d", i+1)
	}
	_, err := f.splitSvc.Generate(ctx, nil, parent.ID, uuid.New(), types.SplitModeCustom, labels)
	if !noteerr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	children, err := f.noteSvc.ListSplits(ctx, nil, parent.ID)
	if err != nil {
		t.Fatalf("ListSplits: %v", err)
	}
	if len(children) != 0 {
		t.Fatalf("failed run must create no children, got %d", len(children))
	}

	runs, err := f.splitSvc.ListRuns(ctx, nil, parent.ID)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != types.SplitRunFailed {
		t.Fatalf("expected one failed run, got %#v", runs)
	}
	if runs[0].Error == "" {
		t.Fatalf("failed run must record the error")
	}
}

func TestGenerate_InferredUsesOracleLabels(t *testing.T) {
	f := newSplitFixture(t)
	ctx := context.Background()
	parent := f.createConceptualization(t, "P")
	f.oracle.labels = []string{"History", "Triggers", "Coping", "Relationships"}

	run, err := f.splitSvc.Generate(ctx, nil, parent.ID, uuid.New(), types.SplitModeInferred, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !f.oracle.called {
		t.Fatalf("inferred mode must consult the oracle")
	}
	if ids := decodeIDs(t, run.ChildNoteIDs); len(ids) != 4 {
		t.Fatalf("want 4 children, got %d", len(ids))
	}
	var got []string
	if err := json.Unmarshal(run.Categories, &got); err != nil {
		t.Fatalf("decode categories: %v", err)
	}
	if len(got) != 4 || got[0] != "History" {
		t.Fatalf("run categories: %v", got)
	}
}

func TestGenerate_OracleOutOfBoundsFailsRun(t *testing.T) {
	f := newSplitFixture(t)
	ctx := context.Background()
	parent := f.createConceptualization(t, "P")
	f.oracle.labels = []string{"One", "Two", "Three"}

	_, err := f.splitSvc.Generate(ctx, nil, parent.ID, uuid.New(), types.SplitModeInferred, nil)
	if !noteerr.IsOracle(err) {
		t.Fatalf("expected oracle error, got %v", err)
	}

	children, err := f.noteSvc.ListSplits(ctx, nil, parent.ID)
	if err != nil {
		t.Fatalf("ListSplits: %v", err)
	}
	if len(children) != 0 {
		t.Fatalf("failed run must create no children, got %d", len(children))
	}
}

func TestGenerate_SecondRunIsAdditive(t *testing.T) {
	f := newSplitFixture(t)
	ctx := context.Background()
	parent := f.createConceptualization(t, "P")

	if _, err := f.splitSvc.Generate(ctx, nil, parent.ID, uuid.New(), types.SplitModeCustom, []string{"Goals"}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := f.splitSvc.Generate(ctx, nil, parent.ID, uuid.New(), types.SplitModeCustom, []string{"Risks"}); err != nil {
		t.Fatalf("second run: %v", err)
	}

	children, err := f.noteSvc.ListSplits(ctx, nil, parent.ID)
	if err != nil {
		t.Fatalf("ListSplits: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("runs must accumulate children, got %d", len(children))
	}

	runs, err := f.splitSvc.ListRuns(ctx, nil, parent.ID)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("want 2 runs, got %d", len(runs))
	}
}

func TestGenerate_RejectsNonConceptualizationParent(t *testing.T) {
	f := newSplitFixture(t)
	ctx := context.Background()

	followup, err := f.noteSvc.Create(ctx, nil, CreateNoteInput{
		PatientID: uuid.New(), AuthorID: uuid.New(),
		Kind: types.NoteKindFollowup, Title: "Session 1", Content: "First.",
	})
	if err != nil {
		t.Fatalf("create followup: %v", err)
	}

	_, err = f.splitSvc.Generate(ctx, nil, followup.ID, uuid.New(), types.SplitModeDefaults, nil)
	if !noteerr.IsInvalidKind(err) {
		t.Fatalf("expected invalid-kind error, got %v", err)
	}
}

func TestGenerate_UnknownModeRejected(t *testing.T) {
	f := newSplitFixture(t)
	parent := f.createConceptualization(t, "P")

	_, err := f.splitSvc.Generate(context.Background(), nil, parent.ID, uuid.New(), types.SplitMode("auto"), nil)
	if !noteerr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	f := newSplitFixture(t)
	_, err := f.splitSvc.GetRun(context.Background(), nil, uuid.New())
	if !noteerr.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestGenerate_EachChildStartsItsOwnVersionHistory(t *testing.T) {
	f := newSplitFixture(t)
	ctx := context.Background()
	parent := f.createConceptualization(t, "P")

	if _, err := f.splitSvc.Generate(ctx, nil, parent.ID, uuid.New(), types.SplitModeCustom, []string{"Goals"}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	children, err := f.noteSvc.ListSplits(ctx, nil, parent.ID)
	if err != nil {
		t.Fatalf("ListSplits: %v", err)
	}
	if len(children) != 1 {
		t.Fatalf("want 1 child, got %d", len(children))
	}
	versions, err := f.noteSvc.ListVersions(ctx, nil, children[0].ID)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 1 || versions[0].VersionNumber != 1 {
		t.Fatalf("child must start at version 1, got %#v", versions)
	}
}
