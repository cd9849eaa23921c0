package services

import (
	"context"
	"errors"
	"testing"

	"github.com/mindpal/mindpal-backend/internal/noteerr"
	"github.com/mindpal/mindpal-backend/internal/types"
)

func newTestResolver(t *testing.T, oracle CategoryOracle) CategoryResolver {
	t.Helper()
	return NewCategoryResolver(mustTestLogger(t), oracle, CategoryConfig{
		Defaults:      []string{"Background", "Presenting Problem", "Symptoms", "Mental Status", "Treatment Plan"},
		MaxCategories: 10,
	})
}

func TestResolve_DefaultsReturnsCopy(t *testing.T) {
	r := newTestResolver(t, nil)

	first, err := r.Resolve(context.Background(), types.SplitModeDefaults, "", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(first) != 5 || first[0] != "Background" {
		t.Fatalf("unexpected defaults: %v", first)
	}

	first[0] = "Mutated"
	second, err := r.Resolve(context.Background(), types.SplitModeDefaults, "", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if second[0] != "Background" {
		t.Fatalf("resolver must hand out copies, got %v", second)
	}
}

func TestResolve_DefaultsUnconfigured(t *testing.T) {
	r := NewCategoryResolver(mustTestLogger(t), nil, CategoryConfig{MaxCategories: 10})
	_, err := r.Resolve(context.Background(), types.SplitModeDefaults, "", nil)
	if !noteerr.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestResolve_CustomTrimsAndDropsBlanks(t *testing.T) {
	r := newTestResolver(t, nil)

	got, err := r.Resolve(context.Background(), types.SplitModeCustom, "", []string{"  Goals ", "", "   ", "Risks"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 2 || got[0] != "Goals" || got[1] != "Risks" {
		t.Fatalf("unexpected labels: %v", got)
	}
}

func TestResolve_CustomRejectsEmptyAndOversized(t *testing.T) {
	r := newTestResolver(t, nil)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, types.SplitModeCustom, "", []string{" ", ""}); !noteerr.IsValidation(err) {
		t.Fatalf("all-blank list: expected validation error, got %v", err)
	}
	if _, err := r.Resolve(ctx, types.SplitModeCustom, "", nil); !noteerr.IsValidation(err) {
		t.Fatalf("nil list: expected validation error, got %v", err)
	}

	labels := make([]string, 11)
	for i := range labels {
		labels[i] = "c"
	}
	if _, err := r.Resolve(ctx, types.SplitModeCustom, "", labels); !noteerr.IsValidation(err) {
		t.Fatalf("oversized list: expected validation error, got %v", err)
	}
}

func TestResolve_InferredWithoutOracle(t *testing.T) {
	r := newTestResolver(t, nil)
	_, err := r.Resolve(context.Background(), types.SplitModeInferred, "content", nil)
	if !noteerr.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestResolve_InferredRejectsDuplicatesAndBlanks(t *testing.T) {
	ctx := context.Background()

	r := newTestResolver(t, &fakeOracle{labels: []string{"A", "B", "A", "C"}})
	if _, err := r.Resolve(ctx, types.SplitModeInferred, "content", nil); !noteerr.IsOracle(err) {
		t.Fatalf("duplicates: expected oracle error, got %v", err)
	}

	r = newTestResolver(t, &fakeOracle{labels: []string{"A", "B", " ", "C"}})
	if _, err := r.Resolve(ctx, types.SplitModeInferred, "content", nil); !noteerr.IsOracle(err) {
		t.Fatalf("blank label: expected oracle error, got %v", err)
	}
}

func TestResolve_InferredBoundsEnforced(t *testing.T) {
	ctx := context.Background()

	r := newTestResolver(t, &fakeOracle{labels: []string{"A", "B", "C"}})
	if _, err := r.Resolve(ctx, types.SplitModeInferred, "content", nil); !noteerr.IsOracle(err) {
		t.Fatalf("3 labels: expected oracle error, got %v", err)
	}

	r = newTestResolver(t, &fakeOracle{labels: []string{"A", "B", "C", "D", "E", "F", "G", "H"}})
	if _, err := r.Resolve(ctx, types.SplitModeInferred, "content", nil); !noteerr.IsOracle(err) {
		t.Fatalf("8 labels: expected oracle error, got %v", err)
	}

	r = newTestResolver(t, &fakeOracle{labels: []string{" History ", "Triggers", "Coping", "Relationships"}})
	got, err := r.Resolve(ctx, types.SplitModeInferred, "content", nil)
	if err != nil {
		t.Fatalf("4 labels: %v", err)
	}
	if len(got) != 4 || got[0] != "History" {
		t.Fatalf("labels must be trimmed, got %v", got)
	}
}

func TestResolve_OracleErrorPassesThrough(t *testing.T) {
	oracleErr := noteerr.Oracle(errors.New("boom"), true, "categorization oracle call failed")
	r := newTestResolver(t, &fakeOracle{err: oracleErr})

	_, err := r.Resolve(context.Background(), types.SplitModeInferred, "content", nil)
	if !noteerr.IsTransientOracle(err) {
		t.Fatalf("transient flag must survive the resolver, got %v", err)
	}
}

func TestResolve_PlainOracleErrorWrapped(t *testing.T) {
	r := newTestResolver(t, &fakeOracle{err: errors.New("socket closed")})

	_, err := r.Resolve(context.Background(), types.SplitModeInferred, "content", nil)
	if !noteerr.IsOracle(err) {
		t.Fatalf("expected oracle error, got %v", err)
	}
	if noteerr.IsTransientOracle(err) {
		t.Fatalf("unclassified failures must not be marked transient")
	}
}
