package services

import (
	"context"
	"strings"
	"time"

	"github.com/mindpal/mindpal-backend/internal/logger"
	"github.com/mindpal/mindpal-backend/internal/noteerr"
	"github.com/mindpal/mindpal-backend/internal/types"
	"github.com/mindpal/mindpal-backend/internal/utils"
)

const (
	// Inferred category lists outside this band are rejected outright so
	// oracle misbehavior surfaces instead of being masked.
	minInferredCategories = 4
	maxInferredCategories = 7
)

// CategoryResolver produces the ordered label list for one split run. It
// never retries the oracle; retry policy belongs to the caller layer.
type CategoryResolver interface {
	Resolve(ctx context.Context, mode types.SplitMode, parentContent string, custom []string) ([]string, error)
	MaxCategories() int
}

type CategoryConfig struct {
	Defaults      []string
	MaxCategories int
	OracleTimeout time.Duration
}

func LoadCategoryConfig(log *logger.Logger) CategoryConfig {
	defaults := utils.GetEnvAsList("DEFAULT_SPLIT_CATEGORIES", []string{
		"Background",
		"Presenting Problem",
		"Symptoms",
		"Mental Status",
		"Treatment Plan",
	}, log)
	maxCategories := utils.GetEnvAsInt("MAX_SPLIT_CATEGORIES", 10, log)
	oracleTimeout := utils.GetEnvAsInt("ORACLE_TIMEOUT_SECONDS", 30, log)
	return CategoryConfig{
		Defaults:      defaults,
		MaxCategories: maxCategories,
		OracleTimeout: time.Duration(oracleTimeout) * time.Second,
	}
}

type categoryResolver struct {
	log    *logger.Logger
	oracle CategoryOracle
	cfg    CategoryConfig
}

func NewCategoryResolver(baseLog *logger.Logger, oracle CategoryOracle, cfg CategoryConfig) CategoryResolver {
	serviceLog := baseLog.With("service", "CategoryResolver")
	return &categoryResolver{log: serviceLog, oracle: oracle, cfg: cfg}
}

func (cr *categoryResolver) MaxCategories() int {
	return cr.cfg.MaxCategories
}

func (cr *categoryResolver) Resolve(ctx context.Context, mode types.SplitMode, parentContent string, custom []string) ([]string, error) {
	switch mode {
	case types.SplitModeDefaults:
		return cr.resolveDefaults()
	case types.SplitModeCustom:
		return cr.resolveCustom(custom)
	case types.SplitModeInferred:
		return cr.resolveInferred(ctx, parentContent)
	default:
		return nil, noteerr.Validation("unknown generation mode %q", mode)
	}
}

func (cr *categoryResolver) resolveDefaults() ([]string, error) {
	if len(cr.cfg.Defaults) == 0 {
		return nil, noteerr.Configuration("default split categories are not configured")
	}
	out := make([]string, len(cr.cfg.Defaults))
	copy(out, cr.cfg.Defaults)
	return out, nil
}

func (cr *categoryResolver) resolveCustom(custom []string) ([]string, error) {
	if len(custom) > cr.cfg.MaxCategories {
		return nil, noteerr.Validation("at most %d categories allowed, got %d", cr.cfg.MaxCategories, len(custom))
	}
	out := make([]string, 0, len(custom))
	for _, label := range custom {
		label = strings.TrimSpace(label)
		if label != "" {
			out = append(out, label)
		}
	}
	if len(out) == 0 {
		return nil, noteerr.Validation("category list is empty")
	}
	return out, nil
}

func (cr *categoryResolver) resolveInferred(ctx context.Context, parentContent string) ([]string, error) {
	if cr.oracle == nil {
		return nil, noteerr.Configuration("no categorization oracle configured")
	}
	oracleCtx := ctx
	if cr.cfg.OracleTimeout > 0 {
		var cancel context.CancelFunc
		oracleCtx, cancel = context.WithTimeout(ctx, cr.cfg.OracleTimeout)
		defer cancel()
	}
	labels, err := cr.oracle.SuggestCategories(oracleCtx, parentContent)
	if err != nil {
		if noteerr.IsOracle(err) {
			return nil, err
		}
		return nil, noteerr.Oracle(err, false, "categorization oracle failed")
	}

	if len(labels) < minInferredCategories || len(labels) > maxInferredCategories {
		return nil, noteerr.Oracle(nil, false, "oracle returned %d categories, expected %d-%d", len(labels), minInferredCategories, maxInferredCategories)
	}
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			return nil, noteerr.Oracle(nil, false, "oracle returned an empty category label")
		}
		if seen[label] {
			return nil, noteerr.Oracle(nil, false, "oracle returned duplicate category %q", label)
		}
		seen[label] = true
		out = append(out, label)
	}
	return out, nil
}
