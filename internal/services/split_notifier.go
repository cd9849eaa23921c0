package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/mindpal/mindpal-backend/internal/logger"
	"github.com/mindpal/mindpal-backend/internal/sse"
	"github.com/mindpal/mindpal-backend/internal/types"
)

// SSEPublisher abstracts where split-run events go: the in-process hub, a
// Redis bus for multi-replica deployments, or both.
type SSEPublisher interface {
	Publish(ctx context.Context, msg sse.SSEMessage)
}

type HubPublisher struct{ Hub *sse.SSEHub }

func (p *HubPublisher) Publish(ctx context.Context, msg sse.SSEMessage) {
	p.Hub.Broadcast(msg)
}

// SplitNotifier emits split-run lifecycle events on the parent note's
// patient channel.
type SplitNotifier interface {
	RunStarted(ctx context.Context, patientID uuid.UUID, run *types.SplitRun)
	ChildCreated(ctx context.Context, patientID uuid.UUID, run *types.SplitRun, child *types.Note)
	RunCompleted(ctx context.Context, patientID uuid.UUID, run *types.SplitRun)
	RunFailed(ctx context.Context, patientID uuid.UUID, run *types.SplitRun, errorMessage string)
}

type splitNotifier struct {
	log        *logger.Logger
	publishers []SSEPublisher
}

func NewSplitNotifier(baseLog *logger.Logger, publishers ...SSEPublisher) SplitNotifier {
	return &splitNotifier{
		log:        baseLog.With("service", "SplitNotifier"),
		publishers: publishers,
	}
}

func (n *splitNotifier) publish(ctx context.Context, msg sse.SSEMessage) {
	for _, p := range n.publishers {
		if p != nil {
			p.Publish(ctx, msg)
		}
	}
}

func (n *splitNotifier) RunStarted(ctx context.Context, patientID uuid.UUID, run *types.SplitRun) {
	n.publish(ctx, sse.SSEMessage{
		Channel: patientID.String(),
		Event:   sse.SSEEventSplitRunStarted,
		Data:    map[string]any{"run": run},
	})
}

func (n *splitNotifier) ChildCreated(ctx context.Context, patientID uuid.UUID, run *types.SplitRun, child *types.Note) {
	n.publish(ctx, sse.SSEMessage{
		Channel: patientID.String(),
		Event:   sse.SSEEventSplitChildCreated,
		Data: map[string]any{
			"run_id": run.ID,
			"note":   child,
		},
	})
}

func (n *splitNotifier) RunCompleted(ctx context.Context, patientID uuid.UUID, run *types.SplitRun) {
	n.publish(ctx, sse.SSEMessage{
		Channel: patientID.String(),
		Event:   sse.SSEEventSplitRunCompleted,
		Data:    map[string]any{"run": run},
	})
}

func (n *splitNotifier) RunFailed(ctx context.Context, patientID uuid.UUID, run *types.SplitRun, errorMessage string) {
	n.publish(ctx, sse.SSEMessage{
		Channel: patientID.String(),
		Event:   sse.SSEEventSplitRunFailed,
		Data: map[string]any{
			"run_id": run.ID,
			"error":  errorMessage,
		},
	})
}
