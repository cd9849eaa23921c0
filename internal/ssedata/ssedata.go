package ssedata

import (
	"context"
	"sync"

	"github.com/mindpal/mindpal-backend/internal/sse"
)

type key struct{}

var sseDataKey key

// SSEData queues messages produced while handling a request so they can be
// flushed to the hub once the request's work has committed.
type SSEData struct {
	mu       sync.Mutex
	Messages []sse.SSEMessage
}

func WithSSEData(ctx context.Context) context.Context {
	data := &SSEData{
		Messages: make([]sse.SSEMessage, 0),
	}
	return context.WithValue(ctx, sseDataKey, data)
}

func GetSSEData(ctx context.Context) *SSEData {
	val := ctx.Value(sseDataKey)
	ssd, ok := val.(*SSEData)
	if !ok {
		return nil
	}
	return ssd
}

func (d *SSEData) AppendMessage(msg sse.SSEMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Messages = append(d.Messages, msg)
}

func (d *SSEData) Drain() []sse.SSEMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.Messages
	d.Messages = nil
	return out
}
