package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mindpal/mindpal-backend/internal/logger"
	"github.com/mindpal/mindpal-backend/internal/requestdata"
	"github.com/mindpal/mindpal-backend/internal/sse"
)

func newRealtimeRouter(t *testing.T, actorID uuid.UUID) (*gin.Engine, *RealtimeHandler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)

	h := NewRealtimeHandler(log, sse.NewSSEHub(log))
	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx := requestdata.WithRequestData(c.Request.Context(), &requestdata.RequestData{ActorID: actorID})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	r.GET("/sse/stream", h.SSEStream)
	r.POST("/sse/subscribe", h.SSESubscribe)
	return r, h
}

func (h *RealtimeHandler) clientFor(actorID uuid.UUID) *sse.SSEClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[actorID]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func openStream(t *testing.T, r *gin.Engine, ctx context.Context) <-chan struct{} {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/sse/stream", nil).WithContext(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}()
	return done
}

func TestSSEStream_ReconnectKeepsReplacementRegistered(t *testing.T) {
	actorID := uuid.New()
	r, h := newRealtimeRouter(t, actorID)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	doneA := openStream(t, r, ctxA)
	waitFor(t, "first connection to register", func() bool {
		return h.clientFor(actorID) != nil
	})
	clientA := h.clientFor(actorID)

	// Reconnect: the second stream replaces the first client and closes it,
	// which makes the first connection's handler return and clean up.
	ctxB, cancelB := context.WithCancel(context.Background())
	defer cancelB()
	doneB := openStream(t, r, ctxB)
	waitFor(t, "replacement to register", func() bool {
		c := h.clientFor(actorID)
		return c != nil && c != clientA
	})

	select {
	case <-doneA:
	case <-time.After(2 * time.Second):
		t.Fatalf("replaced connection did not shut down")
	}

	// The old connection's cleanup must not evict the live replacement.
	if c := h.clientFor(actorID); c == nil || c == clientA {
		t.Fatalf("replacement client lost after old connection cleanup")
	}

	req := httptest.NewRequest(http.MethodPost, "/sse/subscribe", strings.NewReader(`{"channel":"`+uuid.New().String()+`"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("subscribe after reconnect: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}

	cancelB()
	select {
	case <-doneB:
	case <-time.After(2 * time.Second):
		t.Fatalf("second connection did not shut down")
	}
}
