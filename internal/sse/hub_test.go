package sse

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mindpal/mindpal-backend/internal/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() { log.Sync() })
	return log
}

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func TestSSEHubDeliversInOrderPerChannel(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	patientChannel := uuid.New().String()

	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, patientChannel)

	hub.Broadcast(SSEMessage{Channel: patientChannel, Event: SSEEventSplitRunStarted, Data: map[string]any{"seq": 1}})
	hub.Broadcast(SSEMessage{Channel: patientChannel, Event: SSEEventSplitChildCreated, Data: map[string]any{"seq": 2}})

	first := recvMessage(t, client.Outbound, time.Second)
	second := recvMessage(t, client.Outbound, time.Second)
	if first.Event != SSEEventSplitRunStarted {
		t.Fatalf("first event: want=%s got=%s", SSEEventSplitRunStarted, first.Event)
	}
	if second.Event != SSEEventSplitChildCreated {
		t.Fatalf("second event: want=%s got=%s", SSEEventSplitChildCreated, second.Event)
	}
}

func TestSSEHubIsolatesChannels(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))

	patientA := uuid.New().String()
	patientB := uuid.New().String()
	clientA := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientA, patientA)
	clientB := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientB, patientB)

	hub.Broadcast(SSEMessage{Channel: patientA, Event: SSEEventNoteUpdated})

	got := recvMessage(t, clientA.Outbound, time.Second)
	if got.Channel != patientA {
		t.Fatalf("unexpected channel: %s", got.Channel)
	}
	select {
	case msg := <-clientB.Outbound:
		t.Fatalf("clientB must not see patientA events, got %s", msg.Event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSSEHubCloseClientUnsubscribes(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := uuid.New().String()

	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, channel)
	hub.CloseClient(client)

	select {
	case _, ok := <-client.Outbound:
		if ok {
			t.Fatalf("outbound should be closed after CloseClient")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for outbound close")
	}

	// Broadcasting after close must not panic on the closed channel.
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventNoteDeleted})
}

func TestSSEHubCloseClientTwiceIsSafe(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := uuid.New().String()

	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, channel)

	// An actor reconnect closes the replaced client from the new connection
	// while the old connection's cleanup closes it again; neither call may
	// panic on the already-closed channels.
	hub.CloseClient(client)
	hub.CloseClient(client)

	select {
	case _, ok := <-client.Outbound:
		if ok {
			t.Fatalf("outbound should be closed")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for outbound close")
	}
}

func TestSSEHubRemoveChannelStopsDelivery(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := uuid.New().String()

	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, channel)
	hub.RemoveChannel(client, channel)

	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventNoteCreated})
	select {
	case msg := <-client.Outbound:
		t.Fatalf("unsubscribed client must not receive events, got %s", msg.Event)
	case <-time.After(100 * time.Millisecond):
	}
}
