package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mindpal/mindpal-backend/internal/logger"
	"github.com/mindpal/mindpal-backend/internal/requestdata"
	"github.com/mindpal/mindpal-backend/internal/sse"
)

type RealtimeHandler struct {
	Log *logger.Logger
	Hub *sse.SSEHub

	mu      sync.RWMutex
	clients map[uuid.UUID]*sse.SSEClient // key: ActorID
}

func NewRealtimeHandler(log *logger.Logger, hub *sse.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{
		Log:     log,
		Hub:     hub,
		clients: make(map[uuid.UUID]*sse.SSEClient),
	}
}

func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.ActorID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing actor"})
		return
	}
	actorID := rd.ActorID
	h.Log.Info("SSEStream open", "actor_id", actorID.String())

	h.mu.Lock()
	// If this actor already has a client, close it and replace.
	if existing, ok := h.clients[actorID]; ok {
		h.Hub.CloseClient(existing)
		delete(h.clients, actorID)
	}
	client := h.Hub.NewSSEClient(actorID)
	h.clients[actorID] = client
	h.mu.Unlock()

	// Subscribe every connection to the patient channel named in the query,
	// when one is given. Further channels arrive via SSESubscribe.
	if patientID := c.Query("patient_id"); patientID != "" {
		if _, err := uuid.Parse(patientID); err == nil {
			h.Hub.AddChannel(client, patientID)
		}
	}

	h.Hub.ServeHTTP(c.Writer, c.Request, client)

	// Cleanup after disconnect. A reconnect may already have replaced this
	// client in the map; only evict the entry when it is still ours.
	h.mu.Lock()
	if h.clients[actorID] == client {
		delete(h.clients, actorID)
	}
	h.mu.Unlock()
	h.Hub.CloseClient(client)
}

func (h *RealtimeHandler) SSESubscribe(c *gin.Context) {
	client, req, ok := h.resolveClient(c)
	if !ok {
		return
	}
	h.Hub.AddChannel(client, req)
	c.JSON(http.StatusOK, gin.H{"message": "subscribed", "channel": req})
}

func (h *RealtimeHandler) SSEUnsubscribe(c *gin.Context) {
	client, req, ok := h.resolveClient(c)
	if !ok {
		return
	}
	h.Hub.RemoveChannel(client, req)
	c.JSON(http.StatusOK, gin.H{"message": "unsubscribed", "channel": req})
}

func (h *RealtimeHandler) resolveClient(c *gin.Context) (*sse.SSEClient, string, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.ActorID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing actor"})
		return nil, "", false
	}

	var req struct {
		Channel string `json:"channel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Channel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel"})
		return nil, "", false
	}

	h.mu.RLock()
	client, exists := h.clients[rd.ActorID]
	h.mu.RUnlock()
	if !exists {
		c.JSON(http.StatusConflict, gin.H{"error": "no active SSE connection for this actor"})
		return nil, "", false
	}
	return client, req.Channel, true
}
