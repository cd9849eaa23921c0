package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mindpal/mindpal-backend/internal/noteerr"
	"github.com/mindpal/mindpal-backend/internal/requestdata"
	"github.com/mindpal/mindpal-backend/internal/services"
	"github.com/mindpal/mindpal-backend/internal/types"
)

type SplitHandler struct {
	splitSvc services.SplitService
	noteSvc  services.NoteService
}

func NewSplitHandler(splitSvc services.SplitService, noteSvc services.NoteService) *SplitHandler {
	return &SplitHandler{splitSvc: splitSvc, noteSvc: noteSvc}
}

type generateSplitsRequest struct {
	Mode       string   `json:"mode" binding:"required"`
	Categories []string `json:"categories,omitempty"`
}

// POST /api/notes/:id/splits
func (h *SplitHandler) GenerateSplits(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing actor"})
		return
	}
	parentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", noteerr.Validation("invalid note id"))
		return
	}
	var req generateSplitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	run, err := h.splitSvc.Generate(c.Request.Context(), nil, parentID, rd.ActorID, types.SplitMode(req.Mode), req.Categories)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"run": run})
}

// GET /api/notes/:id/splits
func (h *SplitHandler) ListSplits(c *gin.Context) {
	parentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", noteerr.Validation("invalid note id"))
		return
	}
	children, err := h.noteSvc.ListSplits(c.Request.Context(), nil, parentID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"splits": children})
}

// GET /api/notes/:id/split-runs
func (h *SplitHandler) ListRuns(c *gin.Context) {
	parentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", noteerr.Validation("invalid note id"))
		return
	}
	runs, err := h.splitSvc.ListRuns(c.Request.Context(), nil, parentID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"runs": runs})
}

// GET /api/split-runs/:id
func (h *SplitHandler) GetRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", noteerr.Validation("invalid run id"))
		return
	}
	run, err := h.splitSvc.GetRun(c.Request.Context(), nil, runID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"run": run})
}
