package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mindpal/mindpal-backend/internal/noteerr"
	"github.com/mindpal/mindpal-backend/internal/requestdata"
	"github.com/mindpal/mindpal-backend/internal/services"
	"github.com/mindpal/mindpal-backend/internal/types"
)

type NoteHandler struct {
	svc services.NoteService
}

func NewNoteHandler(svc services.NoteService) *NoteHandler {
	return &NoteHandler{svc: svc}
}

type createNoteRequest struct {
	PatientID    uuid.UUID  `json:"patient_id" binding:"required"`
	Kind         string     `json:"kind" binding:"required"`
	Title        string     `json:"title" binding:"required"`
	Content      string     `json:"content_markdown" binding:"required"`
	ParentNoteID *uuid.UUID `json:"parent_note_id,omitempty"`
}

// POST /api/notes
func (h *NoteHandler) CreateNote(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing actor"})
		return
	}
	var req createNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	note, err := h.svc.Create(c.Request.Context(), nil, services.CreateNoteInput{
		PatientID:    req.PatientID,
		AuthorID:     rd.ActorID,
		Kind:         types.NoteKind(req.Kind),
		Title:        req.Title,
		Content:      req.Content,
		ParentNoteID: req.ParentNoteID,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"note": note})
}

// GET /api/notes?patient_id=...&kind=...
func (h *NoteHandler) ListNotes(c *gin.Context) {
	patientID, err := uuid.Parse(c.Query("patient_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", noteerr.Validation("invalid patient_id"))
		return
	}
	var kind *types.NoteKind
	if raw := c.Query("kind"); raw != "" {
		k := types.NoteKind(raw)
		kind = &k
	}
	items, err := h.svc.ListByPatient(c.Request.Context(), nil, patientID, kind)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"notes": items})
}

// GET /api/notes/:id
func (h *NoteHandler) GetNote(c *gin.Context) {
	noteID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", noteerr.Validation("invalid note id"))
		return
	}
	note, err := h.svc.Get(c.Request.Context(), nil, noteID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"note": note})
}

type updateNoteRequest struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content_markdown,omitempty"`
}

// PUT /api/notes/:id
func (h *NoteHandler) UpdateNote(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing actor"})
		return
	}
	noteID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", noteerr.Validation("invalid note id"))
		return
	}
	var req updateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	note, err := h.svc.Update(c.Request.Context(), nil, noteID, rd.ActorID, req.Title, req.Content)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"note": note})
}

// DELETE /api/notes/:id
func (h *NoteHandler) DeleteNote(c *gin.Context) {
	noteID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", noteerr.Validation("invalid note id"))
		return
	}
	if err := h.svc.Delete(c.Request.Context(), nil, noteID); err != nil {
		RespondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/notes/:id/versions
func (h *NoteHandler) ListVersions(c *gin.Context) {
	noteID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", noteerr.Validation("invalid note id"))
		return
	}
	versions, err := h.svc.ListVersions(c.Request.Context(), nil, noteID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"versions": versions})
}

// POST /api/notes/:id/restore/:version
func (h *NoteHandler) RestoreVersion(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing actor"})
		return
	}
	noteID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", noteerr.Validation("invalid note id"))
		return
	}
	versionNumber, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", noteerr.Validation("invalid version number"))
		return
	}
	note, err := h.svc.Restore(c.Request.Context(), nil, noteID, rd.ActorID, versionNumber)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"note": note})
}
