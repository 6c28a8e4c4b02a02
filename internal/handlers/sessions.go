package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"virtual-tryon-backend/internal/middleware"
	"virtual-tryon-backend/internal/models"
	"virtual-tryon-backend/internal/orchestrator"
)

type SessionsHandler struct {
	registry *orchestrator.Registry
}

func NewSessionsHandler(registry *orchestrator.Registry) *SessionsHandler {
	return &SessionsHandler{registry: registry}
}

func storeForUser(c *gin.Context, registry *orchestrator.Registry) (*orchestrator.Store, bool) {
	userID, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return nil, false
	}
	return registry.ForUser(userID.(string)), true
}

func toResources(refs []models.ResourceRef) []orchestrator.UploadedResource {
	resources := make([]orchestrator.UploadedResource, len(refs))
	for i, r := range refs {
		resources[i] = orchestrator.UploadedResource{
			ID:           r.ID,
			RemoteURL:    r.RemoteURL,
			LocalPreview: r.LocalPreview,
			ByteSize:     r.ByteSize,
			MimeType:     r.MimeType,
		}
	}
	return resources
}

func toSessionResponse(sess *orchestrator.Session) models.SessionResponse {
	ids := make([]string, 0, len(sess.BaseResources))
	for _, r := range sess.BaseResources {
		ids = append(ids, r.ID)
	}
	return models.SessionResponse{
		SessionID:     sess.SessionID,
		IsActive:      sess.IsActive,
		BaseResources: ids,
	}
}

func toMessageResponses(msgs []orchestrator.Message) []models.MessageResponse {
	out := make([]models.MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}

func toMessageResponse(m orchestrator.Message) models.MessageResponse {
	attachments := make([]string, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		attachments = append(attachments, a.ID)
	}
	return models.MessageResponse{
		ID:             m.ID,
		Role:           m.Role,
		Content:        m.Content,
		Attachments:    attachments,
		ResultImageURL: m.ResultImageURL,
		Timestamp:      m.Timestamp,
	}
}

// CreateSession opens a new workflow session from uploaded resources,
// superseding any previous one for this user.
func (h *SessionsHandler) CreateSession(c *gin.Context) {
	store, ok := storeForUser(c, h.registry)
	if !ok {
		return
	}

	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	sess, err := store.StartSession(toResources(req.Resources))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to create session", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(sess))
}

// GetHistory replays the authoritative transcript for a session. This is also
// the rehydration path after a client reload.
func (h *SessionsHandler) GetHistory(c *gin.Context) {
	store, ok := storeForUser(c, h.registry)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	msgs, err := store.LoadHistory(sessionID)
	if err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: "failed to load history", Message: err.Error()})
		return
	}

	sess := store.Session()
	if sess == nil {
		// Backend reported the session gone; the store reset itself.
		c.JSON(http.StatusOK, models.HistoryResponse{
			SessionID: sessionID,
			IsActive:  false,
			Messages:  []models.MessageResponse{},
		})
		return
	}

	c.JSON(http.StatusOK, models.HistoryResponse{
		SessionID: sess.SessionID,
		IsActive:  sess.IsActive,
		Messages:  toMessageResponses(msgs),
	})
}

// GetTask reports the in-flight task snapshot, if any.
func (h *SessionsHandler) GetTask(c *gin.Context) {
	store, ok := storeForUser(c, h.registry)
	if !ok {
		return
	}

	sess := store.Session()
	if sess == nil || sess.SessionID != c.Param("session_id") {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "session not found"})
		return
	}

	task := store.CurrentTask()
	if task == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "no task in flight"})
		return
	}

	c.JSON(http.StatusOK, models.TaskResponse{
		TaskID:   task.TaskID,
		Status:   string(task.Status),
		Progress: task.Progress,
		Message:  task.Message,
	})
}

// DeleteSession resets the session locally and server-side.
func (h *SessionsHandler) DeleteSession(c *gin.Context) {
	store, ok := storeForUser(c, h.registry)
	if !ok {
		return
	}

	sess := store.Session()
	if sess == nil || sess.SessionID != c.Param("session_id") {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "session not found"})
		return
	}

	if err := store.Reset(); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to reset session", Message: err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
