package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"virtual-tryon-backend/internal/models"
	"virtual-tryon-backend/internal/orchestrator"
)

type GenerateHandler struct {
	registry *orchestrator.Registry
}

func NewGenerateHandler(registry *orchestrator.Registry) *GenerateHandler {
	return &GenerateHandler{registry: registry}
}

// Generate runs one generation turn end to end: submit, poll to terminal,
// append the result message. The request blocks until a terminal state or a
// polling ceiling; clients watch progress via the task endpoint meanwhile.
func (h *GenerateHandler) Generate(c *gin.Context) {
	store, ok := storeForUser(c, h.registry)
	if !ok {
		return
	}

	sess := store.Session()
	if sess == nil || sess.SessionID != c.Param("session_id") {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "session not found"})
		return
	}

	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	msg, err := store.Generate(c.Request.Context(), req.Prompt, toResources(req.Attachments), orchestrator.PollCallbacks{})
	if err != nil {
		status, label := classifyGenerateError(err)
		c.JSON(status, models.ErrorResponse{Error: label, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.GenerateResponse{
		SessionID: sess.SessionID,
		Message:   toMessageResponse(*msg),
	})
}

func classifyGenerateError(err error) (int, string) {
	var (
		validationErr *orchestrator.ValidationError
		sessionErr    *orchestrator.SessionError
		balanceErr    *orchestrator.InsufficientBalanceError
		concurrentErr *orchestrator.ConcurrentGenerationError
		timeoutErr    *orchestrator.GenerationTimeoutError
		failedErr     *orchestrator.GenerationFailedError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "invalid input"
	case errors.As(err, &sessionErr):
		return http.StatusNotFound, "session unavailable"
	case errors.As(err, &balanceErr):
		return http.StatusPaymentRequired, "insufficient balance"
	case errors.As(err, &concurrentErr):
		return http.StatusConflict, "generation already in progress"
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout, "generation timed out"
	case errors.As(err, &failedErr):
		return http.StatusBadGateway, "generation failed"
	default:
		return http.StatusInternalServerError, "generation error"
	}
}
