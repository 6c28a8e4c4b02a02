package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virtual-tryon-backend/internal/handlers"
	"virtual-tryon-backend/internal/jobrunner"
	"virtual-tryon-backend/internal/middleware"
	"virtual-tryon-backend/internal/models"
	"virtual-tryon-backend/internal/orchestrator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBackend struct {
	uploadOut  *jobrunner.UploadOut
	uploadErr  error
	createOut  *jobrunner.SessionOut
	submitOut  *jobrunner.TaskOut
	submitErr  error
	statusOut  *jobrunner.TaskOut
	resultOut  *jobrunner.ResultOut
	historyOut *jobrunner.HistoryOut
}

func (f *fakeBackend) UploadImage(filename string, data []byte, mimeType string) (*jobrunner.UploadOut, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return f.uploadOut, nil
}

func (f *fakeBackend) CreateSession(resourceIDs []string) (*jobrunner.SessionOut, error) {
	return f.createOut, nil
}

func (f *fakeBackend) SubmitTask(sessionID, instruction string, attachmentIDs []string) (*jobrunner.TaskOut, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.submitOut, nil
}

func (f *fakeBackend) GetHistory(sessionID string) (*jobrunner.HistoryOut, error) {
	return f.historyOut, nil
}

func (f *fakeBackend) DeleteSession(sessionID string) error { return nil }

func (f *fakeBackend) GetTaskStatus(taskID string) (*jobrunner.TaskOut, error) {
	return f.statusOut, nil
}

func (f *fakeBackend) GetTaskResult(taskID string) (*jobrunner.ResultOut, error) {
	return f.resultOut, nil
}

func completingBackend() *fakeBackend {
	return &fakeBackend{
		uploadOut: &jobrunner.UploadOut{ID: "res-1", RemoteURL: "https://cdn.example.com/res-1.jpg", MimeType: "image/jpeg"},
		createOut: &jobrunner.SessionOut{SessionID: "sess-1", IsActive: true},
		submitOut: &jobrunner.TaskOut{TaskID: "task-1", Status: "pending"},
		statusOut: &jobrunner.TaskOut{TaskID: "task-1", Status: "completed", Progress: 100},
		resultOut: &jobrunner.ResultOut{TaskID: "task-1", Status: "completed", ImageURL: "https://cdn.example.com/out.jpg"},
	}
}

func testRouter(backend *fakeBackend) (*gin.Engine, *orchestrator.Registry) {
	gin.SetMode(gin.TestMode)

	cfg := orchestrator.StoreConfig{
		Poll: orchestrator.PollConfig{Interval: time.Millisecond, MaxDuration: time.Second},
	}
	registry := orchestrator.NewRegistry(func() *orchestrator.Store {
		return orchestrator.NewStore(backend, backend, orchestrator.NewMemorySnapshotStore(), cfg, testLogger())
	})

	uploader := orchestrator.NewUploader(backend, orchestrator.DefaultUploadPolicy(), nil, testLogger())

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, "user-1")
		c.Next()
	})

	uploadHandler := handlers.NewUploadHandler(uploader)
	sessionsHandler := handlers.NewSessionsHandler(registry)
	generateHandler := handlers.NewGenerateHandler(registry)

	router.POST("/uploads", uploadHandler.Upload)
	router.POST("/sessions", sessionsHandler.CreateSession)
	router.GET("/sessions/:session_id/history", sessionsHandler.GetHistory)
	router.GET("/sessions/:session_id/task", sessionsHandler.GetTask)
	router.POST("/sessions/:session_id/generate", generateHandler.Generate)
	router.DELETE("/sessions/:session_id", sessionsHandler.DeleteSession)

	return router, registry
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return &buf, writer.FormDataContentType()
}

func createSession(t *testing.T, router *gin.Engine) {
	t.Helper()
	body, err := json.Marshal(models.CreateSessionRequest{
		Resources: []models.ResourceRef{{ID: "res-1"}},
	})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestUploadEndpoint_Success(t *testing.T) {
	router, _ := testRouter(completingBackend())

	body, contentType := multipartBody(t, "image", "selfie.jpg", "image/jpeg", []byte{1, 2, 3})
	req := httptest.NewRequest("POST", "/uploads", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "res-1", resp.ID)
	assert.Equal(t, "selfie.jpg", resp.LocalPreview)
}

func TestUploadEndpoint_UnsupportedType(t *testing.T) {
	router, _ := testRouter(completingBackend())

	body, contentType := multipartBody(t, "image", "notes.txt", "text/plain", []byte("hello"))
	req := httptest.NewRequest("POST", "/uploads", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestUploadEndpoint_MissingFile(t *testing.T) {
	router, _ := testRouter(completingBackend())

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("unrelated", "value"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/uploads", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSessionEndpoint(t *testing.T) {
	router, _ := testRouter(completingBackend())

	body, err := json.Marshal(models.CreateSessionRequest{
		Resources: []models.ResourceRef{{ID: "res-1"}},
	})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.True(t, resp.IsActive)
	assert.Equal(t, []string{"res-1"}, resp.BaseResources)
}

func TestGenerateEndpoint_Success(t *testing.T) {
	router, _ := testRouter(completingBackend())
	createSession(t, router)

	body, err := json.Marshal(models.GenerateRequest{Prompt: "put the red dress on"})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/sessions/sess-1/generate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, "assistant", resp.Message.Role)
	assert.Equal(t, "https://cdn.example.com/out.jpg", resp.Message.ResultImageURL)
}

func TestGenerateEndpoint_UnknownSession(t *testing.T) {
	router, _ := testRouter(completingBackend())
	createSession(t, router)

	body, err := json.Marshal(models.GenerateRequest{Prompt: "hello"})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/sessions/other-session/generate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGenerateEndpoint_InsufficientBalance(t *testing.T) {
	backend := completingBackend()
	backend.submitErr = &jobrunner.APIError{StatusCode: 403, Code: "insufficient_balance", Message: "0 credits"}

	router, registry := testRouter(backend)
	createSession(t, router)

	body, err := json.Marshal(models.GenerateRequest{Prompt: "hello"})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/sessions/sess-1/generate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	// The optimistic user message was retracted.
	assert.Empty(t, registry.ForUser("user-1").Messages())
}

func TestGenerateEndpoint_BackendFailure(t *testing.T) {
	backend := completingBackend()
	backend.statusOut = &jobrunner.TaskOut{TaskID: "task-1", Status: "failed"}
	backend.resultOut = &jobrunner.ResultOut{TaskID: "task-1", Status: "failed", ErrorMessage: "model rejected the prompt"}

	router, _ := testRouter(backend)
	createSession(t, router)

	body, err := json.Marshal(models.GenerateRequest{Prompt: "hello"})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/sessions/sess-1/generate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestGetHistoryEndpoint(t *testing.T) {
	backend := completingBackend()
	backend.historyOut = &jobrunner.HistoryOut{
		SessionID: "sess-1",
		IsActive:  true,
		Messages: []jobrunner.HistoryMessageOut{
			{ID: "m1", Role: "user", Content: "first"},
			{ID: "m2", Role: "assistant", ResultImageURL: "https://cdn.example.com/out.jpg"},
		},
	}

	router, _ := testRouter(backend)

	req := httptest.NewRequest("GET", "/sessions/sess-1/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.True(t, resp.IsActive)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "m1", resp.Messages[0].ID)
}

func TestGetTaskEndpoint_NoTaskInFlight(t *testing.T) {
	router, _ := testRouter(completingBackend())
	createSession(t, router)

	req := httptest.NewRequest("GET", "/sessions/sess-1/task", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteSessionEndpoint(t *testing.T) {
	router, registry := testRouter(completingBackend())
	createSession(t, router)

	req := httptest.NewRequest("DELETE", "/sessions/sess-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Nil(t, registry.ForUser("user-1").Session())
}

func TestDeleteSessionEndpoint_UnknownSession(t *testing.T) {
	router, _ := testRouter(completingBackend())

	req := httptest.NewRequest("DELETE", "/sessions/sess-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
