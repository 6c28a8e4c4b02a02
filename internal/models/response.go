package models

import "time"

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type UploadResponse struct {
	ID           string `json:"id"`
	RemoteURL    string `json:"remote_url"`
	LocalPreview string `json:"local_preview,omitempty"`
	ByteSize     int64  `json:"byte_size"`
	MimeType     string `json:"mime_type"`
}

type SessionResponse struct {
	SessionID     string   `json:"session_id"`
	IsActive      bool     `json:"is_active"`
	BaseResources []string `json:"base_resources"`
}

type MessageResponse struct {
	ID             string    `json:"id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Attachments    []string  `json:"attachments,omitempty"`
	ResultImageURL string    `json:"result_image_url,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type GenerateResponse struct {
	SessionID string          `json:"session_id"`
	Message   MessageResponse `json:"message"`
}

type HistoryResponse struct {
	SessionID string            `json:"session_id"`
	IsActive  bool              `json:"is_active"`
	Messages  []MessageResponse `json:"messages"`
}

type TaskResponse struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
}
