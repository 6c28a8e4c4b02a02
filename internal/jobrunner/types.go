package jobrunner

import "time"

// UploadOut is the Job Backend's record of an uploaded binary.
type UploadOut struct {
	ID        string `json:"id"`
	RemoteURL string `json:"remote_url"`
	ByteSize  int64  `json:"byte_size"`
	MimeType  string `json:"mime_type"`
}

type CreateSessionIn struct {
	Resources []string `json:"resources"`
}

type SessionOut struct {
	SessionID string `json:"session_id"`
	IsActive  bool   `json:"is_active"`
}

type SubmitIn struct {
	SessionID   string   `json:"session_id"`
	Instruction string   `json:"instruction"`
	Attachments []string `json:"attachments,omitempty"`
}

// TaskOut is returned by both submit and status queries.
type TaskOut struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"` // "pending", "processing", "completed", "failed"
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// ResultOut is the terminal artifact of a task.
type ResultOut struct {
	TaskID       string     `json:"task_id"`
	Status       string     `json:"status"`
	ImageURL     string     `json:"image_url,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreditsSpent int        `json:"credits_spent"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

type HistoryMessageOut struct {
	ID             string    `json:"id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Attachments    []string  `json:"attachments,omitempty"`
	ResultImageURL string    `json:"result_image_url,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type HistoryOut struct {
	SessionID string              `json:"session_id"`
	IsActive  bool                `json:"is_active"`
	Messages  []HistoryMessageOut `json:"messages"`
}
