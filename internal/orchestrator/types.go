package orchestrator

import "time"

// TaskStatus is the lifecycle of one backend generation job.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Terminal reports whether no further status transitions can occur.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// UploadedResource is a server-side reference to a binary the user provided.
// Immutable once created.
type UploadedResource struct {
	ID           string `json:"id"`
	RemoteURL    string `json:"remote_url"`
	LocalPreview string `json:"local_preview,omitempty"`
	ByteSize     int64  `json:"byte_size"`
	MimeType     string `json:"mime_type"`
}

// Session binds uploaded resources to a sequence of generation tasks.
// IsActive is flipped to false only by the Store, on explicit reset or when
// the backend reports the session gone.
type Session struct {
	SessionID     string             `json:"session_id"`
	BaseResources []UploadedResource `json:"base_resources"`
	IsActive      bool               `json:"is_active"`
}

// Message is one turn of an editing-chat transcript. Append-only; insertion
// order is the transcript order.
type Message struct {
	ID             string             `json:"id"`
	Role           string             `json:"role"` // "user" or "assistant"
	Content        string             `json:"content"`
	Attachments    []UploadedResource `json:"attachments,omitempty"`
	ResultImageURL string             `json:"result_image_url,omitempty"`
	Timestamp      time.Time          `json:"timestamp"`
}

// Task is a point-in-time snapshot of one backend job.
type Task struct {
	TaskID   string     `json:"task_id"`
	Status   TaskStatus `json:"status"`
	Progress int        `json:"progress"` // 0..100
	Message  string     `json:"message"`
}

// SessionSnapshot is the minimum persisted across restarts: enough to
// rehydrate by replaying history, never in-flight task state.
type SessionSnapshot struct {
	SessionID       string    `json:"session_id"`
	BaseResourceIDs []string  `json:"base_resource_ids"`
	IsActive        bool      `json:"is_active"`
	SavedAt         time.Time `json:"saved_at"`
}

// SnapshotStore persists session snapshots keyed by session id. Load returns
// (nil, nil) when no snapshot exists.
type SnapshotStore interface {
	Save(snap SessionSnapshot) error
	Load(sessionID string) (*SessionSnapshot, error)
	Delete(sessionID string) error
}
