package orchestrator

import (
	"log/slog"

	"virtual-tryon-backend/internal/jobrunner"
)

// SessionAPI is the slice of the Job Backend that session lifecycle and task
// submission need.
type SessionAPI interface {
	CreateSession(resourceIDs []string) (*jobrunner.SessionOut, error)
	SubmitTask(sessionID, instruction string, attachmentIDs []string) (*jobrunner.TaskOut, error)
	GetHistory(sessionID string) (*jobrunner.HistoryOut, error)
	DeleteSession(sessionID string) error
}

// SessionInitiator opens a logical unit of work from uploaded resources.
type SessionInitiator struct {
	api    SessionAPI
	logger *slog.Logger
}

func NewSessionInitiator(api SessionAPI, logger *slog.Logger) *SessionInitiator {
	return &SessionInitiator{api: api, logger: logger}
}

// CreateSession validates the resource references and opens a session.
func (si *SessionInitiator) CreateSession(resources []UploadedResource) (*Session, error) {
	if len(resources) == 0 {
		return nil, &SessionError{Reason: "at least one uploaded resource is required"}
	}

	ids := make([]string, len(resources))
	for i, r := range resources {
		if r.ID == "" {
			return nil, &SessionError{Reason: "resource reference is missing an id"}
		}
		ids[i] = r.ID
	}

	out, err := si.api.CreateSession(ids)
	if err != nil {
		return nil, &SessionError{Reason: "backend rejected session creation: " + err.Error()}
	}

	si.logger.Info("session created", "session_id", out.SessionID, "resources", len(ids))

	return &Session{
		SessionID:     out.SessionID,
		BaseResources: resources,
		IsActive:      true,
	}, nil
}
