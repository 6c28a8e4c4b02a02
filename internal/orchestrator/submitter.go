package orchestrator

import (
	"fmt"
	"log/slog"
	"strings"

	"virtual-tryon-backend/internal/jobrunner"
)

// DefaultMaxInstructionLen bounds prompt length client-side, before any
// network call or billing happens.
const DefaultMaxInstructionLen = 4000

// Submitter starts one backend generation job for a session. Each accepted
// submission consumes a metered unit of the user's balance server-side.
type Submitter struct {
	api               SessionAPI
	maxInstructionLen int
	logger            *slog.Logger
}

func NewSubmitter(api SessionAPI, maxInstructionLen int, logger *slog.Logger) *Submitter {
	if maxInstructionLen <= 0 {
		maxInstructionLen = DefaultMaxInstructionLen
	}
	return &Submitter{api: api, maxInstructionLen: maxInstructionLen, logger: logger}
}

// Submit validates the instruction and starts a task. Validation failures and
// inactive sessions fail fast without touching the network.
func (s *Submitter) Submit(sess *Session, instruction string, attachments []UploadedResource) (*Task, error) {
	if sess == nil || !sess.IsActive {
		return nil, &SessionError{Reason: "session is not active"}
	}
	if strings.TrimSpace(instruction) == "" {
		return nil, &ValidationError{Field: "instruction", Reason: "must not be empty"}
	}
	if len(instruction) > s.maxInstructionLen {
		return nil, &ValidationError{
			Field:  "instruction",
			Reason: fmt.Sprintf("length %d exceeds the %d character limit", len(instruction), s.maxInstructionLen),
		}
	}

	attachmentIDs := make([]string, 0, len(attachments))
	for _, a := range attachments {
		if a.ID == "" {
			return nil, &ValidationError{Field: "attachments", Reason: "attachment reference is missing an id"}
		}
		attachmentIDs = append(attachmentIDs, a.ID)
	}

	out, err := s.api.SubmitTask(sess.SessionID, instruction, attachmentIDs)
	if err != nil {
		if jobrunner.IsBalanceShortage(err) {
			return nil, &InsufficientBalanceError{Reason: err.Error()}
		}
		if jobrunner.IsGone(err) {
			return nil, &SessionError{SessionID: sess.SessionID, Reason: "session no longer exists"}
		}
		return nil, fmt.Errorf("failed to submit task: %w", err)
	}

	s.logger.Info("task submitted", "session_id", sess.SessionID, "task_id", out.TaskID)

	return &Task{
		TaskID:   out.TaskID,
		Status:   TaskStatus(out.Status),
		Progress: out.Progress,
		Message:  out.Message,
	}, nil
}
