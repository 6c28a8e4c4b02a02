package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"virtual-tryon-backend/internal/jobrunner"
)

// ResultArchiver receives completed result messages for out-of-band archiving
// and removes a session's archived files when the session is torn down.
type ResultArchiver interface {
	Archive(sessionID string, msg Message)
	Cleanup(sessionID string)
}

type StoreConfig struct {
	MaxInstructionLen int
	Poll              PollConfig
}

// Store is the session state store: the single mutable shared resource of the
// orchestrator. It holds the current session, the ordered message transcript
// and in-flight task bookkeeping, and is mutated only through its own methods.
// All methods are safe for concurrent use; overlapping Generate calls against
// the same session are rejected rather than interleaved.
type Store struct {
	api        SessionAPI
	status     StatusFetcher
	initiator  *SessionInitiator
	submitter  *Submitter
	snapshots  SnapshotStore
	reconciler *BalanceReconciler
	archiver   ResultArchiver
	cfg        StoreConfig
	logger     *slog.Logger

	mu          sync.Mutex
	session     *Session
	messages    []Message
	generating  bool
	currentTask *Task
}

func NewStore(api SessionAPI, status StatusFetcher, snapshots SnapshotStore, cfg StoreConfig, logger *slog.Logger) *Store {
	return &Store{
		api:       api,
		status:    status,
		initiator: NewSessionInitiator(api, logger),
		submitter: NewSubmitter(api, cfg.MaxInstructionLen, logger),
		snapshots: snapshots,
		cfg:       cfg,
		logger:    logger,
	}
}

// WithReconciler attaches a balance reconciler notified after each success.
func (s *Store) WithReconciler(r *BalanceReconciler) *Store {
	s.reconciler = r
	return s
}

// WithArchiver attaches a result archiver invoked after each success.
func (s *Store) WithArchiver(a ResultArchiver) *Store {
	s.archiver = a
	return s
}

// StartSession opens a new session from uploaded resources. Any previous
// session is superseded locally; cleaning the old one up server-side is the
// backend's concern.
func (s *Store) StartSession(resources []UploadedResource) (*Session, error) {
	sess, err := s.initiator.CreateSession(resources)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.session = sess
	s.messages = nil
	s.generating = false
	s.currentTask = nil
	s.mu.Unlock()

	s.saveSnapshot(sess)

	out := *sess
	return &out, nil
}

// Generate runs one full generation turn: optimistic user message, submit,
// poll to terminal, append the result message, reconcile balance.
//
// Submission-time failures retract the optimistic user message. Polling-time
// failures keep it: the instruction was already consumed and billed.
func (s *Store) Generate(ctx context.Context, prompt string, attachments []UploadedResource, cb PollCallbacks) (*Message, error) {
	s.mu.Lock()
	if s.session == nil || !s.session.IsActive {
		s.mu.Unlock()
		return nil, &SessionError{Reason: "no active session"}
	}
	if s.generating {
		taskID := ""
		if s.currentTask != nil {
			taskID = s.currentTask.TaskID
		}
		s.mu.Unlock()
		return nil, &ConcurrentGenerationError{TaskID: taskID}
	}

	s.generating = true
	sess := *s.session
	userMsg := Message{
		ID:          uuid.New().String(),
		Role:        "user",
		Content:     prompt,
		Attachments: attachments,
		Timestamp:   time.Now(),
	}
	s.messages = append(s.messages, userMsg)
	s.mu.Unlock()

	task, err := s.submitter.Submit(&sess, prompt, attachments)
	if err != nil {
		s.retract(userMsg.ID)
		var sessErr *SessionError
		if errors.As(err, &sessErr) && sessErr.SessionID != "" {
			s.deactivate(sess.SessionID)
		}
		return nil, err
	}

	s.mu.Lock()
	taskCopy := *task
	s.currentTask = &taskCopy
	s.mu.Unlock()

	wrapped := cb
	wrapped.OnProgress = func(t Task) {
		s.mu.Lock()
		if s.currentTask != nil && s.currentTask.TaskID == t.TaskID {
			snapshot := t
			s.currentTask = &snapshot
		}
		s.mu.Unlock()
		if cb.OnProgress != nil {
			cb.OnProgress(t)
		}
	}

	engine := NewPollingEngine(s.status, s.cfg.Poll, s.logger)
	result, err := engine.Poll(ctx, task.TaskID, wrapped)

	s.mu.Lock()
	s.generating = false
	s.currentTask = nil
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	assistantMsg := Message{
		ID:             uuid.New().String(),
		Role:           "assistant",
		ResultImageURL: result.ImageURL,
		Timestamp:      time.Now(),
	}
	if s.session != nil && s.session.SessionID == sess.SessionID {
		s.messages = append(s.messages, assistantMsg)
	}
	s.mu.Unlock()

	s.reconciler.Notify(task.TaskID)
	if s.archiver != nil {
		// Archiving is best-effort and stays off the request path.
		go s.archiver.Archive(sess.SessionID, assistantMsg)
	}

	return &assistantMsg, nil
}

// LoadHistory re-fetches the authoritative transcript and replaces local
// message state wholesale. Server state always wins over anything persisted
// locally. If the backend reports the session gone, the store resets itself to
// the no-session state and returns no error.
func (s *Store) LoadHistory(sessionID string) ([]Message, error) {
	hist, err := s.api.GetHistory(sessionID)
	if err != nil {
		if jobrunner.IsGone(err) {
			s.logger.Info("session gone, resetting store", "session_id", sessionID)
			s.clearLocal(sessionID)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	msgs := make([]Message, 0, len(hist.Messages))
	for _, m := range hist.Messages {
		attachments := make([]UploadedResource, 0, len(m.Attachments))
		for _, id := range m.Attachments {
			attachments = append(attachments, UploadedResource{ID: id})
		}
		msgs = append(msgs, Message{
			ID:             m.ID,
			Role:           m.Role,
			Content:        m.Content,
			Attachments:    attachments,
			ResultImageURL: m.ResultImageURL,
			Timestamp:      m.Timestamp,
		})
	}

	// The history response carries no resource details; the persisted snapshot
	// restores the base resource references, when one exists.
	var base []UploadedResource
	if snap, err := s.snapshots.Load(sessionID); err == nil && snap != nil {
		for _, id := range snap.BaseResourceIDs {
			base = append(base, UploadedResource{ID: id})
		}
	}

	sess := &Session{
		SessionID:     sessionID,
		BaseResources: base,
		IsActive:      hist.IsActive,
	}

	s.mu.Lock()
	s.session = sess
	s.messages = msgs
	s.generating = false
	s.currentTask = nil
	s.mu.Unlock()

	s.saveSnapshot(sess)

	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Reset clears the session locally and asks the backend to drop it. The local
// reset happens regardless of the backend's answer.
func (s *Store) Reset() error {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.messages = nil
	s.generating = false
	s.currentTask = nil
	s.mu.Unlock()

	if sess == nil {
		return nil
	}

	if err := s.api.DeleteSession(sess.SessionID); err != nil && !jobrunner.IsGone(err) {
		s.logger.Warn("backend session delete failed", "session_id", sess.SessionID, "error", err)
	}
	if err := s.snapshots.Delete(sess.SessionID); err != nil {
		s.logger.Warn("snapshot delete failed", "session_id", sess.SessionID, "error", err)
	}
	if s.archiver != nil {
		s.archiver.Cleanup(sess.SessionID)
	}

	return nil
}

// Session returns a copy of the current session, or nil.
func (s *Store) Session() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	out := *s.session
	return &out
}

// Messages returns a copy of the transcript in insertion order.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Generating reports whether a task is in flight for the current session.
func (s *Store) Generating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generating
}

// CurrentTask returns the latest task snapshot, or nil when idle.
func (s *Store) CurrentTask() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentTask == nil {
		return nil
	}
	out := *s.currentTask
	return &out
}

// retract removes the optimistic user message after a submission-time failure.
func (s *Store) retract(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generating = false
	s.currentTask = nil
	for i, m := range s.messages {
		if m.ID == messageID {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}
}

// deactivate marks the current session inactive after the backend reported it
// gone. Only the store flips IsActive.
func (s *Store) deactivate(sessionID string) {
	s.mu.Lock()
	var sess *Session
	if s.session != nil && s.session.SessionID == sessionID {
		s.session.IsActive = false
		out := *s.session
		sess = &out
	}
	s.mu.Unlock()

	if sess != nil {
		s.saveSnapshot(sess)
	}
}

func (s *Store) clearLocal(sessionID string) {
	s.mu.Lock()
	if s.session == nil || s.session.SessionID == sessionID {
		s.session = nil
		s.messages = nil
		s.generating = false
		s.currentTask = nil
	}
	s.mu.Unlock()

	if err := s.snapshots.Delete(sessionID); err != nil {
		s.logger.Warn("snapshot delete failed", "session_id", sessionID, "error", err)
	}
}

func (s *Store) saveSnapshot(sess *Session) {
	ids := make([]string, 0, len(sess.BaseResources))
	for _, r := range sess.BaseResources {
		ids = append(ids, r.ID)
	}
	snap := SessionSnapshot{
		SessionID:       sess.SessionID,
		BaseResourceIDs: ids,
		IsActive:        sess.IsActive,
		SavedAt:         time.Now(),
	}
	if err := s.snapshots.Save(snap); err != nil {
		s.logger.Warn("snapshot save failed", "session_id", sess.SessionID, "error", err)
	}
}
