package orchestrator_test

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"virtual-tryon-backend/internal/jobrunner"
	"virtual-tryon-backend/internal/orchestrator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock advances instantly on every wait and records requested delays.
type fakeClock struct {
	now   time.Time
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.waits = append(c.waits, d)
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

type statusStep struct {
	out *jobrunner.TaskOut
	err error
}

// scriptedFetcher replays a fixed sequence of status responses.
type scriptedFetcher struct {
	steps       []statusStep
	i           int
	result      *jobrunner.ResultOut
	resultErr   error
	resultCalls int
}

func (f *scriptedFetcher) GetTaskStatus(taskID string) (*jobrunner.TaskOut, error) {
	if f.i >= len(f.steps) {
		return &jobrunner.TaskOut{TaskID: taskID, Status: "pending"}, nil
	}
	step := f.steps[f.i]
	f.i++
	return step.out, step.err
}

func (f *scriptedFetcher) GetTaskResult(taskID string) (*jobrunner.ResultOut, error) {
	f.resultCalls++
	if f.resultErr != nil {
		return nil, f.resultErr
	}
	return f.result, nil
}

type submitCall struct {
	sessionID   string
	instruction string
	attachments []string
}

// fakeAPI is a scriptable SessionAPI.
type fakeAPI struct {
	createOut  *jobrunner.SessionOut
	createErr  error
	submitOut  *jobrunner.TaskOut
	submitErr  error
	historyOut *jobrunner.HistoryOut
	historyErr error
	deleteErr  error

	submitted []submitCall
	deleted   []string
}

func (f *fakeAPI) CreateSession(resourceIDs []string) (*jobrunner.SessionOut, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createOut, nil
}

func (f *fakeAPI) SubmitTask(sessionID, instruction string, attachmentIDs []string) (*jobrunner.TaskOut, error) {
	f.submitted = append(f.submitted, submitCall{sessionID, instruction, attachmentIDs})
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.submitOut, nil
}

func (f *fakeAPI) GetHistory(sessionID string) (*jobrunner.HistoryOut, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.historyOut, nil
}

func (f *fakeAPI) DeleteSession(sessionID string) error {
	f.deleted = append(f.deleted, sessionID)
	return f.deleteErr
}

type fakeRefresher struct {
	calls int
	err   error
}

func (f *fakeRefresher) Refresh() error {
	f.calls++
	return f.err
}

// fakeArchiver records archive and cleanup invocations. Archive may be called
// from a background goroutine, so access is guarded.
type fakeArchiver struct {
	mu       sync.Mutex
	archived []orchestrator.Message
	cleaned  []string
}

func (f *fakeArchiver) Archive(sessionID string, msg orchestrator.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archived = append(f.archived, msg)
}

func (f *fakeArchiver) Cleanup(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleaned = append(f.cleaned, sessionID)
}

func (f *fakeArchiver) archivedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.archived)
}

func (f *fakeArchiver) cleanedSessions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.cleaned))
	copy(out, f.cleaned)
	return out
}
