package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"virtual-tryon-backend/internal/jobrunner"
)

// StatusFetcher is the slice of the Job Backend the polling engine needs.
type StatusFetcher interface {
	GetTaskStatus(taskID string) (*jobrunner.TaskOut, error)
	GetTaskResult(taskID string) (*jobrunner.ResultOut, error)
}

// Clock abstracts time so the polling state machine is testable with a fake.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// PollConfig parameterizes one polling run. Zero fields take defaults;
// MaxAttempts of zero means unlimited (the duration ceiling still applies and
// is always the authoritative bound).
type PollConfig struct {
	Interval             time.Duration
	MaxAttempts          int
	MaxDuration          time.Duration
	SlowWarningAfter     time.Duration
	VerySlowWarningAfter time.Duration
}

const (
	defaultPollInterval    = 2 * time.Second
	defaultMaxDuration     = 10 * time.Minute
	defaultSlowWarning     = 60 * time.Second
	defaultVerySlowWarning = 5 * time.Minute

	// maxBackoff caps rate-limit recovery delays.
	maxBackoff = 15 * time.Second
	// maxJitter desynchronizes retries across independent pollers.
	maxJitter = 250 * time.Millisecond
)

func (c PollConfig) withDefaults() PollConfig {
	if c.Interval <= 0 {
		c.Interval = defaultPollInterval
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = defaultMaxDuration
	}
	if c.SlowWarningAfter <= 0 {
		c.SlowWarningAfter = defaultSlowWarning
	}
	if c.VerySlowWarningAfter <= 0 {
		c.VerySlowWarningAfter = defaultVerySlowWarning
	}
	return c
}

// PollCallbacks are caller-supplied hooks. OnProgress fires for every status
// response in non-decreasing time order; it is the only channel through which
// callers learn about progress. OnSlow and OnVerySlow are advisory and fire at
// most once each. Any field may be nil.
type PollCallbacks struct {
	OnProgress func(task Task)
	OnSlow     func(elapsed time.Duration)
	OnVerySlow func(elapsed time.Duration)
}

// PollingEngine drives one task from submission to a terminal state. Status
// queries are strictly sequential: query N+1 is never issued before query N
// has been processed. Construct one engine per task.
//
// There is no cancel primitive: the ceilings and ctx are the only exits, and
// neither stops the backend job, which keeps running (and billing) server-side.
type PollingEngine struct {
	cfg    PollConfig
	client StatusFetcher
	clock  Clock
	jitter func() time.Duration
	logger *slog.Logger
}

func NewPollingEngine(client StatusFetcher, cfg PollConfig, logger *slog.Logger) *PollingEngine {
	return &PollingEngine{
		cfg:    cfg.withDefaults(),
		client: client,
		clock:  systemClock{},
		jitter: func() time.Duration {
			return time.Duration(rand.Int63n(int64(maxJitter) + 1))
		},
		logger: logger,
	}
}

// WithClock replaces the engine's clock. Test hook.
func (e *PollingEngine) WithClock(clock Clock) *PollingEngine {
	e.clock = clock
	return e
}

// WithJitter replaces the engine's jitter source. Test hook.
func (e *PollingEngine) WithJitter(jitter func() time.Duration) *PollingEngine {
	e.jitter = jitter
	return e
}

// Poll queries the task until it reaches a terminal state, then performs
// exactly one result fetch. A backend-reported failure returns the result
// alongside a *GenerationFailedError; ceiling expiry returns a
// *GenerationTimeoutError. Timeouts are cooperative: a query already in
// flight when a ceiling is crossed completes first.
func (e *PollingEngine) Poll(ctx context.Context, taskID string, cb PollCallbacks) (*jobrunner.ResultOut, error) {
	start := e.clock.Now()
	attempts := 0
	slowFired := false
	verySlowFired := false

	for {
		elapsed := e.clock.Now().Sub(start)

		if elapsed >= e.cfg.MaxDuration {
			e.logger.Warn("polling exceeded duration ceiling", "task_id", taskID, "attempts", attempts, "elapsed", elapsed)
			return nil, &GenerationTimeoutError{TaskID: taskID, Attempts: attempts, Elapsed: elapsed}
		}
		if e.cfg.MaxAttempts > 0 && attempts >= e.cfg.MaxAttempts {
			e.logger.Warn("polling exceeded attempt ceiling", "task_id", taskID, "attempts", attempts, "elapsed", elapsed)
			return nil, &GenerationTimeoutError{TaskID: taskID, Attempts: attempts, Elapsed: elapsed}
		}

		if !slowFired && elapsed >= e.cfg.SlowWarningAfter {
			slowFired = true
			if cb.OnSlow != nil {
				cb.OnSlow(elapsed)
			}
		}
		if !verySlowFired && elapsed >= e.cfg.VerySlowWarningAfter {
			verySlowFired = true
			if cb.OnVerySlow != nil {
				cb.OnVerySlow(elapsed)
			}
		}

		status, err := e.client.GetTaskStatus(taskID)
		if err != nil {
			if hint, ok := jobrunner.IsRateLimited(err); ok {
				// Rate-limited cycles never consume the attempt budget.
				delay := hint
				if delay <= 0 {
					delay = 2 * e.cfg.Interval
				}
				if delay > maxBackoff {
					delay = maxBackoff
				}
				delay += e.jitter()
				e.logger.Debug("rate limited, backing off", "task_id", taskID, "delay", delay)
				if err := e.wait(ctx, delay); err != nil {
					return nil, err
				}
				continue
			}
			if jobrunner.IsGone(err) {
				return nil, &GenerationFailedError{TaskID: taskID, Message: "task no longer exists"}
			}
			if jobrunner.IsTransient(err) {
				// Same treatment as "still processing": retry until a ceiling.
				attempts++
				e.logger.Debug("transient status failure, retrying", "task_id", taskID, "error", err)
				if err := e.wait(ctx, e.cfg.Interval); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("failed to query task status: %w", err)
		}

		attempts++
		task := Task{
			TaskID:   status.TaskID,
			Status:   TaskStatus(status.Status),
			Progress: status.Progress,
			Message:  status.Message,
		}
		if task.TaskID == "" {
			task.TaskID = taskID
		}
		if cb.OnProgress != nil {
			cb.OnProgress(task)
		}

		if task.Status.Terminal() {
			result, err := e.fetchResult(ctx, taskID)
			if err != nil {
				return nil, err
			}
			if task.Status == TaskFailed {
				msg := result.ErrorMessage
				if msg == "" {
					msg = task.Message
				}
				return result, &GenerationFailedError{TaskID: taskID, Message: msg}
			}
			e.logger.Info("task completed", "task_id", taskID, "attempts", attempts, "elapsed", e.clock.Now().Sub(start))
			return result, nil
		}

		if err := e.wait(ctx, e.cfg.Interval); err != nil {
			return nil, err
		}
	}
}

// fetchResult performs the single post-terminal result fetch, with a short
// retry ladder since the task itself is already settled.
func (e *PollingEngine) fetchResult(ctx context.Context, taskID string) (*jobrunner.ResultOut, error) {
	ladder := []time.Duration{1 * time.Second, 2 * time.Second}

	var lastErr error
	for i := 0; i < len(ladder)+1; i++ {
		result, err := e.client.GetTaskResult(taskID)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !jobrunner.IsTransient(err) {
			break
		}
		if i < len(ladder) {
			if err := e.wait(ctx, ladder[i]); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("failed to fetch task result: %w", lastErr)
}

func (e *PollingEngine) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.clock.After(d):
		return nil
	}
}
