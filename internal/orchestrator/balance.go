package orchestrator

import "log/slog"

// ProfileRefresher is the external Balance/Profile collaborator. The return
// value of the refresh is not consumed here.
type ProfileRefresher interface {
	Refresh() error
}

// BalanceReconciler triggers an out-of-band balance refresh after a terminal
// success. Failures are logged and swallowed: balance display is not
// safety-critical to the generation result.
type BalanceReconciler struct {
	refresher ProfileRefresher
	logger    *slog.Logger
}

func NewBalanceReconciler(refresher ProfileRefresher, logger *slog.Logger) *BalanceReconciler {
	return &BalanceReconciler{refresher: refresher, logger: logger}
}

func (b *BalanceReconciler) Notify(taskID string) {
	if b == nil || b.refresher == nil {
		return
	}
	if err := b.refresher.Refresh(); err != nil {
		b.logger.Warn("balance refresh failed", "task_id", taskID, "error", err)
		return
	}
	b.logger.Debug("balance refreshed", "task_id", taskID)
}
