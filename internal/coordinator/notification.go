package coordinator

import (
	"context"
	"log/slog"
	"time"
)

// Event kinds pushed to users on job state changes.
const (
	EventJobQueued    = "job_queued"
	EventJobStarted   = "job_started"
	EventJobCompleted = "job_completed"
	EventJobFailed    = "job_failed"
	EventJobCancelled = "job_cancelled"
	EventError        = "error"
)

// Event is a notification payload for one user. Fields beyond Kind and
// Message are populated per kind; ID is assigned by the notifier transport.
type Event struct {
	ID            string   `json:"event_id,omitempty"`
	Kind          string   `json:"type"`
	JobID         int64    `json:"job_id,omitempty"`
	QueuePosition int      `json:"queue_position,omitempty"`
	Filename      string   `json:"filename,omitempty"`
	Status        string   `json:"status,omitempty"`
	Progress      *float64 `json:"progress,omitempty"`
	Error         string   `json:"error,omitempty"`
	Message       string   `json:"message"`
}

// Notifier delivers an event to every channel currently associated with a
// user. Delivery is best-effort; the coordinator bounds each attempt and
// never retries.
type Notifier interface {
	NotifyUser(ctx context.Context, userID int64, event Event) error
}

// notifyTimeout bounds a single notification attempt so a stuck transport
// cannot stall admission, dispatch, or completion paths.
const notifyTimeout = 5 * time.Second

// notify sends an event to the registered notifier, if any. A missing
// notifier makes notifications silent no-ops; a failing one is logged and
// forgotten.
func (c *Coordinator) notify(ctx context.Context, userID int64, event Event) {
	c.mu.Lock()
	notifier := c.notifier
	c.mu.Unlock()

	if notifier == nil {
		c.logger.Debug("No notifier registered, dropping event",
			slog.String("kind", event.Kind),
			slog.Int64("user_id", userID),
		)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	if err := notifier.NotifyUser(ctx, userID, event); err != nil {
		c.logger.Warn("Failed to notify user",
			slog.Int64("user_id", userID),
			slog.String("kind", event.Kind),
			slog.Int64("job_id", event.JobID),
			slog.String("error", err.Error()),
		)
	}
}

func progressPtr(p float64) *float64 {
	return &p
}
