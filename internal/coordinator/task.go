package coordinator

import (
	"time"

	"github.com/vuongph/meeting-asr-be/internal/store"
)

// Task is the coordinator's in-memory view of one admitted job. It lives in
// the queue until dispatched, then in the active set until it reaches a
// terminal state. The coordinator mutex guards all fields after admission.
type Task struct {
	JobID        int64
	UserID       int64
	FilePath     string
	Filename     string
	Priority     int // stored and reported, does not reorder the queue
	EnqueuedAt   time.Time
	Status       store.Status
	Progress     float64
	ErrorMessage string
}

// TaskStatus is a point-in-time snapshot of a task, as returned by StatusFor.
type TaskStatus struct {
	JobID         int64        `json:"job_id"`
	Filename      string       `json:"filename"`
	Status        store.Status `json:"status"`
	Progress      float64      `json:"progress"`
	ErrorMessage  string       `json:"error_message,omitempty"`
	QueuePosition int          `json:"queue_position,omitempty"`
}

// QueueStatus summarizes a single user's view of the queue.
type QueueStatus struct {
	ActiveJobs     int          `json:"active_jobs"`
	QueuedJobs     int          `json:"queued_jobs"`
	TotalQueueSize int          `json:"total_queue_size"`
	Jobs           []TaskStatus `json:"jobs"`
}

func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
