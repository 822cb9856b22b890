package store

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a job record.
type Status string

const (
	StatusQueued     Status = "QUEUED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

// Terminal reports whether a job in this status will never transition again.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

var (
	// ErrJobNotFound is returned when a job record does not exist
	ErrJobNotFound = errors.New("job not found")
)

// Job is the durable record of one transcription job.
type Job struct {
	ID           int64      `db:"id"`
	OwnerID      int64      `db:"owner_id"`
	Filename     string     `db:"filename"`
	FilePath     string     `db:"file_path"`
	Status       Status     `db:"status"`
	Progress     float64    `db:"progress"`
	Transcript   string     `db:"transcript"`
	TimingInfo   string     `db:"timing_info"`
	Summary      string     `db:"summary"`
	ErrorMessage string     `db:"error_message"`
	CreatedAt    time.Time  `db:"created_at"`
	StartedAt    *time.Time `db:"started_at"`
	CompletedAt  *time.Time `db:"completed_at"`
}
