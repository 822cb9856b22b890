package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/vuongph/meeting-asr-be/internal/store"
	"github.com/vuongph/meeting-asr-be/shared/postgresql"
)

// Storage handles all database operations on job records
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(pg *postgresql.Client, logger *slog.Logger) *Storage {
	return &Storage{
		db:     pg.GetDB(),
		logger: logger,
	}
}

// CreateJob inserts a new job record and fills in its generated id
func (s *Storage) CreateJob(ctx context.Context, job *store.Job) error {
	query := `
		INSERT INTO jobs (
			owner_id, filename, file_path, status, progress, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		RETURNING id
	`

	err := s.db.QueryRowContext(
		ctx,
		query,
		job.OwnerID,
		job.Filename,
		job.FilePath,
		job.Status,
		job.Progress,
		job.CreatedAt,
	).Scan(&job.ID)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("Job record created",
		slog.Int64("job_id", job.ID),
		slog.Int64("owner_id", job.OwnerID),
		slog.String("filename", job.Filename),
	)

	return nil
}

// GetJobByID retrieves a job record by its id
func (s *Storage) GetJobByID(ctx context.Context, jobID int64) (*store.Job, error) {
	query := `
		SELECT
			id, owner_id, filename, file_path, status, progress,
			transcript, timing_info, summary, error_message,
			created_at, started_at, completed_at
		FROM jobs
		WHERE id = $1
	`

	var job store.Job
	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// ListJobsByOwner returns all job records owned by a user, newest first
func (s *Storage) ListJobsByOwner(ctx context.Context, ownerID int64) ([]store.Job, error) {
	query := `
		SELECT
			id, owner_id, filename, file_path, status, progress,
			transcript, timing_info, summary, error_message,
			created_at, started_at, completed_at
		FROM jobs
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var jobs []store.Job
	if err := s.db.SelectContext(ctx, &jobs, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// UpdateJobStatus updates the job status and error message. The start and
// completion timestamps follow the status: PROCESSING stamps started_at,
// terminal statuses stamp completed_at.
func (s *Storage) UpdateJobStatus(ctx context.Context, jobID int64, status store.Status, errorMsg string) error {
	query := `
		UPDATE jobs
		SET status = $1::text,
			error_message = $2,
			started_at = CASE
				WHEN $1::text = $3::text THEN NOW()
				ELSE started_at
			END,
			completed_at = CASE
				WHEN $1::text IN ($4::text, $5::text, $6::text) THEN NOW()
				ELSE completed_at
			END
		WHERE id = $7
	`

	result, err := s.db.ExecContext(ctx, query,
		status,
		errorMsg,
		store.StatusProcessing,
		store.StatusCompleted,
		store.StatusFailed,
		store.StatusCancelled,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrJobNotFound
	}

	s.logger.Info("Job status updated",
		slog.Int64("job_id", jobID),
		slog.String("status", string(status)),
	)

	return nil
}

// UpdateJobProgress writes the job's progress, clamped to [0, 100]
func (s *Storage) UpdateJobProgress(ctx context.Context, jobID int64, progress float64) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	query := `
		UPDATE jobs
		SET progress = $1
		WHERE id = $2
	`

	result, err := s.db.ExecContext(ctx, query, progress, jobID)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrJobNotFound
	}

	return nil
}

// UpdateJobTranscript stores the transcript and speaker timing info
// produced by the transcriber
func (s *Storage) UpdateJobTranscript(ctx context.Context, jobID int64, transcript, timingInfo string) error {
	query := `
		UPDATE jobs
		SET transcript = $1,
			timing_info = $2
		WHERE id = $3
	`

	result, err := s.db.ExecContext(ctx, query, transcript, timingInfo, jobID)
	if err != nil {
		return fmt.Errorf("failed to update job transcript: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrJobNotFound
	}

	s.logger.Info("Job transcript stored",
		slog.Int64("job_id", jobID),
		slog.Int("transcript_size", len(transcript)),
	)

	return nil
}

// DeleteJob removes a job record owned by the given user
func (s *Storage) DeleteJob(ctx context.Context, jobID, ownerID int64) error {
	query := `
		DELETE FROM jobs
		WHERE id = $1 AND owner_id = $2
	`

	result, err := s.db.ExecContext(ctx, query, jobID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrJobNotFound
	}

	s.logger.Info("Job record deleted",
		slog.Int64("job_id", jobID),
		slog.Int64("owner_id", ownerID),
	)

	return nil
}
