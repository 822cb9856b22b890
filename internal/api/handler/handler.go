package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vuongph/meeting-asr-be/internal/api/dto"
	"github.com/vuongph/meeting-asr-be/internal/coordinator"
	"github.com/vuongph/meeting-asr-be/internal/store"
)

// JobQueue is the coordinator surface the handlers call. Satisfied by
// *coordinator.Coordinator.
type JobQueue interface {
	Admit(ctx context.Context, jobID, userID int64, filePath, filename string, priority int) bool
	Cancel(ctx context.Context, jobID, userID int64) bool
	StatusFor(userID int64) coordinator.QueueStatus
}

// JobStore is the job record surface the handlers call. Satisfied by
// *postgres.Storage.
type JobStore interface {
	CreateJob(ctx context.Context, job *store.Job) error
	GetJobByID(ctx context.Context, jobID int64) (*store.Job, error)
	ListJobsByOwner(ctx context.Context, ownerID int64) ([]store.Job, error)
	DeleteJob(ctx context.Context, jobID, ownerID int64) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger *slog.Logger
	Queue  JobQueue
	Store  JobStore
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger *slog.Logger
	queue  JobQueue
	store  JobStore
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		queue:  deps.Queue,
		store:  deps.Store,
	}
}

// userID extracts the authenticated user id from the X-User-ID header set
// by the auth proxy in front of this service.
func userID(c *gin.Context) (int64, bool) {
	raw := c.GetHeader("X-User-ID")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "X-User-ID header is required",
		})
		return 0, false
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "X-User-ID must be a positive integer",
		})
		return 0, false
	}

	return id, true
}

// jobID extracts and validates the job_id path parameter
func jobID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("job_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a positive integer",
		})
		return 0, false
	}

	return id, true
}

func toJobResponse(job *store.Job) dto.JobResponse {
	resp := dto.JobResponse{
		JobID:        job.ID,
		OwnerID:      job.OwnerID,
		Filename:     job.Filename,
		Status:       job.Status,
		Progress:     job.Progress,
		Transcript:   job.Transcript,
		TimingInfo:   job.TimingInfo,
		Summary:      job.Summary,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
	}
	if job.StartedAt != nil {
		resp.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		resp.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	return resp
}
