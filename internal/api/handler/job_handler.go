package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vuongph/meeting-asr-be/internal/api/dto"
	"github.com/vuongph/meeting-asr-be/internal/store"
)

// CreateJob handles POST /api/v1/jobs
// Creates a job record and submits it to the coordinator for processing
func (h *JobHandler) CreateJob(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job := store.Job{
		OwnerID:   uid,
		Filename:  req.Filename,
		FilePath:  req.FilePath,
		Status:    store.StatusQueued,
		CreatedAt: time.Now(),
	}

	if err := h.store.CreateJob(c.Request.Context(), &job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create job",
		})
		return
	}

	if !h.queue.Admit(c.Request.Context(), job.ID, uid, req.FilePath, req.Filename, req.Priority) {
		// The record is orphaned if it stays around after a rejection
		if err := h.store.DeleteJob(c.Request.Context(), job.ID, uid); err != nil {
			h.logger.Warn("Failed to delete rejected job record",
				slog.Int64("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": "Job was not admitted: queue is full or you have too many active jobs",
		})
		return
	}

	c.JSON(http.StatusAccepted, toJobResponse(&job))
}

// GetJob handles GET /api/v1/jobs/:job_id
// Retrieves detailed information about a specific job
func (h *JobHandler) GetJob(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	id, ok := jobID(c)
	if !ok {
		return
	}

	job, err := h.store.GetJobByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	if job.OwnerID != uid {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
		return
	}

	c.JSON(http.StatusOK, toJobResponse(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists the requesting user's jobs, newest first
func (h *JobHandler) ListJobs(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	jobs, err := h.store.ListJobsByOwner(c.Request.Context(), uid)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	resp := dto.ListJobsResponse{Jobs: make([]dto.JobResponse, len(jobs))}
	for i := range jobs {
		resp.Jobs[i] = toJobResponse(&jobs[i])
	}

	c.JSON(http.StatusOK, resp)
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
// Cancels a job that has not been dispatched yet
func (h *JobHandler) CancelJob(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	id, ok := jobID(c)
	if !ok {
		return
	}

	if !h.queue.Cancel(c.Request.Context(), id, uid) {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Job cannot be cancelled: already running, finished, or not yours",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":    id,
		"cancelled": true,
	})
}

// DeleteJob handles DELETE /api/v1/jobs/:job_id
// Permanently deletes a finished job record
func (h *JobHandler) DeleteJob(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	id, ok := jobID(c)
	if !ok {
		return
	}

	job, err := h.store.GetJobByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	if job.OwnerID != uid {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
		return
	}

	if !job.Status.Terminal() {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Job is still queued or running; cancel it first",
		})
		return
	}

	if err := h.store.DeleteJob(c.Request.Context(), id, uid); err != nil {
		h.logger.Error("Failed to delete job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete job",
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// QueueStatus handles GET /api/v1/queue/status
// Returns the live coordinator view of the requesting user's jobs
func (h *JobHandler) QueueStatus(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, h.queue.StatusFor(uid))
}
