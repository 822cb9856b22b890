package dto

import "github.com/vuongph/meeting-asr-be/internal/store"

type CreateJobRequest struct {
	Filename string `json:"filename" binding:"required"`
	FilePath string `json:"file_path" binding:"required"`
	Priority int    `json:"priority"`
}

type JobResponse struct {
	JobID        int64        `json:"job_id"`
	OwnerID      int64        `json:"owner_id"`
	Filename     string       `json:"filename"`
	Status       store.Status `json:"status"`
	Progress     float64      `json:"progress"`
	Transcript   string       `json:"transcript,omitempty"`
	TimingInfo   string       `json:"timing_info,omitempty"`
	Summary      string       `json:"summary,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	CreatedAt    string       `json:"created_at"`
	StartedAt    string       `json:"started_at,omitempty"`
	CompletedAt  string       `json:"completed_at,omitempty"`
}

type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}
