package processing

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/vuongph/meeting-asr-be/internal/store"
)

// Store is the slice of the job store the transcriber writes results
// through. Satisfied by *postgres.Storage.
type Store interface {
	UpdateJobTranscript(ctx context.Context, jobID int64, transcript, timingInfo string) error
	UpdateJobStatus(ctx context.Context, jobID int64, status store.Status, errorMsg string) error
}

// Config holds transcriber configuration
type Config struct {
	Logger  *slog.Logger
	Store   Store
	Command string
	Args    []string
	Timeout time.Duration
}

// Transcriber runs an external transcription command against an audio file
// and stores the result. It implements the coordinator's processing handler
// contract: long-running, synchronous, terminal status written through the
// store before returning.
type Transcriber struct {
	logger  *slog.Logger
	store   Store
	command string
	args    []string
	timeout time.Duration
}

// NewTranscriber creates a new Transcriber instance
func NewTranscriber(cfg *Config) *Transcriber {
	return &Transcriber{
		logger:  cfg.Logger,
		store:   cfg.Store,
		command: cfg.Command,
		args:    cfg.Args,
		timeout: cfg.Timeout,
	}
}

// Process transcribes one audio file. The file path is appended to the
// configured command arguments; the transcript is read from stdout.
func (t *Transcriber) Process(ctx context.Context, jobID int64, filePath string) error {
	if t.command == "" {
		return fmt.Errorf("no transcriber command configured")
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	args := make([]string, 0, len(t.args)+1)
	args = append(args, t.args...)
	args = append(args, filePath)

	t.logger.Info("Running transcriber",
		slog.Int64("job_id", jobID),
		slog.String("command", t.command),
		slog.String("file_path", filePath),
	)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.command, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		detail := lastLine(stderr.String())
		if detail != "" {
			return fmt.Errorf("transcriber command failed: %w: %s", err, detail)
		}
		return fmt.Errorf("transcriber command failed: %w", err)
	}

	transcript := stdout.String()

	if err := t.store.UpdateJobTranscript(ctx, jobID, transcript, ""); err != nil {
		return fmt.Errorf("failed to store transcript: %w", err)
	}

	if err := t.store.UpdateJobStatus(ctx, jobID, store.StatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	t.logger.Info("Transcription finished",
		slog.Int64("job_id", jobID),
		slog.Int("transcript_size", len(transcript)),
		slog.Duration("duration", time.Since(start)),
	)

	return nil
}

// lastLine extracts the final non-empty stderr line for error messages
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
