package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vuongph/meeting-asr-be/internal/store"
)

// ErrNoHandler is returned on the job's error path when a job is dispatched
// before RegisterHandler was called. It fails that job, not the coordinator.
var ErrNoHandler = errors.New("no processing handler configured")

// JobStore is the narrow slice of the job store the coordinator needs to
// mirror task state transitions. Store failures are logged and tolerated;
// the in-memory state stays authoritative for the life of the process.
type JobStore interface {
	GetJobByID(ctx context.Context, jobID int64) (*store.Job, error)
	UpdateJobStatus(ctx context.Context, jobID int64, status store.Status, errorMsg string) error
	UpdateJobProgress(ctx context.Context, jobID int64, progress float64) error
}

// ProcessFunc performs the actual transcription work for one job. It is
// expected to be long-running, to write transcript fields and a terminal
// status through its own store handle, and to return an error on failure.
type ProcessFunc func(ctx context.Context, jobID int64, filePath string) error

// Config holds coordinator configuration
type Config struct {
	Logger            *slog.Logger
	Store             JobStore
	MaxConcurrentJobs int
	MaxQueueSize      int
	MaxJobsPerUser    int
	PollInterval      time.Duration
}

// Coordinator admits, queues, throttles, executes, and reports on
// transcription jobs for many concurrent users. One mutex guards the queue,
// the active set, and the per-user counts; processing handlers always run
// outside it.
type Coordinator struct {
	logger         *slog.Logger
	store          JobStore
	maxConcurrent  int
	maxQueueSize   int
	maxJobsPerUser int
	pollInterval   time.Duration

	mu         sync.Mutex
	queue      []*Task         // FIFO backlog of admitted, not yet dispatched tasks
	active     map[int64]*Task // job_id -> dispatched task, not yet terminal
	userCounts map[int64]int   // user_id -> tasks in queue + active
	handler    ProcessFunc
	notifier   Notifier
	started    bool

	execCh chan *Task
	wakeCh chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a coordinator. Limits are assumed validated by config loading.
func New(cfg *Config) *Coordinator {
	return &Coordinator{
		logger:         cfg.Logger,
		store:          cfg.Store,
		maxConcurrent:  cfg.MaxConcurrentJobs,
		maxQueueSize:   cfg.MaxQueueSize,
		maxJobsPerUser: cfg.MaxJobsPerUser,
		pollInterval:   cfg.PollInterval,
		active:         make(map[int64]*Task),
		userCounts:     make(map[int64]int),
		execCh:         make(chan *Task),
		wakeCh:         make(chan struct{}, 1),
	}
}

// RegisterHandler wires in the processing function. Must be called before
// the first job is dispatched; a job dispatched without a handler fails
// with ErrNoHandler.
func (c *Coordinator) RegisterHandler(handler ProcessFunc) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}

// RegisterNotifier wires in the notification sink. Without one, events are
// dropped after a debug log.
func (c *Coordinator) RegisterNotifier(notifier Notifier) {
	c.mu.Lock()
	c.notifier = notifier
	c.mu.Unlock()
}

// Start launches the dispatcher and the executor pool. Idempotent.
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return
	}
	c.started = true
	c.stopCh = make(chan struct{})

	c.wg.Add(1)
	go c.dispatchLoop()

	for i := 0; i < c.maxConcurrent; i++ {
		c.wg.Add(1)
		go c.executorLoop(i)
	}

	c.logger.Info("Job coordinator started",
		slog.Int("max_concurrent_jobs", c.maxConcurrent),
		slog.Int("max_queue_size", c.maxQueueSize),
		slog.Int("max_jobs_per_user", c.maxJobsPerUser),
	)
}

// Stop ends dispatch and waits for in-flight jobs to finish, bounded by the
// caller's context. Jobs still queued stay in memory and are dropped with
// the process; the queue does not survive restarts.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	close(c.stopCh)
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Job coordinator stopped")
		return nil
	case <-ctx.Done():
		c.logger.Warn("Timed out waiting for in-flight jobs to finish")
		return ctx.Err()
	}
}

// Admit decides whether a job may enter the queue. On acceptance the task is
// enqueued, the owner's count incremented, the QUEUED status persisted, and
// a job_queued event emitted with the task's position at insertion time.
// Rejections return false and emit an error event; the caller may retry
// later.
func (c *Coordinator) Admit(ctx context.Context, jobID, userID int64, filePath, filename string, priority int) bool {
	c.mu.Lock()

	if c.userCounts[userID] >= c.maxJobsPerUser {
		count := c.userCounts[userID]
		c.mu.Unlock()
		c.logger.Warn("Job rejected, user has too many active jobs",
			slog.Int64("job_id", jobID),
			slog.Int64("user_id", userID),
			slog.Int("active_jobs", count),
		)
		c.notify(ctx, userID, Event{
			Kind:    EventError,
			Message: "Too many concurrent jobs. Please wait for current jobs to complete.",
		})
		return false
	}

	if len(c.queue) >= c.maxQueueSize {
		c.mu.Unlock()
		c.logger.Warn("Job rejected, queue is full",
			slog.Int64("job_id", jobID),
			slog.Int64("user_id", userID),
			slog.Int("max_queue_size", c.maxQueueSize),
		)
		c.notify(ctx, userID, Event{
			Kind:    EventError,
			Message: "Job queue is full. Please try again later.",
		})
		return false
	}

	task := &Task{
		JobID:      jobID,
		UserID:     userID,
		FilePath:   filePath,
		Filename:   filename,
		Priority:   priority,
		EnqueuedAt: time.Now(),
		Status:     store.StatusQueued,
	}
	c.queue = append(c.queue, task)
	c.userCounts[userID]++
	position := len(c.queue)
	c.mu.Unlock()

	// The task is durably enqueued before the store write; the store status
	// is advisory for this in-memory queue.
	if err := c.store.UpdateJobStatus(ctx, jobID, store.StatusQueued, ""); err != nil {
		c.logger.Warn("Failed to persist QUEUED status",
			slog.Int64("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}

	c.notify(ctx, userID, Event{
		Kind:          EventJobQueued,
		JobID:         jobID,
		QueuePosition: position,
		Message:       fmt.Sprintf("Job %q has been queued for processing", filename),
	})

	c.logger.Info("Job admitted",
		slog.Int64("job_id", jobID),
		slog.Int64("user_id", userID),
		slog.Int("queue_position", position),
	)

	c.wake()
	return true
}

// Cancel removes a job from the queue before it is dispatched. Jobs already
// running cannot be cancelled and report false. The queue is rebuilt in
// place, preserving FIFO order of the remaining tasks.
func (c *Coordinator) Cancel(ctx context.Context, jobID, userID int64) bool {
	c.mu.Lock()
	var cancelled *Task
	kept := c.queue[:0]
	for _, task := range c.queue {
		if cancelled == nil && task.JobID == jobID && task.UserID == userID {
			cancelled = task
			continue
		}
		kept = append(kept, task)
	}
	c.queue = kept
	if cancelled != nil {
		cancelled.Status = store.StatusCancelled
		c.decrementUserLocked(userID)
	}
	c.mu.Unlock()

	if cancelled == nil {
		return false
	}

	if err := c.store.UpdateJobStatus(ctx, jobID, store.StatusCancelled, ""); err != nil {
		c.logger.Warn("Failed to persist CANCELLED status",
			slog.Int64("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}

	c.notify(ctx, userID, Event{
		Kind:    EventJobCancelled,
		JobID:   jobID,
		Message: fmt.Sprintf("Job %q has been cancelled", cancelled.Filename),
	})

	c.logger.Info("Job cancelled",
		slog.Int64("job_id", jobID),
		slog.Int64("user_id", userID),
	)

	return true
}

// StatusFor returns a point-in-time view of one user's active and queued
// jobs. Queue positions are 1-based among that user's own queued jobs.
func (c *Coordinator) StatusFor(userID int64) QueueStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := QueueStatus{
		TotalQueueSize: len(c.queue),
		Jobs:           []TaskStatus{},
	}

	for _, task := range c.active {
		if task.UserID != userID {
			continue
		}
		status.ActiveJobs++
		status.Jobs = append(status.Jobs, TaskStatus{
			JobID:        task.JobID,
			Filename:     task.Filename,
			Status:       task.Status,
			Progress:     task.Progress,
			ErrorMessage: task.ErrorMessage,
		})
	}

	for _, task := range c.queue {
		if task.UserID != userID {
			continue
		}
		status.QueuedJobs++
		status.Jobs = append(status.Jobs, TaskStatus{
			JobID:         task.JobID,
			Filename:      task.Filename,
			Status:        store.StatusQueued,
			Progress:      0,
			QueuePosition: status.QueuedJobs,
		})
	}

	return status
}

// wake nudges the dispatcher without blocking the admission path.
func (c *Coordinator) wake() {
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
}

// releaseTask removes a task from the active set and releases its owner's
// slot in the per-user accounting. Safe to call at most once per task per
// path; the floored decrement tolerates double cleanup.
func (c *Coordinator) releaseTask(task *Task) {
	c.mu.Lock()
	delete(c.active, task.JobID)
	c.decrementUserLocked(task.UserID)
	c.mu.Unlock()
}

func (c *Coordinator) decrementUserLocked(userID int64) {
	// floored at zero so a double cleanup cannot go negative
	if n := c.userCounts[userID] - 1; n > 0 {
		c.userCounts[userID] = n
	} else {
		delete(c.userCounts, userID)
	}
}

func (c *Coordinator) setTaskState(task *Task, status store.Status, progress float64, errorMsg string) {
	c.mu.Lock()
	task.Status = status
	task.Progress = clampProgress(progress)
	task.ErrorMessage = errorMsg
	c.mu.Unlock()
}
