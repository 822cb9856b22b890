package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vuongph/meeting-asr-be/internal/store"
)

// dispatchRecoverPause is how long the dispatcher backs off after a panicked
// iteration before resuming.
const dispatchRecoverPause = time.Second

// dispatchLoop is the single scheduling loop. It waits for a wake signal or
// the poll interval, then hands queued tasks to the executor pool in FIFO
// order. It never terminates on a bad iteration, only on shutdown.
func (c *Coordinator) dispatchLoop() {
	defer c.wg.Done()

	c.logger.Info("Dispatcher started",
		slog.Duration("poll_interval", c.pollInterval),
	)

	for {
		select {
		case <-c.stopCh:
			c.logger.Info("Dispatcher stopping")
			return
		case <-c.wakeCh:
		case <-time.After(c.pollInterval):
			// shutdown poll, not an error
		}

		if !c.dispatchQueued() {
			return
		}
	}
}

// dispatchQueued drains the queue head-first into the executor pool. It
// returns false when shutdown interrupts a handoff. A panic anywhere in the
// iteration is logged and the loop resumes after a short pause. Per-task
// side effects all happen on the executor goroutine, so a task handed off
// here is fully covered by the executor's failure and cleanup paths.
func (c *Coordinator) dispatchQueued() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Dispatcher recovered from panic",
				slog.Any("panic", r),
			)
			time.Sleep(dispatchRecoverPause)
			ok = true
		}
	}()

	for {
		task := c.takeNext()
		if task == nil {
			return true
		}

		select {
		case c.execCh <- task:
		case <-c.stopCh:
			c.logger.Warn("Shutdown before job reached an executor, dropping",
				slog.Int64("job_id", task.JobID),
			)
			c.releaseTask(task)
			return false
		}
	}
}

// takeNext pops the queue head and moves it into the active set under one
// lock, so a job is never in both structures, and never in neither.
func (c *Coordinator) takeNext() *Task {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return nil
	}
	task := c.queue[0]
	c.queue = c.queue[1:]
	task.Status = store.StatusProcessing
	c.active[task.JobID] = task
	return task
}

// executorLoop is one slot of the bounded execution pool. Each invocation of
// the processing handler occupies exactly one slot for its full duration.
func (c *Coordinator) executorLoop(slot int) {
	defer c.wg.Done()

	logger := c.logger.With(slog.Int("executor", slot))
	logger.Info("Executor started")

	for {
		select {
		case <-c.stopCh:
			logger.Info("Executor stopping")
			return
		case task := <-c.execCh:
			c.execute(task)
		}
	}
}

// execute runs one task to a terminal state and always releases it from the
// active set and the per-user accounting, whatever the outcome. The outer
// recover keeps the executor slot alive even if a failure-path notifier
// panics after the task was already marked failed.
func (c *Coordinator) execute(task *Task) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Executor recovered from panic",
				slog.Int64("job_id", task.JobID),
				slog.Any("panic", r),
			)
		}
	}()
	defer c.releaseTask(task)

	ctx := context.Background()

	if err := c.begin(ctx, task); err != nil {
		c.failTask(ctx, task, err)
		return
	}

	if err := c.invoke(ctx, task); err != nil {
		c.failTask(ctx, task, err)
		return
	}
	c.completeTask(ctx, task)
}

// begin persists the PROCESSING transition and announces the start. A panic
// here, such as a broken notifier during the job_started emit, becomes an
// error on the job's failure path instead of stranding the task in the
// active set.
func (c *Coordinator) begin(ctx context.Context, task *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job start announcement panicked: %v", r)
		}
	}()

	if err := c.store.UpdateJobStatus(ctx, task.JobID, store.StatusProcessing, ""); err != nil {
		c.logger.Warn("Failed to persist PROCESSING status",
			slog.Int64("job_id", task.JobID),
			slog.String("error", err.Error()),
		)
	}

	c.notify(ctx, task.UserID, Event{
		Kind:    EventJobStarted,
		JobID:   task.JobID,
		Message: fmt.Sprintf("Started processing %q", task.Filename),
	})

	c.logger.Info("Job dispatched",
		slog.Int64("job_id", task.JobID),
		slog.Int64("user_id", task.UserID),
		slog.Duration("queued_for", time.Since(task.EnqueuedAt)),
	)

	return nil
}

// invoke calls the processing handler, converting a panic into an error so
// one bad job cannot take down an executor.
func (c *Coordinator) invoke(ctx context.Context, task *Task) (err error) {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()

	if handler == nil {
		return ErrNoHandler
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processing handler panicked: %v", r)
		}
	}()

	return handler(ctx, task.JobID, task.FilePath)
}

// completeTask resolves a task whose handler returned without error. The
// handler is expected to have written transcript fields and a terminal
// status itself, so the job record is re-read and mirrored into the task.
func (c *Coordinator) completeTask(ctx context.Context, task *Task) {
	record, err := c.store.GetJobByID(ctx, task.JobID)
	switch {
	case errors.Is(err, store.ErrJobNotFound):
		// The record should exist; its absence means the store and the
		// in-memory queue disagree. Assume success, loudly.
		c.logger.Error("Job record missing after processing, assuming completed",
			slog.Int64("job_id", task.JobID),
		)
		c.setTaskState(task, store.StatusCompleted, 100, "")

	case err != nil:
		c.logger.Warn("Failed to re-read job record, assuming completed",
			slog.Int64("job_id", task.JobID),
			slog.String("error", err.Error()),
		)
		c.setTaskState(task, store.StatusCompleted, 100, "")

	case record.Status == store.StatusFailed:
		msg := record.ErrorMessage
		if msg == "" {
			msg = "transcription failed"
		}
		c.failTask(ctx, task, errors.New(msg))
		return

	case record.Status == store.StatusCompleted:
		// a completed job always reports exactly 100
		if err := c.store.UpdateJobProgress(ctx, task.JobID, 100); err != nil {
			c.logger.Warn("Failed to persist final progress",
				slog.Int64("job_id", task.JobID),
				slog.String("error", err.Error()),
			)
		}
		c.setTaskState(task, store.StatusCompleted, 100, "")

	default:
		// the handler returned without writing a terminal status; surface
		// whatever state it left behind
		c.setTaskState(task, record.Status, record.Progress, record.ErrorMessage)
	}

	c.mu.Lock()
	status := task.Status
	progress := task.Progress
	c.mu.Unlock()

	c.notify(ctx, task.UserID, Event{
		Kind:     EventJobCompleted,
		JobID:    task.JobID,
		Filename: task.Filename,
		Status:   string(status),
		Progress: progressPtr(progress),
		Message:  fmt.Sprintf("Finished processing %q", task.Filename),
	})

	c.logger.Info("Job finished",
		slog.Int64("job_id", task.JobID),
		slog.Int64("user_id", task.UserID),
		slog.String("status", string(status)),
	)
}

// failTask records a terminal failure: persisted if the store is reachable,
// mirrored in memory, and pushed to the owner so the caller is never left
// without an explanation.
func (c *Coordinator) failTask(ctx context.Context, task *Task, cause error) {
	c.logger.Error("Job processing failed",
		slog.Int64("job_id", task.JobID),
		slog.Int64("user_id", task.UserID),
		slog.String("error", cause.Error()),
	)

	if err := c.store.UpdateJobStatus(ctx, task.JobID, store.StatusFailed, cause.Error()); err != nil {
		c.logger.Warn("Failed to persist FAILED status",
			slog.Int64("job_id", task.JobID),
			slog.String("error", err.Error()),
		)
	}

	c.setTaskState(task, store.StatusFailed, task.Progress, cause.Error())

	c.notify(ctx, task.UserID, Event{
		Kind:    EventJobFailed,
		JobID:   task.JobID,
		Error:   cause.Error(),
		Message: fmt.Sprintf("Failed to process %q: %s", task.Filename, cause),
	})
}
