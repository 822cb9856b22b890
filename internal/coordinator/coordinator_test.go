package coordinator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vuongph/meeting-asr-be/internal/store"
)

// fakeStore is an in-memory JobStore. Updates create the record when it is
// missing, mirroring how the coordinator tolerates a store it did not seed.
type fakeStore struct {
	mu   sync.Mutex
	jobs map[int64]*store.Job
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[int64]*store.Job)}
}

func (s *fakeStore) GetJobByID(_ context.Context, jobID int64) (*store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *fakeStore) UpdateJobStatus(_ context.Context, jobID int64, status store.Status, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		job = &store.Job{ID: jobID}
		s.jobs[jobID] = job
	}
	job.Status = status
	job.ErrorMessage = errorMsg
	return nil
}

func (s *fakeStore) UpdateJobProgress(_ context.Context, jobID int64, progress float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		job = &store.Job{ID: jobID}
		s.jobs[jobID] = job
	}
	job.Progress = progress
	return nil
}

func (s *fakeStore) drop(jobID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
}

func (s *fakeStore) statusOf(jobID int64) (store.Status, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return "", ""
	}
	return job.Status, job.ErrorMessage
}

func (s *fakeStore) progressOf(jobID int64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return 0
	}
	return job.Progress
}

type sentEvent struct {
	userID int64
	event  Event
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentEvent
}

func (n *fakeNotifier) NotifyUser(_ context.Context, userID int64, event Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentEvent{userID: userID, event: event})
	return nil
}

func (n *fakeNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		kinds = append(kinds, s.event.Kind)
	}
	return kinds
}

func (n *fakeNotifier) find(kind string) (Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, s := range n.sent {
		if s.event.Kind == kind {
			return s.event, true
		}
	}
	return Event{}, false
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCoordinator(st JobStore, maxConcurrent, maxQueue, maxPerUser int) *Coordinator {
	return New(&Config{
		Logger:            testLogger(),
		Store:             st,
		MaxConcurrentJobs: maxConcurrent,
		MaxQueueSize:      maxQueue,
		MaxJobsPerUser:    maxPerUser,
		PollInterval:      10 * time.Millisecond,
	})
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func stopCoordinator(t *testing.T, c *Coordinator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
}

func TestAdmitRejectsOverPerUserLimit(t *testing.T) {
	st := newFakeStore()
	notifier := &fakeNotifier{}
	c := newTestCoordinator(st, 1, 10, 2)
	c.RegisterNotifier(notifier)

	ctx := context.Background()
	assert.True(t, c.Admit(ctx, 1, 7, "/tmp/a.wav", "a.wav", 0))
	assert.True(t, c.Admit(ctx, 2, 7, "/tmp/b.wav", "b.wav", 0))
	assert.False(t, c.Admit(ctx, 3, 7, "/tmp/c.wav", "c.wav", 0))

	// Other users are unaffected by one user hitting the cap.
	assert.True(t, c.Admit(ctx, 4, 8, "/tmp/d.wav", "d.wav", 0))

	event, ok := notifier.find(EventError)
	require.True(t, ok)
	assert.Contains(t, event.Message, "Too many concurrent jobs")

	status, _ := st.statusOf(3)
	assert.NotEqual(t, store.StatusQueued, status, "rejected job must not be persisted as queued")
}

func TestAdmitRejectsWhenQueueFull(t *testing.T) {
	st := newFakeStore()
	notifier := &fakeNotifier{}
	c := newTestCoordinator(st, 1, 2, 10)
	c.RegisterNotifier(notifier)

	ctx := context.Background()
	assert.True(t, c.Admit(ctx, 1, 1, "/tmp/a.wav", "a.wav", 0))
	assert.True(t, c.Admit(ctx, 2, 2, "/tmp/b.wav", "b.wav", 0))
	assert.False(t, c.Admit(ctx, 3, 3, "/tmp/c.wav", "c.wav", 0))

	event, ok := notifier.find(EventError)
	require.True(t, ok)
	assert.Contains(t, event.Message, "queue is full")
}

func TestAdmitReportsQueuePosition(t *testing.T) {
	st := newFakeStore()
	notifier := &fakeNotifier{}
	c := newTestCoordinator(st, 1, 10, 10)
	c.RegisterNotifier(notifier)

	ctx := context.Background()
	require.True(t, c.Admit(ctx, 1, 5, "/tmp/a.wav", "a.wav", 0))
	require.True(t, c.Admit(ctx, 2, 5, "/tmp/b.wav", "b.wav", 0))

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.sent, 2)
	assert.Equal(t, EventJobQueued, notifier.sent[0].event.Kind)
	assert.Equal(t, 1, notifier.sent[0].event.QueuePosition)
	assert.Equal(t, 2, notifier.sent[1].event.QueuePosition)

	status, _ := st.statusOf(1)
	assert.Equal(t, store.StatusQueued, status)
}

func TestCancelQueuedJob(t *testing.T) {
	st := newFakeStore()
	notifier := &fakeNotifier{}
	c := newTestCoordinator(st, 1, 10, 2)
	c.RegisterNotifier(notifier)

	ctx := context.Background()
	require.True(t, c.Admit(ctx, 1, 7, "/tmp/a.wav", "a.wav", 0))
	require.True(t, c.Admit(ctx, 2, 7, "/tmp/b.wav", "b.wav", 0))

	assert.True(t, c.Cancel(ctx, 1, 7))
	assert.False(t, c.Cancel(ctx, 1, 7), "cancel is not idempotent; the job is already gone")

	status, _ := st.statusOf(1)
	assert.Equal(t, store.StatusCancelled, status)

	event, ok := notifier.find(EventJobCancelled)
	require.True(t, ok)
	assert.Equal(t, int64(1), event.JobID)

	// The owner's slot is released, so another admit fits under the cap.
	assert.True(t, c.Admit(ctx, 3, 7, "/tmp/c.wav", "c.wav", 0))

	queueStatus := c.StatusFor(7)
	assert.Equal(t, 2, queueStatus.QueuedJobs)
	assert.Equal(t, 2, queueStatus.TotalQueueSize)
}

func TestCancelWrongOwner(t *testing.T) {
	st := newFakeStore()
	c := newTestCoordinator(st, 1, 10, 2)

	ctx := context.Background()
	require.True(t, c.Admit(ctx, 1, 7, "/tmp/a.wav", "a.wav", 0))

	assert.False(t, c.Cancel(ctx, 1, 8))

	status, _ := st.statusOf(1)
	assert.Equal(t, store.StatusQueued, status)
}

func TestCancelRunningJobFails(t *testing.T) {
	st := newFakeStore()
	c := newTestCoordinator(st, 1, 10, 2)

	release := make(chan struct{})
	c.RegisterHandler(func(ctx context.Context, jobID int64, filePath string) error {
		<-release
		return nil
	})
	c.Start()
	defer func() {
		close(release)
		stopCoordinator(t, c)
	}()

	ctx := context.Background()
	require.True(t, c.Admit(ctx, 1, 7, "/tmp/a.wav", "a.wav", 0))

	waitFor(t, func() bool {
		return c.StatusFor(7).ActiveJobs == 1
	}, "job never reached an executor")

	assert.False(t, c.Cancel(ctx, 1, 7), "running jobs cannot be cancelled")
}

func TestProcessingSuccess(t *testing.T) {
	st := newFakeStore()
	notifier := &fakeNotifier{}
	c := newTestCoordinator(st, 2, 10, 2)
	c.RegisterNotifier(notifier)

	c.RegisterHandler(func(ctx context.Context, jobID int64, filePath string) error {
		// Handlers write their own terminal status, like the transcriber does.
		return st.UpdateJobStatus(ctx, jobID, store.StatusCompleted, "")
	})
	c.Start()
	defer stopCoordinator(t, c)

	ctx := context.Background()
	require.True(t, c.Admit(ctx, 1, 7, "/tmp/a.wav", "a.wav", 0))

	waitFor(t, func() bool {
		status, _ := st.statusOf(1)
		return status == store.StatusCompleted && st.progressOf(1) == 100
	}, "job never completed")

	waitFor(t, func() bool {
		_, ok := notifier.find(EventJobCompleted)
		return ok
	}, "completion event never sent")

	event, _ := notifier.find(EventJobCompleted)
	assert.Equal(t, string(store.StatusCompleted), event.Status)
	require.NotNil(t, event.Progress)
	assert.Equal(t, float64(100), *event.Progress)

	kinds := notifier.kinds()
	assert.Contains(t, kinds, EventJobQueued)
	assert.Contains(t, kinds, EventJobStarted)

	waitFor(t, func() bool {
		s := c.StatusFor(7)
		return s.ActiveJobs == 0 && s.QueuedJobs == 0
	}, "finished job still occupies the owner's slot")

	// The freed slot accepts new work.
	assert.True(t, c.Admit(ctx, 2, 7, "/tmp/b.wav", "b.wav", 0))
	assert.True(t, c.Admit(ctx, 3, 7, "/tmp/c.wav", "c.wav", 0))
}

func TestProcessingFailure(t *testing.T) {
	st := newFakeStore()
	notifier := &fakeNotifier{}
	c := newTestCoordinator(st, 1, 10, 2)
	c.RegisterNotifier(notifier)

	c.RegisterHandler(func(ctx context.Context, jobID int64, filePath string) error {
		return errors.New("decode failed: unsupported codec")
	})
	c.Start()
	defer stopCoordinator(t, c)

	ctx := context.Background()
	require.True(t, c.Admit(ctx, 1, 7, "/tmp/a.wav", "a.wav", 0))

	waitFor(t, func() bool {
		status, _ := st.statusOf(1)
		return status == store.StatusFailed
	}, "job never failed")

	_, errorMsg := st.statusOf(1)
	assert.Equal(t, "decode failed: unsupported codec", errorMsg)

	waitFor(t, func() bool {
		_, ok := notifier.find(EventJobFailed)
		return ok
	}, "failure event never sent")

	event, _ := notifier.find(EventJobFailed)
	assert.Equal(t, int64(1), event.JobID)
	assert.Equal(t, "decode failed: unsupported codec", event.Error)
}

func TestHandlerPanicFailsJob(t *testing.T) {
	st := newFakeStore()
	c := newTestCoordinator(st, 1, 10, 2)

	c.RegisterHandler(func(ctx context.Context, jobID int64, filePath string) error {
		panic("corrupt input")
	})
	c.Start()
	defer stopCoordinator(t, c)

	ctx := context.Background()
	require.True(t, c.Admit(ctx, 1, 7, "/tmp/a.wav", "a.wav", 0))

	waitFor(t, func() bool {
		status, _ := st.statusOf(1)
		return status == store.StatusFailed
	}, "panicked job never failed")

	_, errorMsg := st.statusOf(1)
	assert.Contains(t, errorMsg, "processing handler panicked")

	// The executor survived the panic and takes the next job.
	require.True(t, c.Admit(ctx, 2, 8, "/tmp/b.wav", "b.wav", 0))
	waitFor(t, func() bool {
		status, _ := st.statusOf(2)
		return status == store.StatusFailed
	}, "executor did not recover after a panic")
}

func TestNoHandlerFailsJob(t *testing.T) {
	st := newFakeStore()
	c := newTestCoordinator(st, 1, 10, 2)
	c.Start()
	defer stopCoordinator(t, c)

	ctx := context.Background()
	require.True(t, c.Admit(ctx, 1, 7, "/tmp/a.wav", "a.wav", 0))

	waitFor(t, func() bool {
		status, _ := st.statusOf(1)
		return status == store.StatusFailed
	}, "job without a handler never failed")

	_, errorMsg := st.statusOf(1)
	assert.Equal(t, ErrNoHandler.Error(), errorMsg)
}

func TestFIFOOrderSingleExecutor(t *testing.T) {
	st := newFakeStore()
	c := newTestCoordinator(st, 1, 10, 10)

	var mu sync.Mutex
	var order []int64
	c.RegisterHandler(func(ctx context.Context, jobID int64, filePath string) error {
		mu.Lock()
		order = append(order, jobID)
		mu.Unlock()
		return st.UpdateJobStatus(ctx, jobID, store.StatusCompleted, "")
	})

	ctx := context.Background()
	require.True(t, c.Admit(ctx, 1, 7, "/tmp/a.wav", "a.wav", 0))
	require.True(t, c.Admit(ctx, 2, 7, "/tmp/b.wav", "b.wav", 5))
	require.True(t, c.Admit(ctx, 3, 7, "/tmp/c.wav", "c.wav", 9))

	c.Start()
	defer stopCoordinator(t, c)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, "not all jobs ran")

	mu.Lock()
	defer mu.Unlock()
	// Priority never reorders; admission order is execution order.
	assert.Equal(t, []int64{1, 2, 3}, order)
}

func TestMissingRecordAssumedCompleted(t *testing.T) {
	st := newFakeStore()
	notifier := &fakeNotifier{}
	c := newTestCoordinator(st, 1, 10, 2)
	c.RegisterNotifier(notifier)

	c.RegisterHandler(func(ctx context.Context, jobID int64, filePath string) error {
		st.drop(jobID)
		return nil
	})
	c.Start()
	defer stopCoordinator(t, c)

	ctx := context.Background()
	require.True(t, c.Admit(ctx, 1, 7, "/tmp/a.wav", "a.wav", 0))

	waitFor(t, func() bool {
		_, ok := notifier.find(EventJobCompleted)
		return ok
	}, "job never resolved")

	event, _ := notifier.find(EventJobCompleted)
	assert.Equal(t, string(store.StatusCompleted), event.Status)
	require.NotNil(t, event.Progress)
	assert.Equal(t, float64(100), *event.Progress)
}

func TestNonTerminalRecordMirrored(t *testing.T) {
	st := newFakeStore()
	notifier := &fakeNotifier{}
	c := newTestCoordinator(st, 1, 10, 2)
	c.RegisterNotifier(notifier)

	// Handler returns without writing a terminal status; the record stays
	// PROCESSING and the coordinator surfaces it as-is.
	c.RegisterHandler(func(ctx context.Context, jobID int64, filePath string) error {
		return st.UpdateJobProgress(ctx, jobID, 40)
	})
	c.Start()
	defer stopCoordinator(t, c)

	ctx := context.Background()
	require.True(t, c.Admit(ctx, 1, 7, "/tmp/a.wav", "a.wav", 0))

	waitFor(t, func() bool {
		_, ok := notifier.find(EventJobCompleted)
		return ok
	}, "job never resolved")

	event, _ := notifier.find(EventJobCompleted)
	assert.Equal(t, string(store.StatusProcessing), event.Status)
	require.NotNil(t, event.Progress)
	assert.Equal(t, float64(40), *event.Progress)
}

func TestStatusForSeparatesUsers(t *testing.T) {
	st := newFakeStore()
	c := newTestCoordinator(st, 1, 10, 5)

	ctx := context.Background()
	require.True(t, c.Admit(ctx, 1, 7, "/tmp/a.wav", "a.wav", 0))
	require.True(t, c.Admit(ctx, 2, 8, "/tmp/b.wav", "b.wav", 0))
	require.True(t, c.Admit(ctx, 3, 7, "/tmp/c.wav", "c.wav", 0))

	status := c.StatusFor(7)
	assert.Equal(t, 0, status.ActiveJobs)
	assert.Equal(t, 2, status.QueuedJobs)
	assert.Equal(t, 3, status.TotalQueueSize)
	require.Len(t, status.Jobs, 2)
	// Positions count only the user's own queued jobs.
	assert.Equal(t, 1, status.Jobs[0].QueuePosition)
	assert.Equal(t, 2, status.Jobs[1].QueuePosition)

	other := c.StatusFor(8)
	assert.Equal(t, 1, other.QueuedJobs)
	assert.Equal(t, 3, other.TotalQueueSize)
}

func TestStartIsIdempotent(t *testing.T) {
	st := newFakeStore()
	c := newTestCoordinator(st, 2, 10, 2)

	c.Start()
	c.Start()
	stopCoordinator(t, c)

	// Stopping twice is also harmless.
	assert.NoError(t, c.Stop(context.Background()))
}

func TestStopTimesOutOnStuckJob(t *testing.T) {
	st := newFakeStore()
	c := newTestCoordinator(st, 1, 10, 2)

	release := make(chan struct{})
	c.RegisterHandler(func(ctx context.Context, jobID int64, filePath string) error {
		<-release
		return st.UpdateJobStatus(ctx, jobID, store.StatusCompleted, "")
	})
	c.Start()

	ctx := context.Background()
	require.True(t, c.Admit(ctx, 1, 7, "/tmp/a.wav", "a.wav", 0))

	waitFor(t, func() bool {
		return c.StatusFor(7).ActiveJobs == 1
	}, "job never reached an executor")

	stopCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Stop(stopCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	waitFor(t, func() bool {
		status, _ := st.statusOf(1)
		return status == store.StatusCompleted
	}, "in-flight job never finished after release")
}

// panickyNotifier panics on the first job_started emit and behaves normally
// afterwards.
type panickyNotifier struct {
	fakeNotifier
	panicMu  sync.Mutex
	panicked bool
}

func (n *panickyNotifier) NotifyUser(ctx context.Context, userID int64, event Event) error {
	if event.Kind == EventJobStarted {
		n.panicMu.Lock()
		first := !n.panicked
		n.panicked = true
		n.panicMu.Unlock()
		if first {
			panic("notifier transport wedged")
		}
	}
	return n.fakeNotifier.NotifyUser(ctx, userID, event)
}

func TestNotifierPanicDoesNotStrandJob(t *testing.T) {
	st := newFakeStore()
	notifier := &panickyNotifier{}
	c := newTestCoordinator(st, 1, 10, 2)
	c.RegisterNotifier(notifier)

	var mu sync.Mutex
	var ran []int64
	c.RegisterHandler(func(ctx context.Context, jobID int64, filePath string) error {
		mu.Lock()
		ran = append(ran, jobID)
		mu.Unlock()
		return st.UpdateJobStatus(ctx, jobID, store.StatusCompleted, "")
	})
	c.Start()
	defer stopCoordinator(t, c)

	ctx := context.Background()
	require.True(t, c.Admit(ctx, 1, 7, "/tmp/a.wav", "a.wav", 0))

	waitFor(t, func() bool {
		status, _ := st.statusOf(1)
		return status == store.StatusFailed
	}, "job hit by the panicking notifier never failed")

	_, errorMsg := st.statusOf(1)
	assert.Contains(t, errorMsg, "panicked")

	event, ok := notifier.find(EventJobFailed)
	require.True(t, ok)
	assert.Equal(t, int64(1), event.JobID)

	// The stranded job's slot is released, not leaked until restart.
	waitFor(t, func() bool {
		s := c.StatusFor(7)
		return s.ActiveJobs == 0 && s.QueuedJobs == 0
	}, "failed job still occupies the owner's slot")

	require.True(t, c.Admit(ctx, 2, 7, "/tmp/b.wav", "b.wav", 0))
	require.True(t, c.Admit(ctx, 3, 7, "/tmp/c.wav", "c.wav", 0))
	waitFor(t, func() bool {
		a, _ := st.statusOf(2)
		b, _ := st.statusOf(3)
		return a == store.StatusCompleted && b == store.StatusCompleted
	}, "executor did not keep serving jobs after the panic")

	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, ran, int64(1), "a job that never started must not reach the handler")
}

// unavailableStore fails every operation, simulating an unreachable database.
type unavailableStore struct{}

func (unavailableStore) GetJobByID(context.Context, int64) (*store.Job, error) {
	return nil, errors.New("store offline")
}

func (unavailableStore) UpdateJobStatus(context.Context, int64, store.Status, string) error {
	return errors.New("store offline")
}

func (unavailableStore) UpdateJobProgress(context.Context, int64, float64) error {
	return errors.New("store offline")
}

func TestStoreFailuresTolerated(t *testing.T) {
	t.Run("successful job completes in memory", func(t *testing.T) {
		notifier := &fakeNotifier{}
		c := newTestCoordinator(unavailableStore{}, 1, 10, 2)
		c.RegisterNotifier(notifier)
		c.RegisterHandler(func(ctx context.Context, jobID int64, filePath string) error {
			return nil
		})
		c.Start()
		defer stopCoordinator(t, c)

		ctx := context.Background()
		require.True(t, c.Admit(ctx, 1, 7, "/tmp/a.wav", "a.wav", 0))

		waitFor(t, func() bool {
			_, ok := notifier.find(EventJobCompleted)
			return ok
		}, "job never completed with the store down")

		event, _ := notifier.find(EventJobCompleted)
		assert.Equal(t, string(store.StatusCompleted), event.Status)
		require.NotNil(t, event.Progress)
		assert.Equal(t, float64(100), *event.Progress)

		kinds := notifier.kinds()
		assert.Contains(t, kinds, EventJobQueued)
		assert.Contains(t, kinds, EventJobStarted)

		waitFor(t, func() bool {
			s := c.StatusFor(7)
			return s.ActiveJobs == 0 && s.QueuedJobs == 0
		}, "finished job still occupies the owner's slot")
	})

	t.Run("failing job still reports failure", func(t *testing.T) {
		notifier := &fakeNotifier{}
		c := newTestCoordinator(unavailableStore{}, 1, 10, 2)
		c.RegisterNotifier(notifier)
		c.RegisterHandler(func(ctx context.Context, jobID int64, filePath string) error {
			return errors.New("decode failed")
		})
		c.Start()
		defer stopCoordinator(t, c)

		ctx := context.Background()
		require.True(t, c.Admit(ctx, 1, 7, "/tmp/a.wav", "a.wav", 0))

		waitFor(t, func() bool {
			_, ok := notifier.find(EventJobFailed)
			return ok
		}, "failure event never sent with the store down")

		event, _ := notifier.find(EventJobFailed)
		assert.Equal(t, "decode failed", event.Error)
	})

	t.Run("cancel still works", func(t *testing.T) {
		notifier := &fakeNotifier{}
		c := newTestCoordinator(unavailableStore{}, 1, 10, 2)
		c.RegisterNotifier(notifier)

		ctx := context.Background()
		require.True(t, c.Admit(ctx, 1, 7, "/tmp/a.wav", "a.wav", 0))
		assert.True(t, c.Cancel(ctx, 1, 7))

		_, ok := notifier.find(EventJobCancelled)
		assert.True(t, ok)
		assert.Equal(t, 0, c.StatusFor(7).QueuedJobs)
	})
}

func TestNilNotifierIsSilent(t *testing.T) {
	st := newFakeStore()
	c := newTestCoordinator(st, 1, 10, 2)

	c.RegisterHandler(func(ctx context.Context, jobID int64, filePath string) error {
		return st.UpdateJobStatus(ctx, jobID, store.StatusCompleted, "")
	})
	c.Start()
	defer stopCoordinator(t, c)

	ctx := context.Background()
	require.True(t, c.Admit(ctx, 1, 7, "/tmp/a.wav", "a.wav", 0))
	require.True(t, c.Admit(ctx, 2, 7, "/tmp/b.wav", "b.wav", 0))
	assert.False(t, c.Admit(ctx, 3, 7, "/tmp/c.wav", "c.wav", 0))

	waitFor(t, func() bool {
		a, _ := st.statusOf(1)
		b, _ := st.statusOf(2)
		return a == store.StatusCompleted && b == store.StatusCompleted
	}, "jobs never completed without a notifier")
}
