package loader

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wallon-qodo/multi-term-sub001/internal/infrastructure/monitoring"
	"github.com/wallon-qodo/multi-term-sub001/internal/logging"
	"github.com/wallon-qodo/multi-term-sub001/internal/shared/types"
)

// Priority orders background loads. Higher values dequeue first; ties are
// FIFO within a tier.
type Priority int

const (
	PriorityDefault Priority = iota
	PriorityRecent
	PriorityVisible

	priorityCount = 3
)

// String returns the string representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityVisible:
		return "visible"
	case PriorityRecent:
		return "recent"
	case PriorityDefault:
		return "default"
	default:
		return "unknown"
	}
}

// TaskState tracks one workspace through the loader.
type TaskState int

const (
	StateEnqueued TaskState = iota
	StateLoading
	StateDone
	StateFailed
)

// String returns the string representation of the task state.
func (s TaskState) String() string {
	switch s {
	case StateEnqueued:
		return "enqueued"
	case StateLoading:
		return "loading"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LoadFunc performs the actual workspace load. It is called off the
// foreground goroutine and may block on I/O.
type LoadFunc func(workspaceID int) error

// BackgroundLoader drains a priority queue of workspace loads on a single
// worker goroutine, pacing every dequeue to avoid I/O contention with the
// foreground.
type BackgroundLoader struct {
	load    LoadFunc
	limiter *rate.Limiter
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu      sync.Mutex
	cond    *sync.Cond
	queues  [priorityCount][]int
	states  map[int]TaskState
	stopped bool
	started bool

	completed uint64
	failed    uint64
	retried   uint64
	dropped   uint64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBackgroundLoader creates a loader that paces successive loads by
// interTaskDelay.
func NewBackgroundLoader(load LoadFunc, interTaskDelay time.Duration, log *logging.Logger) *BackgroundLoader {
	if log == nil {
		log = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &BackgroundLoader{
		load:    load,
		limiter: rate.NewLimiter(rate.Every(interTaskDelay), 1),
		log:     log,
		states:  make(map[int]TaskState),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	b.cond = sync.NewCond(&b.mu)
	// Drain the initial token so the first dequeue waits the full delay
	// instead of firing instantly off a pre-filled bucket.
	b.limiter.Allow()
	return b
}

// WithMetrics adds metrics tracking to the loader.
func (b *BackgroundLoader) WithMetrics(m *monitoring.Metrics) *BackgroundLoader {
	b.metrics = m
	return b
}

// Start launches the worker goroutine. Starting twice is a no-op.
func (b *BackgroundLoader) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started || b.stopped {
		return
	}
	b.started = true
	go b.run()
}

// Enqueue schedules a workspace load. Returns false without queuing if the
// workspace is already enqueued or loading, or if the loader is stopped.
func (b *BackgroundLoader) Enqueue(workspaceID int, priority Priority) bool {
	if priority < PriorityDefault || priority > PriorityVisible {
		priority = PriorityDefault
	}

	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return false
	}
	if state, ok := b.states[workspaceID]; ok && (state == StateEnqueued || state == StateLoading) {
		b.mu.Unlock()
		return false
	}
	b.states[workspaceID] = StateEnqueued
	b.queues[priority] = append(b.queues[priority], workspaceID)
	depth := b.depthLocked()
	b.cond.Signal()
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.SetQueueDepth(depth)
	}
	return true
}

// State reports the current state of a workspace's load, if any.
func (b *BackgroundLoader) State(workspaceID int) (TaskState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.states[workspaceID]
	return s, ok
}

// QueueDepth returns the number of queued (not in-flight) loads.
func (b *BackgroundLoader) QueueDepth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.depthLocked()
}

// Stats returns a snapshot of the loader counters.
func (b *BackgroundLoader) Stats() types.LoaderStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return types.LoaderStats{
		QueueDepth:     b.depthLocked(),
		CompletedLoads: b.completed,
		FailedLoads:    b.failed,
		RetriedLoads:   b.retried,
		DroppedAtStop:  b.dropped,
	}
}

// Stop requests a cooperative shutdown and waits up to timeout for the
// in-flight task. Pending queued tasks are dropped. Returns false if the
// worker did not finish within the timeout.
func (b *BackgroundLoader) Stop(timeout time.Duration) bool {
	b.mu.Lock()
	if b.stopped {
		started := b.started
		b.mu.Unlock()
		if !started {
			return true
		}
		return b.waitDone(timeout)
	}
	b.stopped = true
	b.dropped += uint64(b.depthLocked())
	for p := range b.queues {
		b.queues[p] = nil
	}
	started := b.started
	b.cond.Broadcast()
	b.mu.Unlock()

	b.cancel() // unblock pacing waits
	if !started {
		return true
	}
	return b.waitDone(timeout)
}

func (b *BackgroundLoader) waitDone(timeout time.Duration) bool {
	select {
	case <-b.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (b *BackgroundLoader) run() {
	defer close(b.done)

	for {
		b.mu.Lock()
		for !b.stopped && b.depthLocked() == 0 {
			b.cond.Wait()
		}
		if b.stopped {
			b.mu.Unlock()
			return
		}
		b.mu.Unlock()

		// Pace every dequeue so background fill never monopolizes disk.
		// Tasks stay queued while pacing, so Stop still drops them and
		// depth readings stay honest.
		if werr := b.limiter.Wait(b.ctx); werr != nil {
			return // shutdown while pacing
		}

		b.mu.Lock()
		if b.stopped {
			b.mu.Unlock()
			return
		}
		if b.depthLocked() == 0 {
			b.mu.Unlock()
			continue
		}
		id := b.popLocked()
		b.states[id] = StateLoading
		depth := b.depthLocked()
		b.mu.Unlock()

		if b.metrics != nil {
			b.metrics.SetQueueDepth(depth)
		}

		err := b.load(id)
		if err != nil {
			// One automatic retry before giving up; LazyLoader falls back
			// to a synchronous load for anything left absent.
			b.log.Warn("background load failed, retrying",
				zap.Int("workspace_id", id), zap.Error(err))
			if b.metrics != nil {
				b.metrics.RecordLoadRetried()
			}
			b.mu.Lock()
			b.retried++
			b.mu.Unlock()
			err = b.load(id)
		}

		b.mu.Lock()
		if err != nil {
			b.states[id] = StateFailed
			b.failed++
		} else {
			b.states[id] = StateDone
			b.completed++
		}
		b.mu.Unlock()

		if err != nil {
			b.log.Warn("background load failed",
				zap.Int("workspace_id", id), zap.Error(err))
			if b.metrics != nil {
				b.metrics.RecordLoadFailed()
			}
			continue
		}
		if b.metrics != nil {
			b.metrics.RecordLoadDone()
		}
	}
}

func (b *BackgroundLoader) depthLocked() int {
	n := 0
	for p := range b.queues {
		n += len(b.queues[p])
	}
	return n
}

// popLocked removes the head of the highest non-empty priority tier.
func (b *BackgroundLoader) popLocked() int {
	for p := priorityCount - 1; p >= 0; p-- {
		q := b.queues[p]
		if len(q) == 0 {
			continue
		}
		id := q[0]
		b.queues[p] = q[1:]
		return id
	}
	return 0
}
