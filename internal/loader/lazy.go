package loader

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wallon-qodo/multi-term-sub001/internal/cache"
	"github.com/wallon-qodo/multi-term-sub001/internal/infrastructure/monitoring"
	"github.com/wallon-qodo/multi-term-sub001/internal/logging"
	"github.com/wallon-qodo/multi-term-sub001/internal/shared/types"
	"github.com/wallon-qodo/multi-term-sub001/internal/store"
)

// WorkspaceStore is the slice of the persistent tier the loader consumes.
type WorkspaceStore interface {
	ReadWorkspace(id int) (*types.WorkspaceRecord, error)
	ListWorkspaceIDs() ([]int, error)
	LoadSession(id string) (*types.SessionRecord, error)
}

// Restorer resolves sessions that have left active history for the cold tier.
type Restorer interface {
	RestoreSession(id string) (*types.SessionRecord, bool)
}

// DefaultShutdownTimeout bounds the wait for an in-flight background load.
const DefaultShutdownTimeout = 5 * time.Second

// LazyLoader is the sole public entry point of the storage engine. It loads
// the active workspace synchronously at startup, schedules everything else
// on the background loader, and resolves reads via cache-or-on-demand-load.
type LazyLoader struct {
	store   WorkspaceStore
	cache   *cache.Cache
	bg      *BackgroundLoader
	archive Restorer
	log     *logging.Logger
	metrics *monitoring.Metrics

	// mu guards the workspace record map. Workspace records are tiny and
	// bounded (tab keys 1..9), so they are pinned rather than evicted.
	mu         sync.RWMutex
	workspaces map[int]*types.WorkspaceRecord

	initElapsed time.Duration
	initOnce    sync.Once
}

// New creates the orchestrator. The archive restorer is optional; without it
// sessions absent from active history stay absent.
func New(st WorkspaceStore, sessionCache *cache.Cache, interTaskDelay time.Duration, log *logging.Logger) *LazyLoader {
	if log == nil {
		log = logging.NewNop()
	}
	l := &LazyLoader{
		store:      st,
		cache:      sessionCache,
		log:        log,
		workspaces: make(map[int]*types.WorkspaceRecord),
	}
	l.bg = NewBackgroundLoader(l.loadWorkspace, interTaskDelay, log)
	return l
}

// WithArchive wires the cold-tier restorer for session fallback reads.
func (l *LazyLoader) WithArchive(r Restorer) *LazyLoader {
	l.archive = r
	return l
}

// WithMetrics adds metrics tracking to the orchestrator and its loader.
func (l *LazyLoader) WithMetrics(m *monitoring.Metrics) *LazyLoader {
	l.metrics = m
	l.bg.WithMetrics(m)
	return l
}

// Initialize loads only the active workspace synchronously, then enqueues
// every other known workspace at default priority and returns without
// waiting for them. This is the one place errors propagate: a silent empty
// startup is worse than a visible failure.
func (l *LazyLoader) Initialize(activeID int) (time.Duration, error) {
	start := time.Now()

	if err := l.loadWorkspace(activeID); err != nil {
		return 0, fmt.Errorf("failed to load active workspace %d: %w", activeID, err)
	}

	ids, err := l.store.ListWorkspaceIDs()
	if err != nil {
		// The active workspace is up; a failed listing only costs lazy
		// loads their head start.
		l.log.Warn("could not enumerate workspaces for background load", zap.Error(err))
		ids = nil
	}

	l.bg.Start()
	for _, id := range ids {
		if id == activeID {
			continue
		}
		l.bg.Enqueue(id, PriorityDefault)
	}

	elapsed := time.Since(start)
	l.initOnce.Do(func() { l.initElapsed = elapsed })
	l.log.Info("storage engine initialized",
		zap.Int("active_workspace", activeID),
		zap.Int("background_queued", l.bg.QueueDepth()),
		zap.Duration("elapsed", elapsed))
	return elapsed, nil
}

// GetWorkspace returns a workspace record, loading it synchronously on a
// cache miss. Correct even when the background loader has not caught up.
func (l *LazyLoader) GetWorkspace(id int) (*types.WorkspaceRecord, error) {
	l.mu.RLock()
	ws, ok := l.workspaces[id]
	l.mu.RUnlock()
	if ok {
		return ws, nil
	}

	if err := l.loadWorkspace(id); err != nil {
		return nil, err
	}

	l.mu.RLock()
	ws = l.workspaces[id]
	l.mu.RUnlock()
	return ws, nil
}

// GetSession resolves one session record: cache, then active history, then
// the cold archive. Returns store.ErrNotFound when absent everywhere.
func (l *LazyLoader) GetSession(id string) (*types.SessionRecord, error) {
	if rec, ok := l.cache.Get(id); ok {
		return rec, nil
	}

	rec, err := l.store.LoadSession(id)
	if err == nil {
		l.cache.Put(id, rec)
		return rec, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if l.archive != nil {
		if rec, ok := l.archive.RestoreSession(id); ok {
			l.cache.Put(id, rec)
			return rec, nil
		}
	}
	return nil, fmt.Errorf("session %s: %w", id, store.ErrNotFound)
}

// Preload bumps workspaces into the background queue at the given priority,
// e.g. visible-but-unfocused tabs ahead of the default backlog.
func (l *LazyLoader) Preload(ids []int, priority Priority) {
	for _, id := range ids {
		l.bg.Enqueue(id, priority)
	}
}

// GetPerformanceStats returns the orchestrator-level snapshot.
func (l *LazyLoader) GetPerformanceStats() types.PerfStats {
	cs := l.cache.Stats()
	return types.PerfStats{
		InitializationTimeMs: float64(l.initElapsed.Microseconds()) / 1000.0,
		CacheHitRate:         cs.HitRate,
		CacheSize:            cs.Size,
		BackgroundQueueDepth: l.bg.QueueDepth(),
	}
}

// LoaderStats exposes the background loader counters.
func (l *LazyLoader) LoaderStats() types.LoaderStats {
	return l.bg.Stats()
}

// Shutdown cooperatively stops the background loader and waits, bounded,
// for the in-flight task. The cache is never flushed: it is never
// authoritative.
func (l *LazyLoader) Shutdown(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	if !l.bg.Stop(timeout) {
		l.log.Warn("background loader did not stop within timeout",
			zap.Duration("timeout", timeout))
	}
}

// loadWorkspace reads a workspace record and pulls its member sessions into
// the cache. Used both synchronously (active workspace, miss fallback) and
// from the background worker; results are communicated only through the
// cache and the workspace map, never by calling back into UI code.
func (l *LazyLoader) loadWorkspace(id int) error {
	ws, err := l.store.ReadWorkspace(id)
	if err != nil {
		return err
	}

	for _, sessionID := range ws.SessionIDs {
		if _, ok := l.cache.Get(sessionID); ok {
			continue
		}
		rec, err := l.store.LoadSession(sessionID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrCorrupt) {
				// Archived or damaged members resolve later through
				// GetSession; they must not fail the workspace.
				l.log.Debug("workspace member not in active history",
					zap.Int("workspace_id", id),
					zap.String("session_id", sessionID),
					zap.Error(err))
				continue
			}
			return err
		}
		l.cache.Put(sessionID, rec)
	}

	l.mu.Lock()
	l.workspaces[id] = ws
	l.mu.Unlock()
	return nil
}
