package archive

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// sweeper runs AutoArchiveOldSessions on a fixed interval. A running flag
// makes overlapping triggers no-ops.
type sweeper struct {
	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
	startMu sync.Mutex
	started bool
}

// StartSweeper begins the periodic archive sweep. Calling it again while
// running is a no-op.
func (m *Manager) StartSweeper(interval, ageThreshold time.Duration) {
	m.sweeper.startMu.Lock()
	defer m.sweeper.startMu.Unlock()

	if m.sweeper.started {
		return
	}
	m.sweeper.started = true
	m.sweeper.stop = make(chan struct{})
	m.sweeper.done = make(chan struct{})

	go func() {
		defer close(m.sweeper.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.sweeper.stop:
				return
			case <-ticker.C:
				m.TriggerSweep(ageThreshold)
			}
		}
	}()
}

// StopSweeper stops the periodic sweep and waits for an in-flight run.
func (m *Manager) StopSweeper() {
	m.sweeper.startMu.Lock()
	defer m.sweeper.startMu.Unlock()

	if !m.sweeper.started {
		return
	}
	close(m.sweeper.stop)
	<-m.sweeper.done
	m.sweeper.started = false
}

// TriggerSweep runs one sweep now unless one is already in flight, in which
// case it reports false without blocking.
func (m *Manager) TriggerSweep(ageThreshold time.Duration) bool {
	if !m.sweeper.running.CompareAndSwap(false, true) {
		return false
	}
	defer m.sweeper.running.Store(false)

	runID := uuid.NewString()
	started := m.clock()
	summary := m.AutoArchiveOldSessions(ageThreshold, nil)
	m.log.Info("archive sweep finished",
		zap.String("run_id", runID),
		zap.Int("archived", summary.ArchivedCount),
		zap.Int("failed", summary.FailedCount),
		zap.Int64("space_saved_bytes", summary.SpaceSavedBytes),
		zap.Duration("elapsed", m.clock().Sub(started)))
	return true
}
