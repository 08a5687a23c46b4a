package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/wallon-qodo/multi-term-sub001/internal/infrastructure/monitoring"
	"github.com/wallon-qodo/multi-term-sub001/internal/logging"
	"github.com/wallon-qodo/multi-term-sub001/internal/shared/paths"
	"github.com/wallon-qodo/multi-term-sub001/internal/shared/types"
	"github.com/wallon-qodo/multi-term-sub001/internal/store"
)

// HistoryStore is the slice of the persistent tier the archive consumes.
type HistoryStore interface {
	ListHistoryFiles() ([]store.HistoryFile, error)
	ReadHistoryFile(path string) ([]byte, error)
	DeleteHistoryFile(path string) error
}

// ProgressFunc reports sweep progress as (processed, total).
type ProgressFunc func(processed, total int)

// Manager moves, indexes, and restores cold sessions.
type Manager struct {
	store   HistoryStore
	layout  paths.Layout
	index   *index
	log     *logging.Logger
	metrics *monitoring.Metrics
	clock   func() time.Time

	// indexMu serializes lazy index loading and rebuild.
	indexMu     sync.Mutex
	indexLoaded bool

	sweeper sweeper
}

// NewManager creates the archive manager over a history store and layout.
func NewManager(st HistoryStore, layout paths.Layout, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.NewNop()
	}
	return &Manager{
		store:  st,
		layout: layout,
		index:  newIndex(layout.IndexFile()),
		log:    log,
		clock:  time.Now,
	}
}

// WithMetrics adds metrics tracking to the manager.
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// WithClock overrides the wall clock. Tests use this to age sessions.
func (m *Manager) WithClock(clock func() time.Time) *Manager {
	m.clock = clock
	return m
}

// ensureIndex lazily loads the index on first use. A corrupt index file is
// rebuilt from the archive tree instead of failing the caller.
func (m *Manager) ensureIndex() {
	m.indexMu.Lock()
	defer m.indexMu.Unlock()

	if m.indexLoaded {
		return
	}
	err := m.index.load()
	if err != nil {
		if errors.Is(err, ErrIndexCorrupt) {
			m.log.Warn("archive index corrupt, rebuilding from archive tree", zap.Error(err))
		} else {
			m.log.Warn("archive index unreadable, rebuilding from archive tree", zap.Error(err))
		}
	}
	if err != nil || m.index.len() == 0 {
		// A deleted index and a corrupt one heal the same way: re-derive
		// from the tree. For a genuinely empty archive this walk is free.
		if rerr := m.rebuildLocked(); rerr != nil {
			m.log.Error("archive index rebuild failed", zap.Error(rerr))
			// Operate on an empty in-memory index; the next access retries.
			return
		}
	}
	m.indexLoaded = true
}

// ArchiveSession promotes one session record into the compressed archive.
// Ordering is mandatory for crash safety: blob write, index persist, and
// only then deletion of the active-history source. Archiving the same
// session twice overwrites the blob and entry rather than duplicating.
func (m *Manager) ArchiveSession(rec *types.SessionRecord, sourcePath string) (*types.ArchiveEntry, error) {
	data, err := store.EncodeSession(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize session %s: %w", rec.ID, err)
	}

	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}
	gz.Name = rec.ID
	gz.ModTime = time.Unix(rec.ModifiedAt, 0)
	if _, err := gz.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress session %s: %w", rec.ID, err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize blob for %s: %w", rec.ID, err)
	}

	now := m.clock()
	blobPath := m.layout.BlobFile(now, rec.ModifiedAt, rec.ID)
	if err := os.MkdirAll(filepath.Dir(blobPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive partition: %w", err)
	}
	if err := store.AtomicWrite(blobPath, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to write blob for %s: %w", rec.ID, err)
	}

	entry := types.ArchiveEntry{
		SessionID:           rec.ID,
		ArchivedAt:          now.Unix(),
		OriginalTimestamp:   rec.ModifiedAt,
		ArchivePath:         blobPath,
		CompressedSizeBytes: int64(buf.Len()),
		OriginalSizeBytes:   int64(len(data)),
		Name:                rec.Name,
		WorkingDirectory:    rec.WorkingDirectory,
		LastCommand:         rec.LastCommand,
	}

	m.ensureIndex()
	prev, hadPrev := m.index.get(rec.ID)
	if err := m.index.upsert(entry); err != nil {
		return nil, fmt.Errorf("failed to index blob for %s: %w", rec.ID, err)
	}

	// Blob and index are durable; the live copy may go, and so may a blob
	// left in an older partition by a previous archiving of this session.
	if hadPrev && prev.ArchivePath != blobPath {
		if err := os.Remove(prev.ArchivePath); err != nil && !os.IsNotExist(err) {
			m.log.Warn("failed to remove superseded blob",
				zap.String("session_id", rec.ID),
				zap.String("path", prev.ArchivePath),
				zap.Error(err))
		}
	}
	if sourcePath != "" {
		if err := m.store.DeleteHistoryFile(sourcePath); err != nil {
			return nil, fmt.Errorf("failed to remove archived source: %w", err)
		}
	}

	if m.metrics != nil {
		m.metrics.RecordArchived(entry.OriginalSizeBytes, entry.CompressedSizeBytes)
	}
	m.log.Debug("archived session",
		zap.String("session_id", rec.ID),
		zap.Int64("original_bytes", entry.OriginalSizeBytes),
		zap.Int64("compressed_bytes", entry.CompressedSizeBytes))
	return &entry, nil
}

// RestoreSession brings an archived session back to live form. A miss or any
// failure returns ok=false; the archive entry is never removed by restoring.
func (m *Manager) RestoreSession(id string) (*types.SessionRecord, bool) {
	m.ensureIndex()

	entry, ok := m.index.get(id)
	if !ok {
		return nil, false
	}

	f, err := os.Open(entry.ArchivePath)
	if err != nil {
		m.log.Warn("archived blob unreadable",
			zap.String("session_id", id),
			zap.String("path", entry.ArchivePath),
			zap.Error(err))
		return nil, false
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		m.log.Warn("archived blob is not valid gzip",
			zap.String("session_id", id), zap.Error(err))
		return nil, false
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		m.log.Warn("failed to decompress archived session",
			zap.String("session_id", id), zap.Error(err))
		return nil, false
	}

	rec, err := store.DecodeSession(data)
	if err != nil {
		m.log.Warn("archived session failed to decode",
			zap.String("session_id", id), zap.Error(err))
		return nil, false
	}

	if m.metrics != nil {
		m.metrics.RecordRestored()
	}
	return rec, true
}

// DeleteArchived removes a session from the archive: blob first, then the
// index entry. Explicit user action only.
func (m *Manager) DeleteArchived(id string) error {
	m.ensureIndex()

	entry, ok := m.index.get(id)
	if !ok {
		return fmt.Errorf("archived session %s: %w", id, store.ErrNotFound)
	}
	if err := os.Remove(entry.ArchivePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob for %s: %w", id, err)
	}
	return m.index.remove(id)
}

// AutoArchiveOldSessions sweeps active history and promotes every record
// older than ageThreshold. Per-file failures are counted and skipped; a
// single bad file never aborts the sweep.
func (m *Manager) AutoArchiveOldSessions(ageThreshold time.Duration, progress ProgressFunc) types.SweepSummary {
	started := m.clock()
	var summary types.SweepSummary

	files, err := m.store.ListHistoryFiles()
	if err != nil {
		m.log.Warn("sweep could not list active history", zap.Error(err))
		summary.FailedCount++
		return summary
	}

	cutoff := started.Add(-ageThreshold).Unix()
	for i, f := range files {
		if progress != nil {
			progress(i, len(files))
		}

		data, err := m.store.ReadHistoryFile(f.Path)
		if err != nil {
			m.log.Warn("sweep skipping unreadable snapshot",
				zap.String("path", f.Path), zap.Error(err))
			summary.FailedCount++
			if m.metrics != nil {
				m.metrics.RecordArchiveFailure()
			}
			continue
		}

		rec, err := store.DecodeSession(data)
		if err != nil {
			m.log.Warn("sweep skipping corrupt snapshot",
				zap.String("path", f.Path), zap.Error(err))
			summary.FailedCount++
			if m.metrics != nil {
				m.metrics.RecordArchiveFailure()
			}
			continue
		}

		// A zero threshold promotes everything, including records touched
		// this very second.
		if ageThreshold > 0 && rec.ModifiedAt >= cutoff {
			continue // still warm
		}

		entry, err := m.ArchiveSession(rec, f.Path)
		if err != nil {
			m.log.Warn("sweep failed to archive session",
				zap.String("session_id", rec.ID), zap.Error(err))
			summary.FailedCount++
			if m.metrics != nil {
				m.metrics.RecordArchiveFailure()
			}
			continue
		}

		summary.ArchivedCount++
		summary.SpaceSavedBytes += entry.SpaceSaved()
	}
	if progress != nil {
		progress(len(files), len(files))
	}

	if m.metrics != nil {
		m.metrics.RecordSweep(m.clock().Sub(started))
	}
	return summary
}

// Stats summarizes the archive tier from the index alone.
func (m *Manager) Stats() types.ArchiveStats {
	m.ensureIndex()

	var stats types.ArchiveStats
	for _, e := range m.index.snapshot() {
		stats.Entries++
		stats.CompressedSizeBytes += e.CompressedSizeBytes
		stats.OriginalSizeBytes += e.OriginalSizeBytes
	}
	if stats.OriginalSizeBytes > 0 {
		stats.OverallRatio = float64(stats.CompressedSizeBytes) / float64(stats.OriginalSizeBytes)
	}
	return stats
}
