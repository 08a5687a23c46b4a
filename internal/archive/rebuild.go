package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/wallon-qodo/multi-term-sub001/internal/shared/paths"
	"github.com/wallon-qodo/multi-term-sub001/internal/shared/types"
	"github.com/wallon-qodo/multi-term-sub001/internal/store"
)

// Rebuild reconstructs the index by walking the archive tree and re-deriving
// every entry from blob names and contents, then persists the result. Blobs
// that cannot be decoded are skipped with a warning, never fatal.
func (m *Manager) Rebuild() error {
	m.indexMu.Lock()
	defer m.indexMu.Unlock()

	if err := m.rebuildLocked(); err != nil {
		return err
	}
	m.indexLoaded = true
	return nil
}

func (m *Manager) rebuildLocked() error {
	root := m.layout.ArchiveDir()
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return m.index.replace(make(map[string]types.ArchiveEntry))
	}

	var mu sync.Mutex
	entries := make(map[string]types.ArchiveEntry)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(d.Name(), paths.BlobExt) {
			return nil
		}

		entry, derr := m.deriveEntry(path, d)
		if derr != nil {
			m.log.Warn("rebuild skipping undecodable blob",
				zap.String("path", path), zap.Error(derr))
			return nil
		}

		mu.Lock()
		// Duplicate session IDs across partitions keep the newest blob.
		if prev, ok := entries[entry.SessionID]; !ok || entry.ArchivedAt > prev.ArchivedAt {
			entries[entry.SessionID] = *entry
		}
		mu.Unlock()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk archive tree: %w", err)
	}

	if err := m.index.replace(entries); err != nil {
		return err
	}
	m.log.Info("archive index rebuilt", zap.Int("entries", len(entries)))
	return nil
}

// deriveEntry reconstructs one index entry from a blob on disk.
func (m *Manager) deriveEntry(path string, d os.DirEntry) (*types.ArchiveEntry, error) {
	originalTS, sessionID, ok := paths.ParseEntryName(filepath.Base(path))
	if !ok {
		return nil, fmt.Errorf("blob name does not follow convention")
	}

	info, err := d.Info()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, err
	}
	rec, err := store.DecodeSession(data)
	if err != nil {
		return nil, err
	}
	if rec.ID != sessionID {
		return nil, fmt.Errorf("blob name %s does not match record id %s", sessionID, rec.ID)
	}

	return &types.ArchiveEntry{
		SessionID:           sessionID,
		ArchivedAt:          info.ModTime().Unix(),
		OriginalTimestamp:   originalTS,
		ArchivePath:         path,
		CompressedSizeBytes: info.Size(),
		OriginalSizeBytes:   int64(len(data)),
		Name:                rec.Name,
		WorkingDirectory:    rec.WorkingDirectory,
		LastCommand:         rec.LastCommand,
	}, nil
}
