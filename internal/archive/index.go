package archive

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/wallon-qodo/multi-term-sub001/internal/shared/types"
	"github.com/wallon-qodo/multi-term-sub001/internal/store"
)

// ErrIndexCorrupt means the index file exists but failed to parse.
var ErrIndexCorrupt = errors.New("archive index is corrupt")

// index is the persisted session_id -> ArchiveEntry map. Mutations are
// copy-on-write: a new map is built, persisted atomically, then swapped in,
// so concurrent readers always see a complete snapshot.
type index struct {
	path string

	mu      sync.RWMutex
	entries map[string]types.ArchiveEntry
}

func newIndex(path string) *index {
	return &index{path: path}
}

// load reads the index file. A missing file is an empty index; a file that
// fails to parse returns ErrIndexCorrupt so the caller can rebuild.
func (ix *index) load() error {
	data, err := os.ReadFile(ix.path)
	if err != nil {
		if os.IsNotExist(err) {
			ix.entries = make(map[string]types.ArchiveEntry)
			return nil
		}
		return fmt.Errorf("failed to read archive index: %w", err)
	}

	entries := make(map[string]types.ArchiveEntry)
	if err := sonic.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	ix.entries = entries
	return nil
}

// replace swaps in a full entry set and persists it.
func (ix *index) replace(entries map[string]types.ArchiveEntry) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.persistLocked(entries); err != nil {
		return err
	}
	ix.entries = entries
	return nil
}

// upsert adds or overwrites one entry, persisting before the swap so a
// crash never leaves memory ahead of disk.
func (ix *index) upsert(entry types.ArchiveEntry) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	next := make(map[string]types.ArchiveEntry, len(ix.entries)+1)
	for k, v := range ix.entries {
		next[k] = v
	}
	next[entry.SessionID] = entry

	if err := ix.persistLocked(next); err != nil {
		return err
	}
	ix.entries = next
	return nil
}

// remove deletes one entry. Removing an absent entry is a no-op.
func (ix *index) remove(sessionID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.entries[sessionID]; !ok {
		return nil
	}
	next := make(map[string]types.ArchiveEntry, len(ix.entries))
	for k, v := range ix.entries {
		if k != sessionID {
			next[k] = v
		}
	}
	if err := ix.persistLocked(next); err != nil {
		return err
	}
	ix.entries = next
	return nil
}

// get returns one entry by session ID.
func (ix *index) get(sessionID string) (types.ArchiveEntry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	e, ok := ix.entries[sessionID]
	return e, ok
}

// snapshot returns the current entry map. Callers must not mutate it.
func (ix *index) snapshot() map[string]types.ArchiveEntry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.entries
}

func (ix *index) len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

func (ix *index) persistLocked(entries map[string]types.ArchiveEntry) error {
	data, err := sonic.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal archive index: %w", err)
	}
	if err := store.AtomicWrite(ix.path, data); err != nil {
		return fmt.Errorf("failed to persist archive index: %w", err)
	}
	return nil
}
