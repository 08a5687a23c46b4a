package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/wallon-qodo/multi-term-sub001/internal/logging"
	"github.com/wallon-qodo/multi-term-sub001/internal/shared/paths"
	"github.com/wallon-qodo/multi-term-sub001/internal/shared/types"
)

var (
	// ErrNotFound means the record does not exist anywhere in this tier.
	ErrNotFound = errors.New("record not found")
	// ErrCorrupt means the file exists but could not be decoded or validated.
	ErrCorrupt = errors.New("record is corrupt")
)

// Store is the durable persistence tier. All writes are atomic at
// single-file granularity.
type Store struct {
	layout paths.Layout
	log    *logging.Logger
}

// New creates the store rooted at root and ensures its directories exist.
func New(root string, log *logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.NewNop()
	}
	layout := paths.Layout{Root: root}
	for _, dir := range []string{layout.HistoryDir(), layout.WorkspacesDir(), layout.ArchiveDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return &Store{layout: layout, log: log}, nil
}

// Layout exposes the resolved on-disk layout to the archive tier.
func (s *Store) Layout() paths.Layout {
	return s.layout
}

// ReadWorkspace reads one workspace record. Returns ErrNotFound if the
// workspace has never been written.
func (s *Store) ReadWorkspace(id int) (*types.WorkspaceRecord, error) {
	data, err := os.ReadFile(s.layout.WorkspaceFile(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("workspace %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read workspace %d: %w", id, err)
	}

	var ws types.WorkspaceRecord
	if err := sonic.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("workspace %d: %w: %v", id, ErrCorrupt, err)
	}
	if err := ws.Validate(); err != nil {
		return nil, fmt.Errorf("workspace %d: %w: %v", id, ErrCorrupt, err)
	}
	return &ws, nil
}

// WriteWorkspace atomically persists one workspace record.
func (s *Store) WriteWorkspace(ws *types.WorkspaceRecord) error {
	if ws.Version == 0 {
		ws.Version = types.RecordVersion
	}
	if err := ws.Validate(); err != nil {
		return fmt.Errorf("refusing to write workspace: %w", err)
	}

	data, err := sonic.Marshal(ws)
	if err != nil {
		return fmt.Errorf("failed to marshal workspace %d: %w", ws.ID, err)
	}
	return s.writeAtomic(s.layout.WorkspaceFile(ws.ID), data)
}

// ListWorkspaceIDs returns the IDs of all persisted workspaces, ascending.
func (s *Store) ListWorkspaceIDs() ([]int, error) {
	entries, err := os.ReadDir(s.layout.WorkspacesDir())
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	ids := make([]int, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		if name == e.Name() {
			continue
		}
		id, err := strconv.Atoi(name)
		if err != nil {
			s.log.Warn("skipping unrecognized workspace file", zap.String("file", e.Name()))
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// HistoryFile describes one active session snapshot on disk.
type HistoryFile struct {
	Path      string
	SessionID string
	Timestamp int64
	SizeBytes int64
}

// ListHistoryFiles enumerates the active history tier. Files whose names do
// not follow the {timestamp}_{session_id}.json convention are skipped.
func (s *Store) ListHistoryFiles() ([]HistoryFile, error) {
	entries, err := os.ReadDir(s.layout.HistoryDir())
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	files := make([]HistoryFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ts, sessionID, ok := paths.ParseEntryName(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, HistoryFile{
			Path:      filepath.Join(s.layout.HistoryDir(), e.Name()),
			SessionID: sessionID,
			Timestamp: ts,
			SizeBytes: info.Size(),
		})
	}
	return files, nil
}

// ReadHistoryFile reads the raw bytes of one history snapshot.
func (s *Store) ReadHistoryFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("history file %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read history file %s: %w", path, err)
	}
	return data, nil
}

// DeleteHistoryFile removes one history snapshot. Deleting a missing file is
// not an error: archive promotion retries after a crash between blob write
// and source delete.
func (s *Store) DeleteHistoryFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete history file %s: %w", path, err)
	}
	return nil
}

// SaveSession atomically persists a session snapshot and removes any older
// snapshot for the same session. Returns the written path.
func (s *Store) SaveSession(rec *types.SessionRecord) (string, error) {
	if rec.Version == 0 {
		rec.Version = types.RecordVersion
	}
	if err := rec.Validate(); err != nil {
		return "", fmt.Errorf("refusing to write session: %w", err)
	}

	data, err := sonic.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session %s: %w", rec.ID, err)
	}

	path := s.layout.HistoryFile(rec.ModifiedAt, rec.ID)
	if err := s.writeAtomic(path, data); err != nil {
		return "", err
	}

	// New snapshot is durable; older snapshots for this session are now
	// redundant and can go.
	files, err := s.ListHistoryFiles()
	if err != nil {
		return path, nil
	}
	for _, f := range files {
		if f.SessionID == rec.ID && f.Path != path {
			if err := s.DeleteHistoryFile(f.Path); err != nil {
				s.log.Warn("failed to remove stale snapshot",
					zap.String("session_id", rec.ID),
					zap.String("path", f.Path),
					zap.Error(err))
			}
		}
	}
	return path, nil
}

// LoadSession reads the newest snapshot for a session from active history.
func (s *Store) LoadSession(id string) (*types.SessionRecord, error) {
	files, err := s.ListHistoryFiles()
	if err != nil {
		return nil, err
	}

	var best *HistoryFile
	for i := range files {
		f := &files[i]
		if f.SessionID != id {
			continue
		}
		if best == nil || f.Timestamp > best.Timestamp {
			best = f
		}
	}
	if best == nil {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}

	data, err := s.ReadHistoryFile(best.Path)
	if err != nil {
		return nil, err
	}
	return DecodeSession(data)
}

// ListSessionIDs returns the distinct session IDs present in active history.
func (s *Store) ListSessionIDs() ([]string, error) {
	files, err := s.ListHistoryFiles()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(files))
	ids := make([]string, 0, len(files))
	for _, f := range files {
		if _, ok := seen[f.SessionID]; ok {
			continue
		}
		seen[f.SessionID] = struct{}{}
		ids = append(ids, f.SessionID)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteSession removes every active snapshot for a session. Explicit user
// action only; archiving uses DeleteHistoryFile after the blob is durable.
func (s *Store) DeleteSession(id string) error {
	files, err := s.ListHistoryFiles()
	if err != nil {
		return err
	}
	found := false
	for _, f := range files {
		if f.SessionID != id {
			continue
		}
		found = true
		if err := s.DeleteHistoryFile(f.Path); err != nil {
			return err
		}
	}
	if !found {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// DecodeSession decodes and validates a raw session snapshot.
func DecodeSession(data []byte) (*types.SessionRecord, error) {
	var rec types.SessionRecord
	if err := sonic.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &rec, nil
}

// EncodeSession encodes a session record for persistence or archiving.
func EncodeSession(rec *types.SessionRecord) ([]byte, error) {
	if rec.Version == 0 {
		rec.Version = types.RecordVersion
	}
	return sonic.Marshal(rec)
}

// writeAtomic writes data to path via a temp file in the same directory
// followed by a rename.
func (s *Store) writeAtomic(path string, data []byte) error {
	return AtomicWrite(path, data)
}

// AtomicWrite writes data to path via a temp file in the same directory
// followed by a rename, so readers never observe a torn file.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
