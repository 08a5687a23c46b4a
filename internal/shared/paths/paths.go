// Package paths provides the standardized on-disk layout for the session store.
//
// Everything lives under a single root:
//
//	{root}/workspaces/{id}.json                                    workspace records
//	{root}/history/{timestamp}_{session_id}.json                   active session snapshots
//	{root}/archive/{year}/{month}/{timestamp}_{session_id}.blob.gz archived sessions
//	{root}/archive_index.json                                      archive search index
//
// Blob and history filenames embed the record's original modification
// timestamp so entries can be re-derived from the tree alone.
package paths

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Filename suffixes.
const (
	HistoryExt = ".json"
	BlobExt    = ".blob.gz"
)

// Layout resolves paths under a storage root.
type Layout struct {
	Root string
}

// HistoryDir returns the active history directory.
func (l Layout) HistoryDir() string {
	return filepath.Join(l.Root, "history")
}

// ArchiveDir returns the cold archive root.
func (l Layout) ArchiveDir() string {
	return filepath.Join(l.Root, "archive")
}

// IndexFile returns the archive index path.
func (l Layout) IndexFile() string {
	return filepath.Join(l.Root, "archive_index.json")
}

// WorkspacesDir returns the workspace records directory.
func (l Layout) WorkspacesDir() string {
	return filepath.Join(l.Root, "workspaces")
}

// WorkspaceFile returns the record path for one workspace.
func (l Layout) WorkspaceFile(id int) string {
	return filepath.Join(l.WorkspacesDir(), strconv.Itoa(id)+".json")
}

// HistoryFile returns the active snapshot path for a session.
func (l Layout) HistoryFile(timestamp int64, sessionID string) string {
	return filepath.Join(l.HistoryDir(), fmt.Sprintf("%d_%s%s", timestamp, sessionID, HistoryExt))
}

// BlobFile returns the archive blob path, partitioned by year/month of the
// archival time.
func (l Layout) BlobFile(archivedAt time.Time, originalTimestamp int64, sessionID string) string {
	return filepath.Join(
		l.ArchiveDir(),
		fmt.Sprintf("%04d", archivedAt.Year()),
		fmt.Sprintf("%02d", int(archivedAt.Month())),
		fmt.Sprintf("%d_%s%s", originalTimestamp, sessionID, BlobExt),
	)
}

// ParseEntryName splits a history or blob filename into its embedded
// timestamp and session ID. Session IDs may themselves contain underscores,
// so only the first underscore delimits.
func ParseEntryName(name string) (timestamp int64, sessionID string, ok bool) {
	base := name
	switch {
	case strings.HasSuffix(base, BlobExt):
		base = strings.TrimSuffix(base, BlobExt)
	case strings.HasSuffix(base, HistoryExt):
		base = strings.TrimSuffix(base, HistoryExt)
	default:
		return 0, "", false
	}

	parts := strings.SplitN(base, "_", 2)
	if len(parts) != 2 || parts[1] == "" {
		return 0, "", false
	}

	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return ts, parts[1], true
}
