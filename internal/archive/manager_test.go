package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallon-qodo/multi-term-sub001/internal/infrastructure/monitoring"
	"github.com/wallon-qodo/multi-term-sub001/internal/shared/types"
	"github.com/wallon-qodo/multi-term-sub001/internal/store"
)

func testSession(id string, modified int64) *types.SessionRecord {
	transcript, _ := json.Marshal(strings.Repeat("$ go build ./... && go test ./cmd/... \n", 128))
	return &types.SessionRecord{
		Version:          types.RecordVersion,
		ID:               id,
		Name:             "Refactor Storage Layer",
		WorkingDirectory: "/home/dev/project",
		CreatedAt:        modified - 3600,
		ModifiedAt:       modified,
		CommandCount:     42,
		LastCommand:      "go test ./...",
		TranscriptRef:    "transcript/" + id,
		SizeBytes:        5120,
		Transcript:       transcript,
	}
}

func newTestManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	return NewManager(st, st.Layout(), nil), st
}

func TestArchiveRestoreRoundTrip(t *testing.T) {
	m, st := newTestManager(t)

	rec := testSession("sess_roundtrip", time.Now().Unix()-100)
	path, err := st.SaveSession(rec)
	require.NoError(t, err)

	entry, err := m.ArchiveSession(rec, path)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, entry.SessionID)
	assert.Equal(t, rec.ModifiedAt, entry.OriginalTimestamp)
	assert.NoFileExists(t, path, "source must be deleted after blob and index are durable")
	assert.FileExists(t, entry.ArchivePath)

	got, ok := m.RestoreSession(rec.ID)
	require.True(t, ok)
	assert.Equal(t, rec, got)

	// Restoring does not consume the archive entry.
	_, ok = m.RestoreSession(rec.ID)
	assert.True(t, ok)
}

func TestRestoreMissIsNotAnError(t *testing.T) {
	m, _ := newTestManager(t)

	got, ok := m.RestoreSession("sess_never_archived")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestArchiveIdempotent(t *testing.T) {
	m, _ := newTestManager(t)
	m.WithClock(func() time.Time { return time.Unix(1700000000, 0) })

	rec := testSession("sess_twice", 1690000000)
	first, err := m.ArchiveSession(rec, "")
	require.NoError(t, err)
	second, err := m.ArchiveSession(rec, "")
	require.NoError(t, err)

	assert.Equal(t, first.ArchivePath, second.ArchivePath)
	assert.Equal(t, 1, m.index.len(), "re-archiving must overwrite, not duplicate")
}

func TestReArchiveAcrossMonthsRemovesSupersededBlob(t *testing.T) {
	m, _ := newTestManager(t)
	metrics := monitoring.NewMetrics()
	m.WithMetrics(metrics)

	clock := time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC)
	m.WithClock(func() time.Time { return clock })

	rec := testSession("sess_months", 1690000000)
	first, err := m.ArchiveSession(rec, "")
	require.NoError(t, err)

	// A month later the blob lands in a new partition; the old one must go.
	clock = time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC)
	second, err := m.ArchiveSession(rec, "")
	require.NoError(t, err)

	assert.NotEqual(t, first.ArchivePath, second.ArchivePath)
	assert.NoFileExists(t, first.ArchivePath, "superseded blob must not linger in the old partition")
	assert.FileExists(t, second.ArchivePath)
	assert.Equal(t, 1, m.index.len())

	got, ok := m.RestoreSession(rec.ID)
	require.True(t, ok)
	assert.Equal(t, rec.ID, got.ID)

	// With the stale blob gone, deleting the session empties the archive.
	require.NoError(t, m.DeleteArchived(rec.ID))
	assert.NoFileExists(t, second.ArchivePath)

	assert.Equal(t, int64(2), metrics.CurrentSnapshot().SessionsArchived)
}

func TestBlobMateriallySmallerAndPartitioned(t *testing.T) {
	m, _ := newTestManager(t)
	archivedAt := time.Date(2026, time.March, 5, 12, 0, 0, 0, time.UTC)
	m.WithClock(func() time.Time { return archivedAt })

	rec := testSession("sess_text", 1690000000)
	entry, err := m.ArchiveSession(rec, "")
	require.NoError(t, err)

	assert.Less(t, entry.CompressedSizeBytes, entry.OriginalSizeBytes/2,
		"typical text should compress to well under half size")
	assert.Contains(t, entry.ArchivePath, "/2026/03/")
	assert.Contains(t, entry.ArchivePath, "1690000000_sess_text.blob.gz")
}

func TestAutoArchiveBoundaries(t *testing.T) {
	m, st := newTestManager(t)

	now := time.Now().Unix()
	for i := 0; i < 3; i++ {
		rec := testSession(fmt.Sprintf("sess_b%d", i), now-int64(i))
		_, err := st.SaveSession(rec)
		require.NoError(t, err)
	}

	// An effectively infinite threshold archives nothing.
	summary := m.AutoArchiveOldSessions(1000000*time.Hour, nil)
	assert.Zero(t, summary.ArchivedCount)
	assert.Zero(t, summary.FailedCount)

	// Threshold zero archives everything currently in active history.
	summary = m.AutoArchiveOldSessions(0, nil)
	assert.Equal(t, 3, summary.ArchivedCount)
	assert.Zero(t, summary.FailedCount)
	assert.Greater(t, summary.SpaceSavedBytes, int64(0))

	files, err := st.ListHistoryFiles()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestAutoArchiveSkipsCorruptFiles(t *testing.T) {
	m, st := newTestManager(t)

	old := time.Now().Unix() - 90*24*3600
	rec := testSession("sess_ok", old)
	_, err := st.SaveSession(rec)
	require.NoError(t, err)

	bad := st.Layout().HistoryFile(old, "sess_bad")
	require.NoError(t, os.WriteFile(bad, []byte("{torn"), 0o644))

	var calls int
	summary := m.AutoArchiveOldSessions(30*24*time.Hour, func(processed, total int) { calls++ })
	assert.Equal(t, 1, summary.ArchivedCount)
	assert.Equal(t, 1, summary.FailedCount)
	assert.Greater(t, calls, 0)

	// The corrupt file is skipped, never deleted.
	assert.FileExists(t, bad)
}

func TestSearch(t *testing.T) {
	m, _ := newTestManager(t)

	sessions := []struct {
		id       string
		name     string
		dir      string
		modified int64
	}{
		{"sess_s1", "Deploy Service", "/srv/deploy", 1000},
		{"sess_s2", "deploy hotfix", "/srv/deploy", 3000},
		{"sess_s3", "Notebook", "/home/docs", 2000},
	}
	for _, s := range sessions {
		rec := testSession(s.id, s.modified)
		rec.Name = s.name
		rec.WorkingDirectory = s.dir
		_, err := m.ArchiveSession(rec, "")
		require.NoError(t, err)
	}

	results := m.Search(Query{Name: "DEPLOY"})
	require.Len(t, results, 2)
	assert.Equal(t, "sess_s2", results[0].SessionID, "newest first")
	assert.Equal(t, "sess_s1", results[1].SessionID)

	results = m.Search(Query{WorkingDirectory: "/home"})
	require.Len(t, results, 1)
	assert.Equal(t, "sess_s3", results[0].SessionID)

	// Inclusive time bounds.
	results = m.Search(Query{After: 2000, Before: 3000})
	require.Len(t, results, 2)
	assert.Equal(t, "sess_s2", results[0].SessionID)
	assert.Equal(t, "sess_s3", results[1].SessionID)

	results = m.Search(Query{Limit: 1})
	require.Len(t, results, 1)
	assert.Equal(t, "sess_s2", results[0].SessionID)

	assert.Empty(t, m.Search(Query{Name: "no such session"}))
}

func TestIndexSelfHealing(t *testing.T) {
	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)

	m := NewManager(st, st.Layout(), nil)
	for i := 0; i < 3; i++ {
		rec := testSession(fmt.Sprintf("sess_h%d", i), int64(1000*(i+1)))
		_, err := m.ArchiveSession(rec, "")
		require.NoError(t, err)
	}

	// Corrupt the persisted index, then search through a fresh manager.
	require.NoError(t, os.WriteFile(st.Layout().IndexFile(), []byte("][garbage"), 0o644))

	fresh := NewManager(st, st.Layout(), nil)
	results := fresh.Search(Query{Name: "refactor"})
	assert.Len(t, results, 3, "rebuild must recover every entry derivable from the tree")

	// The rebuilt index is persisted and valid again.
	data, err := os.ReadFile(st.Layout().IndexFile())
	require.NoError(t, err)
	entries := make(map[string]types.ArchiveEntry)
	require.NoError(t, json.Unmarshal(data, &entries))
	assert.Len(t, entries, 3)
}

func TestIndexDeletedSelfHealing(t *testing.T) {
	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)

	m := NewManager(st, st.Layout(), nil)
	rec := testSession("sess_gone_index", 5000)
	_, err = m.ArchiveSession(rec, "")
	require.NoError(t, err)

	require.NoError(t, os.Remove(st.Layout().IndexFile()))

	// A deleted index heals exactly like a corrupt one.
	fresh := NewManager(st, st.Layout(), nil)
	got, ok := fresh.RestoreSession("sess_gone_index")
	require.True(t, ok)
	assert.Equal(t, rec.ID, got.ID)
	assert.FileExists(t, st.Layout().IndexFile(), "rebuilt index is persisted")
}

func TestRebuildSkipsForeignFiles(t *testing.T) {
	m, st := newTestManager(t)

	rec := testSession("sess_keep", 4000)
	_, err := m.ArchiveSession(rec, "")
	require.NoError(t, err)

	junk := st.Layout().ArchiveDir() + "/2026/01"
	require.NoError(t, os.MkdirAll(junk, 0o755))
	require.NoError(t, os.WriteFile(junk+"/notes.txt", []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(junk+"/12345_sess_torn.blob.gz", []byte("not gzip"), 0o644))

	require.NoError(t, m.Rebuild())
	assert.Equal(t, 1, m.index.len())
}

func TestDeleteArchived(t *testing.T) {
	m, _ := newTestManager(t)

	rec := testSession("sess_del", 6000)
	entry, err := m.ArchiveSession(rec, "")
	require.NoError(t, err)

	require.NoError(t, m.DeleteArchived(rec.ID))
	assert.NoFileExists(t, entry.ArchivePath)

	_, ok := m.RestoreSession(rec.ID)
	assert.False(t, ok)
	assert.ErrorIs(t, m.DeleteArchived(rec.ID), store.ErrNotFound)
}

func TestStats(t *testing.T) {
	m, _ := newTestManager(t)

	for i := 0; i < 2; i++ {
		rec := testSession(fmt.Sprintf("sess_st%d", i), int64(7000+i))
		_, err := m.ArchiveSession(rec, "")
		require.NoError(t, err)
	}

	stats := m.Stats()
	assert.Equal(t, 2, stats.Entries)
	assert.Greater(t, stats.OriginalSizeBytes, stats.CompressedSizeBytes)
	assert.Greater(t, stats.OverallRatio, 0.0)
	assert.Less(t, stats.OverallRatio, 1.0)
}

func TestTriggerSweepGuardsOverlap(t *testing.T) {
	m, st := newTestManager(t)

	rec := testSession("sess_sweep", time.Now().Unix()-90*24*3600)
	_, err := st.SaveSession(rec)
	require.NoError(t, err)

	first := m.TriggerSweep(30 * 24 * time.Hour)
	assert.True(t, first)

	// With the running flag held, a concurrent trigger is a no-op.
	m.sweeper.running.Store(true)
	assert.False(t, m.TriggerSweep(0))
	m.sweeper.running.Store(false)
}
