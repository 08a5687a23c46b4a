package paths

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLayout(t *testing.T) {
	l := Layout{Root: "/data"}

	assert.Equal(t, "/data/history", l.HistoryDir())
	assert.Equal(t, "/data/archive", l.ArchiveDir())
	assert.Equal(t, "/data/archive_index.json", l.IndexFile())
	assert.Equal(t, "/data/workspaces/3.json", l.WorkspaceFile(3))
	assert.Equal(t, "/data/history/1700000000_sess_abc.json", l.HistoryFile(1700000000, "sess_abc"))

	archivedAt := time.Date(2026, time.February, 9, 8, 0, 0, 0, time.UTC)
	blob := l.BlobFile(archivedAt, 1690000000, "sess_abc")
	assert.Equal(t, "/data/archive/2026/02/1690000000_sess_abc.blob.gz", blob)
}

func TestParseEntryNameRoundTrip(t *testing.T) {
	l := Layout{Root: "/data"}

	blob := l.BlobFile(time.Now(), 1690000000, "sess_01HX2")
	ts, id, ok := ParseEntryName(filepath.Base(blob))
	assert.True(t, ok)
	assert.Equal(t, int64(1690000000), ts)
	assert.Equal(t, "sess_01HX2", id)

	ts, id, ok = ParseEntryName("1700000000_sess_with_underscores.json")
	assert.True(t, ok)
	assert.Equal(t, int64(1700000000), ts)
	assert.Equal(t, "sess_with_underscores", id)
}

func TestParseEntryNameRejectsForeignNames(t *testing.T) {
	cases := []string{
		"README.md",
		"notes.json.bak",
		"nounderscore.json",
		"abc_sess_x.json", // non-numeric timestamp
		"_sess_x.json",
		"1700000000_.json",
	}
	for _, name := range cases {
		_, _, ok := ParseEntryName(name)
		assert.False(t, ok, name)
	}
}
