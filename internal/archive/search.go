package archive

import (
	"sort"
	"strings"

	"github.com/wallon-qodo/multi-term-sub001/internal/shared/types"
)

// Query filters the archive index. Zero-valued fields do not constrain.
// Name and WorkingDirectory are case-insensitive substring matches; After
// and Before bound the session's original timestamp inclusively.
type Query struct {
	Name             string
	WorkingDirectory string
	After            int64
	Before           int64
	Limit            int
}

// Search runs a pure in-memory query over the index: no blob is ever opened.
// Results are newest-first by original timestamp; Limit truncates after
// filtering.
func (m *Manager) Search(q Query) []types.ArchiveEntry {
	m.ensureIndex()

	name := strings.ToLower(q.Name)
	dir := strings.ToLower(q.WorkingDirectory)

	var results []types.ArchiveEntry
	for _, e := range m.index.snapshot() {
		if name != "" && !strings.Contains(strings.ToLower(e.Name), name) {
			continue
		}
		if dir != "" && !strings.Contains(strings.ToLower(e.WorkingDirectory), dir) {
			continue
		}
		if q.After != 0 && e.OriginalTimestamp < q.After {
			continue
		}
		if q.Before != 0 && e.OriginalTimestamp > q.Before {
			continue
		}
		results = append(results, e)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].OriginalTimestamp != results[j].OriginalTimestamp {
			return results[i].OriginalTimestamp > results[j].OriginalTimestamp
		}
		return results[i].SessionID < results[j].SessionID
	})

	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results
}
