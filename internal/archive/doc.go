// Package archive implements the cold tier: promotion of aged sessions into
// compressed blobs, a searchable metadata index, and restoration back to
// live records.
//
// Promotion is crash-safe by ordering: the blob and the index entry are
// durably written before the active-history source is deleted. A crash in
// between leaves the original in place, and the next sweep re-archives it,
// overwriting the blob idempotently.
//
// The index is copy-on-write: mutations build a new map and atomically
// rewrite {root}/archive_index.json, so concurrent searches never observe a
// partial write. A corrupt or missing index is rebuilt by walking the
// archive tree and re-deriving entries from blob names and contents.
package archive
