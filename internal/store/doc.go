// Package store implements the persistent tier: atomic single-file
// read/write of session and workspace records on durable storage.
//
// Every write goes through write-to-temp-then-rename, so readers never
// observe a torn record. Session snapshots live under {root}/history as one
// file per session, named {modified_at}_{session_id}.json; workspace records
// live under {root}/workspaces as {id}.json.
//
// Error taxonomy:
//   - ErrNotFound: the record does not exist; a normal outcome
//   - ErrCorrupt: the file exists but fails to decode or validate
//   - anything else: an I/O failure from the underlying filesystem
package store
