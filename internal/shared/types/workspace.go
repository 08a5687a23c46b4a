package types

import (
	"encoding/json"
	"fmt"
)

// Workspace IDs are a small fixed range (keyboard-reachable tabs).
const (
	MinWorkspaceID = 1
	MaxWorkspaceID = 9
)

// WorkspaceRecord is the durable state of one workspace: its tab order and
// which session currently has focus. Layout is opaque to the store.
type WorkspaceRecord struct {
	Version         int             `json:"version"`
	ID              int             `json:"id"`
	ActiveSessionID *string         `json:"active_session_id,omitempty"`
	SessionIDs      []string        `json:"session_ids"`
	Layout          json.RawMessage `json:"layout,omitempty"`
}

// Validate rejects workspaces that violate the schema invariants.
func (w *WorkspaceRecord) Validate() error {
	if w.Version <= 0 || w.Version > RecordVersion {
		return fmt.Errorf("%w: %d", ErrUnknownVersion, w.Version)
	}
	if w.ID < MinWorkspaceID || w.ID > MaxWorkspaceID {
		return fmt.Errorf("%w: %d", ErrWorkspaceIDRange, w.ID)
	}
	if w.ActiveSessionID != nil && !w.Contains(*w.ActiveSessionID) {
		return ErrActiveNotMember
	}
	return nil
}

// Contains reports whether the session is a member of this workspace.
func (w *WorkspaceRecord) Contains(sessionID string) bool {
	for _, id := range w.SessionIDs {
		if id == sessionID {
			return true
		}
	}
	return false
}

// Attach appends a session at the end of the tab order. Re-attaching an
// existing member is a no-op, preserving insertion order.
func (w *WorkspaceRecord) Attach(sessionID string) {
	if w.Contains(sessionID) {
		return
	}
	w.SessionIDs = append(w.SessionIDs, sessionID)
}

// Detach removes a session from the tab order and clears focus if the
// detached session held it.
func (w *WorkspaceRecord) Detach(sessionID string) {
	for i, id := range w.SessionIDs {
		if id == sessionID {
			w.SessionIDs = append(w.SessionIDs[:i], w.SessionIDs[i+1:]...)
			break
		}
	}
	if w.ActiveSessionID != nil && *w.ActiveSessionID == sessionID {
		w.ActiveSessionID = nil
	}
}
