package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// RecordVersion is the current on-disk schema version for session and
// workspace records. Readers reject higher versions and migrate lower ones.
const RecordVersion = 1

var (
	ErrEmptyID          = errors.New("record has empty id")
	ErrTimestampOrder   = errors.New("modified_at precedes created_at")
	ErrNegativeCount    = errors.New("command_count is negative")
	ErrUnknownVersion   = errors.New("unknown record version")
	ErrActiveNotMember  = errors.New("active session is not a workspace member")
	ErrWorkspaceIDRange = errors.New("workspace id out of range")
)

// SessionRecord is the durable state of one terminal session.
type SessionRecord struct {
	Version          int             `json:"version"`
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	WorkingDirectory string          `json:"working_directory"`
	CreatedAt        int64           `json:"created_at"`
	ModifiedAt       int64           `json:"modified_at"`
	CommandCount     int             `json:"command_count"`
	LastCommand      string          `json:"last_command"`
	TranscriptRef    string          `json:"transcript_ref"`
	SizeBytes        int64           `json:"size_bytes"`
	Transcript       json.RawMessage `json:"transcript,omitempty"`
}

// Validate rejects records that violate the schema invariants.
func (r *SessionRecord) Validate() error {
	if r.Version <= 0 || r.Version > RecordVersion {
		return fmt.Errorf("%w: %d", ErrUnknownVersion, r.Version)
	}
	if r.ID == "" {
		return ErrEmptyID
	}
	if r.ModifiedAt < r.CreatedAt {
		return ErrTimestampOrder
	}
	if r.CommandCount < 0 {
		return ErrNegativeCount
	}
	return nil
}

// Touch records a command execution at the given Unix second.
func (r *SessionRecord) Touch(now int64, command string) {
	r.CommandCount++
	r.LastCommand = command
	if now > r.ModifiedAt {
		r.ModifiedAt = now
	}
}
