// Package id provides centralized session ID generation.
//
// Session IDs are prefixed ULIDs (sess_<ulid>): lexicographically sortable,
// so blob filenames under the archive tree sort by creation time for free.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies one tracked terminal session.
type SessionID string

// SessionPrefix tags session IDs for readable logs.
const SessionPrefix = "sess"

// Generator generates ULIDs from a locked entropy source.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator(rand.Reader)
	})
	return defaultGenerator
}

// NewGenerator creates a generator with the given entropy source.
// Tests can pass a deterministic reader.
func NewGenerator(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// NewSessionID generates a new prefixed session ID.
func NewSessionID() SessionID {
	return SessionID(fmt.Sprintf("%s_%s", SessionPrefix, Default().Generate().String()))
}

// IsSessionID reports whether s carries the session prefix.
func IsSessionID(s string) bool {
	return strings.HasPrefix(s, SessionPrefix+"_")
}
