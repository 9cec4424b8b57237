// Package id provides ID generation for the component manager.
//
// IDs are ULIDs carrying a short type prefix:
//   - Sortable: controllers list in launch order
//   - Prefixed: logs show what kind of object an ID names (ctl_*, req_*)
//   - Typed: a RequestID cannot be passed where a ControllerID is expected
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

// ControllerID identifies an application controller
type ControllerID string

// RequestID identifies an admin API request
type RequestID string

const (
	ControllerPrefix = "ctl"
	RequestPrefix    = "req"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Tests use it for deterministic IDs.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewControllerID generates a new controller ID
func NewControllerID() ControllerID {
	return ControllerID(Default().GenerateWithPrefix(ControllerPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (id ControllerID) String() string { return string(id) }
func (id RequestID) String() string    { return string(id) }

// ParsePrefixed splits a prefixed ID and validates both halves.
func ParsePrefixed(id, prefix string) (ulid.ULID, error) {
	rest, ok := strings.CutPrefix(id, prefix+"_")
	if !ok {
		return ulid.ULID{}, fmt.Errorf("id %q lacks prefix %q", id, prefix)
	}
	return ulid.Parse(rest)
}

// ParseControllerID validates s as a controller ID
func ParseControllerID(s string) (ControllerID, error) {
	if _, err := ParsePrefixed(s, ControllerPrefix); err != nil {
		return "", err
	}
	return ControllerID(s), nil
}
