package model

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Id prefixes per entity kind.
const (
	PrefixProject   = "proj"
	PrefixSlide     = "slide"
	PrefixHotspot   = "hs"
	PrefixAnalytics = "evt"
)

const (
	base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	randomIDLength = 6
)

// IDGenerator produces entity ids.
// Implemented by TimestampIDs (production) and SequenceIDs (tests).
type IDGenerator interface {
	NewID(prefix string) string
}

// TimestampIDs generates ids of the form
//
//	prefix_<base36 unix millis>_<6 random base36 chars>
//
// Ids sort roughly by creation time. They are not cryptographically unique,
// but collisions are negligible for interactive editing.
//
// Thread-safety: TimestampIDs is safe for concurrent use.
type TimestampIDs struct {
	// Now overrides the time source. Defaults to time.Now.
	Now func() time.Time
}

// NewID returns a fresh id with the given prefix.
func (g TimestampIDs) NewID(prefix string) string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	ts := strconv.FormatInt(now().UnixMilli(), 36)
	return prefix + "_" + ts + "_" + randomBase36(randomIDLength)
}

func randomBase36(n int) string {
	var b strings.Builder
	b.Grow(n)
	limit := big.NewInt(int64(len(base36Alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			// crypto/rand never fails on supported platforms
			panic("randomBase36: " + err.Error())
		}
		b.WriteByte(base36Alphabet[idx.Int64()])
	}
	return b.String()
}

// SequenceIDs generates predictable ids (prefix_1, prefix_2, ...) with an
// independent counter per prefix. Used by tests and scripted scenarios.
//
// Thread-safety: SequenceIDs is safe for concurrent use via internal mutex.
type SequenceIDs struct {
	mu   sync.Mutex
	next map[string]int
}

// NewSequenceIDs creates a generator whose first id per prefix ends in 1.
func NewSequenceIDs() *SequenceIDs {
	return &SequenceIDs{next: make(map[string]int)}
}

// NewID returns the next id for prefix.
func (g *SequenceIDs) NewID(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next[prefix]++
	return prefix + "_" + strconv.Itoa(g.next[prefix])
}

// NewRecordID returns a time-sortable UUIDv7 for a ChangeRecord.
//
// Panics if UUID generation fails (should never happen in practice).
func NewRecordID() string {
	return uuid.Must(uuid.NewV7()).String()
}
