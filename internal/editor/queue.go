package editor

import (
	"slices"
	"sync"

	"github.com/roach88/hotspot/internal/clock"
	"github.com/roach88/hotspot/internal/model"
)

// ChangeQueue holds ChangeRecords until the persistence layer confirms
// them.
//
// Records are kept in append order and stamped from a logical clock, so the
// records of one scope are strictly ordered. A record leaves the queue only
// through Ack (confirmed write) or Discard (its scope no longer exists);
// a failed flush leaves it in place for the next attempt.
//
// A position record supersedes any earlier queued position record of the
// same hotspot: only the latest drag position is worth writing.
//
// Thread-safety: ChangeQueue is safe for concurrent use.
type ChangeQueue struct {
	mu      sync.Mutex
	records []model.ChangeRecord
	seq     *clock.Seq
	newID   func() string
}

// NewChangeQueue creates an empty queue stamping records from seq.
func NewChangeQueue(seq *clock.Seq) *ChangeQueue {
	if seq == nil {
		seq = clock.NewSeq()
	}
	return &ChangeQueue{
		records: make([]model.ChangeRecord, 0, 16),
		seq:     seq,
		newID:   model.NewRecordID,
	}
}

// Append stamps r with an id and the next sequence number and adds it to the
// back of the queue. It returns the stamped record.
func (q *ChangeQueue) Append(r model.ChangeRecord) model.ChangeRecord {
	q.mu.Lock()
	defer q.mu.Unlock()

	if r.ID == "" {
		r.ID = q.newID()
	}
	r.Seq = q.seq.Next()

	if r.Action == model.ActionPosition && r.Hotspot != nil {
		id := r.Hotspot.ID
		q.records = slices.DeleteFunc(q.records, func(old model.ChangeRecord) bool {
			return old.Action == model.ActionPosition && old.Hotspot != nil && old.Hotspot.ID == id
		})
	}
	q.records = append(q.records, r)
	return r
}

// Pending returns the queued records of scope in sequence order. An empty
// scope returns every record.
func (q *ChangeQueue) Pending(scope string) []model.ChangeRecord {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]model.ChangeRecord, 0, len(q.records))
	for _, r := range q.records {
		if scope == "" || r.Scope == scope {
			out = append(out, r)
		}
	}
	return out
}

// Scopes returns the scopes with queued records, ordered by their oldest
// record.
func (q *ChangeQueue) Scopes() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	seen := make(map[string]bool)
	var out []string
	for _, r := range q.records {
		if !seen[r.Scope] {
			seen[r.Scope] = true
			out = append(out, r.Scope)
		}
	}
	return out
}

// Ack removes the records with the given ids and returns how many were
// removed. Unknown ids are ignored, so acknowledging twice is harmless.
func (q *ChangeQueue) Ack(ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	done := make(map[string]bool, len(ids))
	for _, id := range ids {
		done[id] = true
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	before := len(q.records)
	q.records = slices.DeleteFunc(q.records, func(r model.ChangeRecord) bool {
		return done[r.ID]
	})
	return before - len(q.records)
}

// Discard drops every record of scope and returns how many were dropped.
func (q *ChangeQueue) Discard(scope string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	before := len(q.records)
	q.records = slices.DeleteFunc(q.records, func(r model.ChangeRecord) bool {
		return r.Scope == scope
	})
	return before - len(q.records)
}

// Len returns the number of queued records.
func (q *ChangeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}
