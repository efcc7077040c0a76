// Package snapshot holds the currently published Summary and sync metadata.
//
// A [Store] is copy-on-write: every write builds a fresh [Snapshot] and swaps
// it in with a single atomic store. Readers never block and always observe a
// complete (Summary, SyncMetadata) pair.
package snapshot

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/proddash/internal/summary"
)

// CycleState is the scheduler state recorded in SyncMetadata.
type CycleState string

const (
	StateIdle       CycleState = "idle"
	StateFetching   CycleState = "fetching"
	StateParsing    CycleState = "parsing"
	StatePublishing CycleState = "publishing"
	StateFailed     CycleState = "failed"
)

// SyncMetadata describes sync attempts. It is written only by the scheduler.
type SyncMetadata struct {
	LastAttempt         *time.Time    `json:"last_attempt"`
	LastSuccess         *time.Time    `json:"last_success"`
	LastError           *string       `json:"last_error"`
	LastErrorCode       string        `json:"last_error_code,omitempty"`
	InProgress          bool          `json:"in_progress"`
	State               CycleState    `json:"state"`
	CycleID             string        `json:"cycle_id,omitempty"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastDuration        time.Duration `json:"last_duration_ns"`
	Cycles              int           `json:"cycles"`
	// NextScheduled is the next timer tick while the scheduler runs.
	NextScheduled       *time.Time    `json:"next_scheduled"`
}

// Stale reports whether the latest attempt failed, meaning readers are
// served an older Summary (or the empty one).
func (m SyncMetadata) Stale() bool {
	return m.LastError != nil
}

func (m SyncMetadata) clone() SyncMetadata {
	out := m
	if m.LastAttempt != nil {
		t := *m.LastAttempt
		out.LastAttempt = &t
	}
	if m.LastSuccess != nil {
		t := *m.LastSuccess
		out.LastSuccess = &t
	}
	if m.LastError != nil {
		e := *m.LastError
		out.LastError = &e
	}
	if m.NextScheduled != nil {
		t := *m.NextScheduled
		out.NextScheduled = &t
	}
	return out
}

// Snapshot is one immutable published state.
type Snapshot struct {
	Summary *summary.Summary
	Meta    SyncMetadata
	// Raw is the workbook the Summary was parsed from, nil before the first
	// success. Callers must not modify it.
	Raw []byte
}

// Store owns the live snapshot.
type Store struct {
	current atomic.Pointer[Snapshot]
	mu      sync.Mutex // serializes writers
}

// New returns a Store serving the empty Summary.
func New() *Store {
	s := &Store{}
	s.current.Store(&Snapshot{
		Summary: summary.Empty(),
		Meta:    SyncMetadata{State: StateIdle},
	})
	return s
}

// Read returns the published Summary and the latest metadata.
func (s *Store) Read() (*summary.Summary, SyncMetadata) {
	snap := s.current.Load()
	return snap.Summary, snap.Meta.clone()
}

// Snapshot returns the complete published state.
func (s *Store) Snapshot() Snapshot {
	snap := s.current.Load()
	out := *snap
	out.Meta = snap.Meta.clone()
	return out
}

// Meta returns the latest metadata.
func (s *Store) Meta() SyncMetadata {
	return s.current.Load().Meta.clone()
}

// Publish replaces the Summary and raw workbook. Metadata is kept.
func (s *Store) Publish(sum *summary.Summary, raw []byte) {
	s.PublishWith(sum, raw, nil)
}

// PublishWith replaces the Summary and applies update to the metadata in the
// same atomic step. A nil sum publishes the empty Summary.
func (s *Store) PublishWith(sum *summary.Summary, raw []byte, update func(*SyncMetadata)) {
	if sum == nil {
		sum = summary.Empty()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	next := &Snapshot{Summary: sum, Meta: cur.Meta.clone(), Raw: raw}
	if update != nil {
		update(&next.Meta)
	}
	s.current.Store(next)
}

// UpdateMeta applies fn to a copy of the metadata and publishes the result.
// The Summary is untouched.
func (s *Store) UpdateMeta(fn func(*SyncMetadata)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	next := &Snapshot{Summary: cur.Summary, Meta: cur.Meta.clone(), Raw: cur.Raw}
	fn(&next.Meta)
	s.current.Store(next)
}
