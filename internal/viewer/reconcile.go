// Package viewer implements the client-side replica of one order: applying
// room snapshots and deltas idempotently, and suppressing stale snapshot
// echoes while a local edit is in flight. Suppression uses the order's
// monotonic mutation sequence rather than a boolean "my own echo" flag, so
// there is no flag-clearing window that can drop a concurrent update.
package viewer

import (
	"errors"
	"sync"

	"github.com/kirinyoku/mesa-go/internal/domain"
)

// ErrStaleBaseline means a delta cannot be applied safely: there is no
// snapshot baseline yet, the delta stream has a gap, or the delta references
// an item or batch this replica does not know. The caller recovers by
// re-fetching a full snapshot; this is never surfaced to the user.
var ErrStaleBaseline = errors.New("stale snapshot baseline")

// State is the viewer-local replica.
type State struct {
	mu     sync.Mutex
	snap   *domain.Snapshot
	issued uint64 // seq of our last locally-issued mutation
}

func New() *State {
	return &State{}
}

// NoteLocalMutation records the sequence number the server assigned to our
// own mutation. Any incoming snapshot older than this is a stale echo and
// must not clobber the in-progress local view.
func (s *State) NoteLocalMutation(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq > s.issued {
		s.issued = seq
	}
}

// ApplySnapshot installs a full snapshot. Returns false when the snapshot
// was suppressed (behind our last issued mutation) or was already applied;
// applying the same snapshot twice leaves visible state identical.
func (s *State) ApplySnapshot(snap domain.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.Seq < s.issued {
		return false
	}
	if s.snap != nil && snap.Seq < s.snap.Seq {
		return false
	}
	if s.snap != nil && snap.Seq == s.snap.Seq {
		// idempotent re-apply
		s.snap = &snap
		return true
	}
	s.snap = &snap
	return true
}

// ApplyDelta folds one incremental event into the replica. Duplicate deltas
// are no-ops; a gap in the sequence or an unknown reference yields
// ErrStaleBaseline.
func (s *State) ApplyDelta(ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap == nil {
		return ErrStaleBaseline
	}
	if ev.Seq <= s.snap.Seq {
		return nil // already reflected
	}
	if ev.Seq != s.snap.Seq+1 {
		return ErrStaleBaseline
	}

	switch ev.Type {
	case domain.EventItemStatus:
		if ev.Item == nil {
			return ErrStaleBaseline
		}
		if !s.applyItemStatus(*ev.Item) {
			return ErrStaleBaseline
		}
	case domain.EventBatchAppended:
		if ev.Batch == nil {
			return ErrStaleBaseline
		}
		if ev.Batch.Batch.ID != len(s.snap.Groups) {
			return ErrStaleBaseline
		}
		s.snap.Groups = append(s.snap.Groups, ev.Batch.Batch)
		// the baseline total may already include the draft lines that became
		// this batch; rebuild from the committed subtotals instead of adding
		s.snap.Draft = nil
		s.recountTotal()
	case domain.EventStatusChanged:
		if ev.Status == nil {
			return ErrStaleBaseline
		}
		s.snap.Status = ev.Status.Status
	default:
		return ErrStaleBaseline
	}

	s.snap.Seq = ev.Seq
	s.recountCompletion()
	return nil
}

func (s *State) applyItemStatus(d domain.ItemStatusDelta) bool {
	if d.BatchID < 0 || d.BatchID >= len(s.snap.Groups) {
		return false
	}
	items := s.snap.Groups[d.BatchID].Items
	for i := range items {
		if items[i].MenuItemID == d.MenuItemID {
			items[i].Status = d.Status
			if d.StartedAt != nil && items[i].StartedAt == nil {
				items[i].StartedAt = d.StartedAt
			}
			return true
		}
	}
	return false
}

func (s *State) recountTotal() {
	var total int64
	for _, g := range s.snap.Groups {
		if g.Cancelled {
			continue
		}
		total += g.Subtotal
	}
	s.snap.TotalPrice = total
}

func (s *State) recountCompletion() {
	var c domain.Completion
	for _, g := range s.snap.Groups {
		if g.Cancelled {
			continue
		}
		for _, li := range g.Items {
			c.Total++
			if li.Status == domain.ItemCompleted {
				c.Completed++
			}
		}
	}
	s.snap.Completion = c
}

// Snapshot returns a copy of the current replica state, or nil before the
// first snapshot lands.
func (s *State) Snapshot() *domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return nil
	}
	cp := *s.snap
	return &cp
}

// Seq is the replica's current sequence position (0 before any snapshot).
func (s *State) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return 0
	}
	return s.snap.Seq
}
