package detection

import "go.uber.org/atomic"

// snapshot is the immutable unit swapped into a Store.
type snapshot struct {
	dets    []Detection
	version uint64
	closed  bool
}

// Store holds the current detection set for one overlay session.
//
// Writers replace the whole set and readers take the current snapshot; both
// are a single pointer swap, so a reader sees either the previous set or the
// new one in full.
type Store struct {
	current *atomic.Pointer[snapshot]
}

// NewStore returns an empty, open store.
func NewStore() *Store {
	return &Store{current: atomic.NewPointer(&snapshot{})}
}

// Replace installs a copy of dets as the current set.
//
// After Close, Replace is a no-op and returns false. Callers may keep
// ownership of dets; the store never aliases it.
func (s *Store) Replace(dets []Detection) bool {
	next := clone(dets)
	for {
		cur := s.current.Load()
		if cur.closed {
			return false
		}
		if s.current.CompareAndSwap(cur, &snapshot{dets: next, version: cur.version + 1}) {
			return true
		}
	}
}

// Snapshot returns the current set for read-only iteration.
func (s *Store) Snapshot() []Detection {
	return s.current.Load().dets
}

// Version returns the number of successful replacements and clears so far.
func (s *Store) Version() uint64 {
	return s.current.Load().version
}

// Clear empties the store without closing it.
func (s *Store) Clear() {
	for {
		cur := s.current.Load()
		if cur.closed {
			return
		}
		if s.current.CompareAndSwap(cur, &snapshot{version: cur.version + 1}) {
			return
		}
	}
}

// Close empties the store and rejects all later replacements. It is idempotent.
func (s *Store) Close() {
	for {
		cur := s.current.Load()
		if cur.closed {
			return
		}
		if s.current.CompareAndSwap(cur, &snapshot{version: cur.version + 1, closed: true}) {
			return
		}
	}
}

// Reopen makes a closed store accept replacements again, starting empty.
// It is a no-op on an open store.
func (s *Store) Reopen() {
	for {
		cur := s.current.Load()
		if !cur.closed {
			return
		}
		if s.current.CompareAndSwap(cur, &snapshot{version: cur.version + 1}) {
			return
		}
	}
}

// Closed reports whether Close has been called since the last Reopen.
func (s *Store) Closed() bool {
	return s.current.Load().closed
}
