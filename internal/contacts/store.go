package contacts

import (
	"sync"

	"contactdesk/internal/logging"
)

// Generation numbers load requests issued against a Store.
type Generation uint64

// Store keeps the canonical list mirrored from the server and the filtered
// view derived from it. Results of superseded loads are discarded.
type Store struct {
	mu        sync.RWMutex
	canonical []Contact
	visible   []Contact
	query     string
	issued    Generation
	applied   Generation
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Begin reserves the generation for a new load request.
func (s *Store) Begin() Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Apply installs list as the canonical list if gen is newer than the last
// applied generation, and resets the filtered view to the whole list.
// It reports whether the result was applied.
func (s *Store) Apply(gen Generation, list []Contact) bool {
	sorted := Sort(list)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen <= s.applied {
		logging.StoreWarn("discarding stale load: generation %d, applied %d", gen, s.applied)
		return false
	}
	s.applied = gen
	s.canonical = sorted
	s.visible = sorted
	s.query = ""
	logging.StoreDebug("applied generation %d: %d contacts", gen, len(sorted))
	return true
}

// Filter recomputes the visible view for query. No network call is made.
func (s *Store) Filter(query string) []Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = query
	s.visible = Filter(s.canonical, query)
	return s.visible
}

// Canonical returns the canonical list. Callers must not modify it.
func (s *Store) Canonical() []Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canonical
}

// Visible returns the filtered view. Callers must not modify it.
func (s *Store) Visible() []Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visible
}

// Query returns the query the visible view was derived from.
func (s *Store) Query() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

// Len returns the size of the canonical list.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.canonical)
}

// Find returns the canonical contact with id.
func (s *Store) Find(id ID) (Contact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.canonical {
		if c.ID == id {
			return c, true
		}
	}
	return Contact{}, false
}
