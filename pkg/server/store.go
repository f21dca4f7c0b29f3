package server

import (
	"context"
	"strconv"
	"sync"

	"github.com/tessera-dev/tessera/pkg/feed"
	"github.com/tessera-dev/tessera/pkg/toggle"
)

// entityState is the server-side truth for one toggleable entity.
type entityState struct {
	active map[string]bool // actor id -> active
	count  int
}

// Store is the in-memory engagement store backing the reference server.
// It tracks toggle state per entity and actor, read marks per actor, and
// the feed items served to clients.
type Store struct {
	mu       sync.Mutex
	entities map[string]*entityState
	read     map[string]map[string]bool // actor id -> item id -> read
	items    []feed.Item
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		entities: make(map[string]*entityState),
		read:     make(map[string]map[string]bool),
	}
}

// SeedItems replaces the feed contents. Items are served in the order
// given.
func (s *Store) SeedItems(items []feed.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]feed.Item(nil), items...)
}

func (s *Store) entity(id string) *entityState {
	e, ok := s.entities[id]
	if !ok {
		e = &entityState{active: make(map[string]bool)}
		s.entities[id] = e
	}
	return e
}

// Activate turns the toggle on for actorID on entityID. Already-active
// calls are idempotent; the count moves only on a real transition.
func (s *Store) Activate(actorID, entityID string) toggle.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entity(entityID)
	if !e.active[actorID] {
		e.active[actorID] = true
		e.count++
	}
	return toggle.Status{Active: true, Count: e.count}
}

// Deactivate turns the toggle off for actorID on entityID.
func (s *Store) Deactivate(actorID, entityID string) toggle.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entity(entityID)
	if e.active[actorID] {
		delete(e.active, actorID)
		if e.count > 0 {
			e.count--
		}
	}
	return toggle.Status{Active: false, Count: e.count}
}

// Status reports the toggle state for actorID on entityID.
func (s *Store) Status(actorID, entityID string) toggle.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[entityID]
	if !ok {
		return toggle.Status{}
	}
	return toggle.Status{Active: e.active[actorID], Count: e.count}
}

// MarkRead records itemIDs as read for actorID and returns how many were
// newly marked. Blank ids and repeats count zero.
func (s *Store) MarkRead(actorID string, itemIDs []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	marks, ok := s.read[actorID]
	if !ok {
		marks = make(map[string]bool)
		s.read[actorID] = marks
	}

	n := 0
	for _, id := range itemIDs {
		if id == "" || marks[id] {
			continue
		}
		marks[id] = true
		n++
	}
	return n
}

// FeedPage returns up to limit items starting at cursor (a zero-based
// offset; blank means the start) and the cursor for the next page.
func (s *Store) FeedPage(cursor string, limit int) ([]feed.Item, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := parseCursor(cursor)
	if start >= len(s.items) {
		return nil, ""
	}

	end := start + limit
	next := ""
	if end < len(s.items) {
		next = formatCursor(end)
	} else {
		end = len(s.items)
	}

	page := append([]feed.Item(nil), s.items[start:end]...)
	return page, next
}

func parseCursor(c string) int {
	if c == "" {
		return 0
	}
	n, err := strconv.Atoi(c)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func formatCursor(n int) string {
	return strconv.Itoa(n)
}

// storeService adapts a Store to the client service interfaces for one
// actor. Useful for wiring controllers straight to an in-process store.
type storeService struct {
	store   *Store
	actorID string
}

// ServiceFor returns a toggle and read-mark service view of the store
// acting as actorID.
func (s *Store) ServiceFor(actorID string) interface {
	toggle.Service
	ReadService
} {
	return &storeService{store: s, actorID: actorID}
}

// ReadService mirrors the client-side read-mark service boundary.
type ReadService interface {
	MarkRead(ctx context.Context, itemIDs []string) (int, error)
}

func (s *storeService) Activate(_ context.Context, entityID string) (toggle.Status, error) {
	return s.store.Activate(s.actorID, entityID), nil
}

func (s *storeService) Deactivate(_ context.Context, entityID string) (toggle.Status, error) {
	return s.store.Deactivate(s.actorID, entityID), nil
}

func (s *storeService) Status(_ context.Context, entityID string) (toggle.Status, error) {
	return s.store.Status(s.actorID, entityID), nil
}

func (s *storeService) MarkRead(_ context.Context, itemIDs []string) (int, error) {
	return s.store.MarkRead(s.actorID, itemIDs), nil
}
