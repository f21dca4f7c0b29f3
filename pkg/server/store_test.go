package server

import (
	"context"
	"testing"
	"time"

	"github.com/tessera-dev/tessera/pkg/feed"
)

func TestToggleTransitions(t *testing.T) {
	s := NewStore()

	st := s.Activate("u1", "post-1")
	if !st.Active || st.Count != 1 {
		t.Errorf("first activate = %+v, want {true 1}", st)
	}

	// Activating again is idempotent.
	st = s.Activate("u1", "post-1")
	if !st.Active || st.Count != 1 {
		t.Errorf("repeat activate = %+v, want {true 1}", st)
	}

	// A second actor moves the count.
	st = s.Activate("u2", "post-1")
	if st.Count != 2 {
		t.Errorf("second actor count = %d, want 2", st.Count)
	}

	st = s.Deactivate("u1", "post-1")
	if st.Active || st.Count != 1 {
		t.Errorf("deactivate = %+v, want {false 1}", st)
	}

	// Deactivating when not active changes nothing.
	st = s.Deactivate("u1", "post-1")
	if st.Count != 1 {
		t.Errorf("repeat deactivate count = %d, want 1", st.Count)
	}
}

func TestStatusPerActor(t *testing.T) {
	s := NewStore()
	s.Activate("u1", "post-1")

	if st := s.Status("u1", "post-1"); !st.Active || st.Count != 1 {
		t.Errorf("u1 status = %+v, want {true 1}", st)
	}
	if st := s.Status("u2", "post-1"); st.Active || st.Count != 1 {
		t.Errorf("u2 status = %+v, want {false 1}", st)
	}
	if st := s.Status("u1", "unknown"); st.Active || st.Count != 0 {
		t.Errorf("unknown entity status = %+v, want zero", st)
	}
}

func TestMarkReadDedupes(t *testing.T) {
	s := NewStore()

	if n := s.MarkRead("u1", []string{"a", "b", "a", ""}); n != 2 {
		t.Errorf("first mark = %d, want 2", n)
	}
	if n := s.MarkRead("u1", []string{"a", "c"}); n != 1 {
		t.Errorf("second mark = %d, want 1", n)
	}
	// Marks are per actor.
	if n := s.MarkRead("u2", []string{"a"}); n != 1 {
		t.Errorf("other actor mark = %d, want 1", n)
	}
}

func seedItems(n int) []feed.Item {
	items := make([]feed.Item, n)
	for i := range items {
		items[i] = feed.Item{
			ID:        "item-" + string(rune('a'+i)),
			AuthorID:  "author-" + string(rune('a'+i%3)),
			CreatedAt: time.Unix(int64(1700000000+i), 0),
		}
	}
	return items
}

func TestFeedPagination(t *testing.T) {
	s := NewStore()
	s.SeedItems(seedItems(5))

	page, next := s.FeedPage("", 2)
	if len(page) != 2 || next == "" {
		t.Fatalf("first page = %d items, next %q", len(page), next)
	}

	page, next = s.FeedPage(next, 2)
	if len(page) != 2 || next == "" {
		t.Fatalf("second page = %d items, next %q", len(page), next)
	}

	page, next = s.FeedPage(next, 2)
	if len(page) != 1 || next != "" {
		t.Fatalf("last page = %d items, next %q", len(page), next)
	}

	// Past the end.
	page, next = s.FeedPage("99", 2)
	if len(page) != 0 || next != "" {
		t.Errorf("past-end page = %d items, next %q", len(page), next)
	}
}

func TestStoreService(t *testing.T) {
	s := NewStore()
	svc := s.ServiceFor("u1")

	st, err := svc.Activate(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if !st.Active || st.Count != 1 {
		t.Errorf("Activate = %+v, want {true 1}", st)
	}

	n, err := svc.MarkRead(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if n != 2 {
		t.Errorf("MarkRead = %d, want 2", n)
	}
}
