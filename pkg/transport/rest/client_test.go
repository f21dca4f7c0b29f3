package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestActivateAndDeactivate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		switch r.URL.Path {
		case "/v1/entities/u42/activate":
			json.NewEncoder(w).Encode(map[string]any{"active": true, "count": 7})
		case "/v1/entities/u42/deactivate":
			json.NewEncoder(w).Encode(map[string]any{"active": false, "count": 6})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)

	st, err := c.Activate(context.Background(), "u42")
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if !st.Active || st.Count != 7 {
		t.Errorf("Activate = %+v, want active with count 7", st)
	}

	st, err = c.Deactivate(context.Background(), "u42")
	if err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if st.Active || st.Count != 6 {
		t.Errorf("Deactivate = %+v, want inactive with count 6", st)
	}
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/v1/entities/post-9/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"active": true, "count": 12})
	}))
	defer srv.Close()

	st, err := New(srv.URL).Status(context.Background(), "post-9")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Active || st.Count != 12 {
		t.Errorf("Status = %+v, want {true 12}", st)
	}
}

func TestMarkRead(t *testing.T) {
	var got readMarkRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/read-marks" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(readMarkResponse{MarkedCount: len(got.ItemIDs)})
	}))
	defer srv.Close()

	n, err := New(srv.URL).MarkRead(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if n != 3 {
		t.Errorf("MarkRead = %d, want 3", n)
	}
	if len(got.ItemIDs) != 3 || got.ItemIDs[0] != "a" {
		t.Errorf("server saw item ids %v", got.ItemIDs)
	}
}

func TestFeedPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/feed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if w := r.URL.Query().Get("width"); w != "3" {
			t.Errorf("width = %q, want 3", w)
		}
		if cur := r.URL.Query().Get("cursor"); cur != "c1" {
			t.Errorf("cursor = %q, want c1", cur)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items":       []map[string]any{{"id": "i1", "author_id": "a"}},
			"next_cursor": "c2",
		})
	}))
	defer srv.Close()

	page, err := New(srv.URL).FeedPage(context.Background(), "c1", 3)
	if err != nil {
		t.Fatalf("FeedPage: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "i1" {
		t.Errorf("page items = %+v", page.Items)
	}
	if page.NextCursor != "c2" {
		t.Errorf("next cursor = %q, want c2", page.NextCursor)
	}
}

func TestErrorStatusSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"entity not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Status(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
}
