package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/curiefense/curieproxy-go/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "access.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	recs := []*storage.AccessRecord{
		{RequestID: "req-1", Method: "GET", Path: "/a", RemoteIP: "203.0.113.1", Action: "pass", RawMap: `{"headers":{}}`},
		{RequestID: "req-2", Method: "POST", Path: "/b", RemoteIP: "203.0.113.2", Action: "custom_response", Status: 403, Tags: `{"geo:fr":1}`, RawMap: `{"headers":{}}`},
	}
	for _, rec := range recs {
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	// Newest first.
	if got[0].RequestID != "req-2" || got[1].RequestID != "req-1" {
		t.Errorf("unexpected order: %s, %s", got[0].RequestID, got[1].RequestID)
	}
	if got[0].Tags != `{"geo:fr":1}` {
		t.Errorf("unexpected tags: %q", got[0].Tags)
	}
	if got[0].Action != "custom_response" || got[0].Status != 403 {
		t.Errorf("unexpected outcome columns: %q %d", got[0].Action, got[0].Status)
	}
	if got[1].Action != "pass" || got[1].Status != 0 {
		t.Errorf("unexpected outcome columns: %q %d", got[1].Action, got[1].Status)
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("expected created_at to be populated")
	}
}

func TestRecent_Limit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := store.Append(ctx, &storage.AccessRecord{Method: "GET", Path: "/", RawMap: "{}"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 records, got %d", len(got))
	}
}
