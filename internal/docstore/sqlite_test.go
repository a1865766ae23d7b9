package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func setupTestDB(t *testing.T) *SQLite {
	db, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLite_SetAndGet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.Set(ctx, "shelters", "s1", map[string]any{
		"name":     "Govt School",
		"capacity": "120/200",
	}, false)
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := db.Get(ctx, "shelters", "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Data["name"] != "Govt School" {
		t.Errorf("expected name 'Govt School', got %v", got.Data["name"])
	}
}

func TestSQLite_GetMissing(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Get(context.Background(), "alerts", "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLite_SetMerge(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	db.Set(ctx, "users", "u1", map[string]any{"fullName": "Asha", "theme": "dark"}, false)
	if err := db.Set(ctx, "users", "u1", map[string]any{"phone": "+91 98400"}, true); err != nil {
		t.Fatalf("merge Set failed: %v", err)
	}

	got, _ := db.Get(ctx, "users", "u1")
	if got.Data["theme"] != "dark" || got.Data["phone"] != "+91 98400" {
		t.Errorf("merge lost fields: %v", got.Data)
	}

	// Without merge the document is replaced
	db.Set(ctx, "users", "u1", map[string]any{"fullName": "Asha R"}, false)
	got, _ = db.Get(ctx, "users", "u1")
	if _, ok := got.Data["theme"]; ok {
		t.Errorf("expected theme to be dropped, got %v", got.Data)
	}
}

func TestSQLite_Update(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.Update(ctx, "alerts", "missing", map[string]any{"read": true}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	id, err := db.Add(ctx, "alerts", map[string]any{"title": "Rising water", "read": false})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := db.Update(ctx, "alerts", id, map[string]any{"read": true}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, _ := db.Get(ctx, "alerts", id)
	if got.Data["read"] != true || got.Data["title"] != "Rising water" {
		t.Errorf("unexpected data after update: %v", got.Data)
	}
}

func TestSQLite_SetRejectsInvalidID(t *testing.T) {
	db := setupTestDB(t)

	ids := []string{"", "__reserved__", "a/b", strings.Repeat("x", 1501)}
	for _, id := range ids {
		if err := db.Set(context.Background(), "alerts", id, map[string]any{}, false); !errors.Is(err, ErrInvalidID) {
			t.Errorf("id %q: expected ErrInvalidID, got %v", id, err)
		}
	}
}

func TestSQLite_ListOrderAndFilter(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		db.Set(ctx, "alerts", fmt.Sprintf("a%d", i), map[string]any{
			"title":     fmt.Sprintf("alert %d", i),
			"timestamp": base.Add(time.Duration(i) * time.Minute),
			"read":      i%2 == 0,
		}, false)
	}
	db.Set(ctx, "shelters", "s1", map[string]any{"name": "other collection"}, false)

	docs, err := db.List(ctx, Query{Collection: "alerts", OrderBy: "timestamp", Desc: true})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 5 {
		t.Fatalf("expected 5 alerts, got %d", len(docs))
	}
	if docs[0].ID != "a4" || docs[4].ID != "a0" {
		t.Errorf("expected newest first, got %s..%s", docs[0].ID, docs[4].ID)
	}

	unread, err := db.List(ctx, Query{
		Collection: "alerts",
		Where:      []Filter{{Field: "read", Value: false}},
		OrderBy:    "timestamp",
	})
	if err != nil {
		t.Fatalf("filtered List failed: %v", err)
	}
	if len(unread) != 2 || unread[0].ID != "a1" {
		t.Errorf("expected a1, a3 unread, got %v", unread)
	}

	limited, _ := db.List(ctx, Query{Collection: "alerts", OrderBy: "timestamp", Limit: 2})
	if len(limited) != 2 {
		t.Errorf("expected 2 with limit, got %d", len(limited))
	}
}

func TestSQLite_ListRejectsBadField(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.List(context.Background(), Query{Collection: "alerts", OrderBy: "x'); DROP TABLE documents; --"})
	if err == nil {
		t.Error("expected error for invalid order field")
	}
}

func TestSQLite_DeleteBatch(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 10; i++ {
		id, _ := db.Add(ctx, "alerts", map[string]any{"title": "x"})
		ids = append(ids, id)
	}

	if err := db.DeleteBatch(ctx, "alerts", ids[:7]); err != nil {
		t.Fatalf("DeleteBatch failed: %v", err)
	}

	docs, _ := db.List(ctx, Query{Collection: "alerts"})
	if len(docs) != 3 {
		t.Errorf("expected 3 remaining, got %d", len(docs))
	}

	tooMany := make([]string, MaxBatchSize+1)
	if err := db.DeleteBatch(ctx, "alerts", tooMany); !errors.Is(err, ErrBatchLimit) {
		t.Errorf("expected ErrBatchLimit, got %v", err)
	}
}

func TestSQLite_Watch(t *testing.T) {
	db := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db.Set(ctx, "resources", "r1", map[string]any{"name": "Water"}, false)

	snaps, err := db.Watch(ctx, Query{Collection: "resources", OrderBy: "name"})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	first := receive(t, snaps)
	if len(first.Docs) != 1 {
		t.Fatalf("expected initial snapshot with 1 doc, got %d", len(first.Docs))
	}

	// Writes to other collections do not trigger a snapshot
	db.Set(ctx, "shelters", "s1", map[string]any{"name": "Hall"}, false)
	db.Set(ctx, "resources", "r2", map[string]any{"name": "Food"}, false)

	second := receive(t, snaps)
	if len(second.Docs) != 2 || second.Docs[0].Data["name"] != "Food" {
		t.Errorf("expected [Food Water], got %v", second.Docs)
	}

	cancel()
	for range snaps {
	}
}

func TestSQLite_WatchEndsOnClose(t *testing.T) {
	db, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}

	snaps, _ := db.Watch(context.Background(), Query{Collection: "alerts"})
	receive(t, snaps)
	db.Close()

	select {
	case _, ok := <-snaps:
		if ok {
			// A snapshot may race with Close; the channel must still close.
			for range snaps {
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not end after Close")
	}
}

func TestValidateID(t *testing.T) {
	if err := ValidateID("alert-123"); err != nil {
		t.Errorf("expected valid id, got %v", err)
	}
	if err := ValidateID(strings.Repeat("a", 1500)); err != nil {
		t.Errorf("expected 1500-byte id to be valid, got %v", err)
	}
}

func receive(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s, ok := <-ch:
		if !ok {
			t.Fatal("snapshot channel closed")
		}
		if s.Err != nil {
			t.Fatalf("snapshot error: %v", s.Err)
		}
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return Snapshot{}
}
