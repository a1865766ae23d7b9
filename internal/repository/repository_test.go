package repository

import (
	"context"
	"testing"
	"time"

	"github.com/mr1hm/floodsense/internal/docstore"
	"github.com/mr1hm/floodsense/internal/models"
)

func setupTestRepo(t *testing.T) (*Repository, *docstore.SQLite) {
	db, err := docstore.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), db
}

func TestRepository_AddAndListAlerts(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	alerts := []*models.Alert{
		{Title: "Heavy rain", Type: models.AlertTypeWarning, Timestamp: now.Add(-2 * time.Hour), District: "Chennai"},
		{Title: "River overflow", Type: models.AlertTypeError, Timestamp: now.Add(-time.Hour), District: "Chennai"},
		{Title: "Shelter open", Type: models.AlertTypeInfo, Timestamp: now, District: "Vellore", Read: true},
	}
	for _, a := range alerts {
		if err := repo.AddAlert(ctx, a); err != nil {
			t.Fatalf("AddAlert failed: %v", err)
		}
		if a.ID == "" {
			t.Fatal("expected AddAlert to assign an id")
		}
	}

	all, err := repo.ListAlerts(ctx, Filter{})
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(all) != 3 || all[0].Title != "Shelter open" {
		t.Errorf("expected newest first, got %+v", all)
	}

	// Test type filter
	warning := models.AlertTypeWarning
	results, _ := repo.ListAlerts(ctx, Filter{Type: &warning})
	if len(results) != 1 {
		t.Errorf("expected 1 warning, got %d", len(results))
	}

	// Test read filter
	unread := false
	results, _ = repo.ListAlerts(ctx, Filter{Read: &unread})
	if len(results) != 2 {
		t.Errorf("expected 2 unread, got %d", len(results))
	}

	// Test district filter with limit
	results, _ = repo.ListAlerts(ctx, Filter{District: "Chennai", Limit: 1})
	if len(results) != 1 || results[0].Title != "River overflow" {
		t.Errorf("expected latest Chennai alert, got %+v", results)
	}
}

func TestRepository_SkipsMalformedAlerts(t *testing.T) {
	repo, db := setupTestRepo(t)
	ctx := context.Background()

	db.Set(ctx, CollAlerts, "bad", map[string]any{"title": 42, "type": "info"}, false)
	repo.AddAlert(ctx, &models.Alert{Title: "ok", Type: models.AlertTypeInfo, Timestamp: time.Now()})

	results, err := repo.ListAlerts(ctx, Filter{})
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(results) != 1 || results[0].Title != "ok" {
		t.Errorf("expected only the valid alert, got %+v", results)
	}
}

func TestRepository_SetAlertReadAndDelete(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	a := &models.Alert{Title: "x", Type: models.AlertTypeInfo, Timestamp: time.Now()}
	repo.AddAlert(ctx, a)

	if err := repo.SetAlertRead(ctx, a.ID, true); err != nil {
		t.Fatalf("SetAlertRead failed: %v", err)
	}
	results, _ := repo.ListAlerts(ctx, Filter{})
	if !results[0].Read {
		t.Error("expected alert to be read")
	}

	ids, err := repo.AlertIDs(ctx)
	if err != nil || len(ids) != 1 {
		t.Fatalf("AlertIDs = %v, %v", ids, err)
	}
	if err := repo.DeleteAlerts(ctx, ids); err != nil {
		t.Fatalf("DeleteAlerts failed: %v", err)
	}
	ids, _ = repo.AlertIDs(ctx)
	if len(ids) != 0 {
		t.Errorf("expected no alerts, got %d", len(ids))
	}
}

func TestRepository_FloodLevels(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	levels, err := repo.FloodLevels(ctx)
	if err != nil || levels != nil {
		t.Fatalf("expected nil levels before first write, got %v, %v", levels, err)
	}

	if err := repo.SetFloodLevels(ctx, models.FloodLevels{Current: 2.4, Predicted: 3.1}); err != nil {
		t.Fatalf("SetFloodLevels failed: %v", err)
	}
	levels, err = repo.FloodLevels(ctx)
	if err != nil {
		t.Fatalf("FloodLevels failed: %v", err)
	}
	if levels.Current != 2.4 || levels.TimeToPeak != "N/A" {
		t.Errorf("unexpected levels: %+v", levels)
	}

	store := repo.Store()
	if err := store.Set(ctx, CollSystem, floodLevelsID, map[string]any{"current": "NaN"}, false); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	levels, err = repo.FloodLevels(ctx)
	if err != nil || levels != nil {
		t.Errorf("expected malformed levels to be skipped, got %v, %v", levels, err)
	}
}

func TestRepository_MergeProfile(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	p, err := repo.Profile(ctx, "u1")
	if err != nil || p != nil {
		t.Fatalf("expected no profile, got %v, %v", p, err)
	}

	repo.MergeProfile(ctx, "u1", map[string]any{"fullName": "Asha", "theme": "dark"})
	repo.MergeProfile(ctx, "u1", map[string]any{"phone": "12345"})

	p, err = repo.Profile(ctx, "u1")
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if p.FullName != "Asha" || p.Theme != models.ThemeDark || p.Phone != "12345" {
		t.Errorf("unexpected profile: %+v", p)
	}
	if p.UpdatedAt.IsZero() {
		t.Error("expected updatedAt to be stamped")
	}
}

func TestRepository_DirectoryCollections(t *testing.T) {
	repo, db := setupTestRepo(t)
	ctx := context.Background()

	db.Set(ctx, CollShelters, "s2", map[string]any{"name": "Town Hall", "capacity": "10/50"}, false)
	db.Set(ctx, CollShelters, "s1", map[string]any{"name": "Arena", "status": "Full"}, false)
	db.Set(ctx, CollCoordinators, "c1", map[string]any{"name": "Ravi"}, false)
	db.Set(ctx, CollResources, "r1", map[string]any{"name": "Water", "percentage": "140"}, false)

	shelters, _ := repo.Shelters(ctx)
	if len(shelters) != 2 || shelters[0].Name != "Arena" {
		t.Errorf("expected shelters ordered by name, got %+v", shelters)
	}
	coordinators, _ := repo.Coordinators(ctx)
	if len(coordinators) != 1 || coordinators[0].Role != "Coordinator" {
		t.Errorf("unexpected coordinators: %+v", coordinators)
	}
	resources, _ := repo.Resources(ctx)
	if len(resources) != 1 || resources[0].Percentage != 100 {
		t.Errorf("expected clamped percentage, got %+v", resources)
	}
}
