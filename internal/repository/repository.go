// Package repository maps the dashboard's collections onto a document store.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mr1hm/floodsense/internal/docstore"
	"github.com/mr1hm/floodsense/internal/models"
)

const (
	CollAlerts       = "alerts"
	CollShelters     = "shelters"
	CollCoordinators = "coordinators"
	CollResources    = "resources"
	CollUsers        = "users"
	CollCredentials  = "credentials"
	CollSystem       = "system"

	floodLevelsID = "floodLevels"
)

// Queries are the live views the dashboard subscribes to.
var (
	AlertsQuery       = docstore.Query{Collection: CollAlerts, OrderBy: "timestamp", Desc: true}
	SheltersQuery     = docstore.Query{Collection: CollShelters, OrderBy: "name"}
	CoordinatorsQuery = docstore.Query{Collection: CollCoordinators, OrderBy: "name"}
	ResourcesQuery    = docstore.Query{Collection: CollResources, OrderBy: "name"}
)

type Filter struct {
	Limit    int
	Type     *models.AlertType
	Read     *bool
	District string
}

type AlertRepository interface {
	AddAlert(ctx context.Context, a *models.Alert) error
	SetAlertRead(ctx context.Context, id string, read bool) error
	ListAlerts(ctx context.Context, opts Filter) ([]models.Alert, error)
	AlertIDs(ctx context.Context) ([]string, error)
	DeleteAlerts(ctx context.Context, ids []string) error
}

type ProfileRepository interface {
	Profile(ctx context.Context, uid string) (*models.Profile, error)
	MergeProfile(ctx context.Context, uid string, fields map[string]any) error
}

type Repository struct {
	store docstore.Store
	now   func() time.Time
}

var (
	_ AlertRepository   = (*Repository)(nil)
	_ ProfileRepository = (*Repository)(nil)
)

func New(store docstore.Store) *Repository {
	return &Repository{store: store, now: time.Now}
}

func (r *Repository) Store() docstore.Store {
	return r.store
}

// AddAlert writes a and fills in its id when empty.
func (r *Repository) AddAlert(ctx context.Context, a *models.Alert) error {
	if a.ID == "" {
		id, err := r.store.Add(ctx, CollAlerts, a.Fields())
		if err != nil {
			return err
		}
		a.ID = id
		return nil
	}
	return r.store.Set(ctx, CollAlerts, a.ID, a.Fields(), false)
}

func (r *Repository) SetAlertRead(ctx context.Context, id string, read bool) error {
	return r.store.Update(ctx, CollAlerts, id, map[string]any{"read": read})
}

func (r *Repository) ListAlerts(ctx context.Context, opts Filter) ([]models.Alert, error) {
	q := AlertsQuery
	q.Limit = opts.Limit
	if opts.Type != nil {
		q.Where = append(q.Where, docstore.Filter{Field: "type", Value: string(*opts.Type)})
	}
	if opts.Read != nil {
		q.Where = append(q.Where, docstore.Filter{Field: "read", Value: *opts.Read})
	}
	if opts.District != "" {
		q.Where = append(q.Where, docstore.Filter{Field: "district", Value: opts.District})
	}

	docs, err := r.store.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return DecodeAlerts(docs, r.now()), nil
}

func (r *Repository) AlertIDs(ctx context.Context) ([]string, error) {
	docs, err := r.store.List(ctx, docstore.Query{Collection: CollAlerts})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

// DeleteAlerts removes ids in a single commit.
func (r *Repository) DeleteAlerts(ctx context.Context, ids []string) error {
	return r.store.DeleteBatch(ctx, CollAlerts, ids)
}

func (r *Repository) Shelters(ctx context.Context) ([]models.Shelter, error) {
	docs, err := r.store.List(ctx, SheltersQuery)
	if err != nil {
		return nil, err
	}
	return DecodeShelters(docs), nil
}

func (r *Repository) Coordinators(ctx context.Context) ([]models.Coordinator, error) {
	docs, err := r.store.List(ctx, CoordinatorsQuery)
	if err != nil {
		return nil, err
	}
	return DecodeCoordinators(docs), nil
}

func (r *Repository) Resources(ctx context.Context) ([]models.ResourceItem, error) {
	docs, err := r.store.List(ctx, ResourcesQuery)
	if err != nil {
		return nil, err
	}
	return DecodeResources(docs), nil
}

// FloodLevels returns nil when the document has not been written yet or
// cannot be decoded.
func (r *Repository) FloodLevels(ctx context.Context) (*models.FloodLevels, error) {
	doc, err := r.store.Get(ctx, CollSystem, floodLevelsID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	levels, err := models.DecodeFloodLevels(doc.Data)
	if err != nil {
		slog.Warn("skipping malformed flood levels", "error", err)
		return nil, nil
	}
	return &levels, nil
}

func (r *Repository) SetFloodLevels(ctx context.Context, l models.FloodLevels) error {
	if l.TimeToPeak == "" {
		l.TimeToPeak = "N/A"
	}
	return r.store.Set(ctx, CollSystem, floodLevelsID, map[string]any{
		"current":    l.Current,
		"predicted":  l.Predicted,
		"timeToPeak": l.TimeToPeak,
		"updatedAt":  models.FormatTime(r.now()),
	}, true)
}

// Profile returns nil when the user has no profile document.
func (r *Repository) Profile(ctx context.Context, uid string) (*models.Profile, error) {
	doc, err := r.store.Get(ctx, CollUsers, uid)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p, err := models.DecodeProfile(uid, doc.Data)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MergeProfile merges fields into users/{uid} and stamps updatedAt.
func (r *Repository) MergeProfile(ctx context.Context, uid string, fields map[string]any) error {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["updatedAt"] = models.FormatTime(r.now())

	if err := r.store.Set(ctx, CollUsers, uid, out, true); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	return nil
}

// DecodeAlerts converts documents, skipping and logging malformed ones.
func DecodeAlerts(docs []docstore.Document, now time.Time) []models.Alert {
	out := make([]models.Alert, 0, len(docs))
	for _, d := range docs {
		a, err := models.DecodeAlert(d.ID, d.Data, now)
		if err != nil {
			slog.Warn("skipping malformed document", "collection", CollAlerts, "error", err)
			continue
		}
		out = append(out, a)
	}
	return out
}

func DecodeShelters(docs []docstore.Document) []models.Shelter {
	out := make([]models.Shelter, 0, len(docs))
	for _, d := range docs {
		s, err := models.DecodeShelter(d.ID, d.Data)
		if err != nil {
			slog.Warn("skipping malformed document", "collection", CollShelters, "error", err)
			continue
		}
		out = append(out, s)
	}
	return out
}

func DecodeCoordinators(docs []docstore.Document) []models.Coordinator {
	out := make([]models.Coordinator, 0, len(docs))
	for _, d := range docs {
		c, err := models.DecodeCoordinator(d.ID, d.Data)
		if err != nil {
			slog.Warn("skipping malformed document", "collection", CollCoordinators, "error", err)
			continue
		}
		out = append(out, c)
	}
	return out
}

func DecodeResources(docs []docstore.Document) []models.ResourceItem {
	out := make([]models.ResourceItem, 0, len(docs))
	for _, d := range docs {
		r, err := models.DecodeResource(d.ID, d.Data)
		if err != nil {
			slog.Warn("skipping malformed document", "collection", CollResources, "error", err)
			continue
		}
		out = append(out, r)
	}
	return out
}
