// Package livesync keeps an in-memory mirror of the live dashboard
// collections and applies alert mutations through the document store.
package livesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mr1hm/floodsense/internal/docstore"
	"github.com/mr1hm/floodsense/internal/models"
	"github.com/mr1hm/floodsense/internal/notify"
	"github.com/mr1hm/floodsense/internal/repository"
	"github.com/mr1hm/floodsense/internal/stream"
)

// ClearBatchSize stays under the store's per-commit write limit.
const ClearBatchSize = 450

var (
	ErrAlertNotFound  = errors.New("alert not found")
	ErrEmptyBroadcast = errors.New("broadcast message is empty")
	ErrInvalidAlert   = errors.New("invalid alert")
)

type EventKind string

const (
	EventSnapshot      EventKind = "snapshot"
	EventAlertAdded    EventKind = "alert_added"
	EventAlertRead     EventKind = "alert_read"
	EventAlertsCleared EventKind = "alerts_cleared"
	EventBroadcast     EventKind = "broadcast"
)

type Event struct {
	Kind       EventKind     `json:"kind"`
	Collection string        `json:"collection"`
	Alert      *models.Alert `json:"alert,omitempty"`
	Count      int           `json:"count,omitempty"`
	At         time.Time     `json:"at"`
}

type Hub struct {
	repo      *repository.Repository
	publisher notify.Publisher
	events    *stream.Broadcaster[Event]
	now       func() time.Time

	mu           sync.RWMutex
	alerts       []models.Alert
	shelters     []models.Shelter
	coordinators []models.Coordinator
	resources    []models.ResourceItem

	lmu       sync.Mutex
	listeners map[string]context.CancelFunc
	wg        sync.WaitGroup
}

func NewHub(repo *repository.Repository, publisher notify.Publisher) *Hub {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &Hub{
		repo:      repo,
		publisher: publisher,
		events:    stream.NewBroadcaster[Event](),
		now:       time.Now,
		listeners: make(map[string]context.CancelFunc),
	}
}

// Start subscribes to every live collection. Calling it again replaces the
// existing listeners.
func (h *Hub) Start(ctx context.Context) error {
	subs := []struct {
		query docstore.Query
		apply func([]docstore.Document)
	}{
		{repository.AlertsQuery, h.applyAlerts},
		{repository.SheltersQuery, h.applyShelters},
		{repository.CoordinatorsQuery, h.applyCoordinators},
		{repository.ResourcesQuery, h.applyResources},
	}

	for _, s := range subs {
		if err := h.listen(ctx, s.query, s.apply); err != nil {
			h.Stop()
			return err
		}
	}
	slog.Info("live sync started", "collections", len(subs))
	return nil
}

func (h *Hub) listen(ctx context.Context, q docstore.Query, apply func([]docstore.Document)) error {
	h.lmu.Lock()
	defer h.lmu.Unlock()

	if cancel, ok := h.listeners[q.Collection]; ok {
		cancel()
	}

	lctx, cancel := context.WithCancel(ctx)
	snaps, err := h.repo.Store().Watch(lctx, q)
	if err != nil {
		cancel()
		delete(h.listeners, q.Collection)
		return fmt.Errorf("subscribing to %s: %w", q.Collection, err)
	}
	h.listeners[q.Collection] = cancel

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for snap := range snaps {
			if snap.Err != nil {
				slog.Warn("snapshot listener error", "collection", q.Collection, "error", snap.Err)
				continue
			}
			apply(snap.Docs)
			h.emit(Event{Kind: EventSnapshot, Collection: q.Collection, Count: len(snap.Docs)})
		}
	}()
	return nil
}

// Stop cancels every listener, waits for their consumers and closes the
// event stream.
func (h *Hub) Stop() {
	h.lmu.Lock()
	for key, cancel := range h.listeners {
		cancel()
		delete(h.listeners, key)
	}
	h.lmu.Unlock()

	h.wg.Wait()
	h.events.Close()
}

func (h *Hub) ListenerCount() int {
	h.lmu.Lock()
	defer h.lmu.Unlock()
	return len(h.listeners)
}

func (h *Hub) Subscribe() (uint64, <-chan Event) {
	return h.events.Subscribe()
}

func (h *Hub) Unsubscribe(id uint64) {
	h.events.Unsubscribe(id)
}

func (h *Hub) emit(e Event) {
	if e.At.IsZero() {
		e.At = h.now()
	}
	h.events.Broadcast(e)
}

func (h *Hub) applyAlerts(docs []docstore.Document) {
	alerts := repository.DecodeAlerts(docs, h.now())
	h.mu.Lock()
	h.alerts = alerts
	h.mu.Unlock()
}

func (h *Hub) applyShelters(docs []docstore.Document) {
	shelters := repository.DecodeShelters(docs)
	h.mu.Lock()
	h.shelters = shelters
	h.mu.Unlock()
}

func (h *Hub) applyCoordinators(docs []docstore.Document) {
	coordinators := repository.DecodeCoordinators(docs)
	h.mu.Lock()
	h.coordinators = coordinators
	h.mu.Unlock()
}

func (h *Hub) applyResources(docs []docstore.Document) {
	resources := repository.DecodeResources(docs)
	h.mu.Lock()
	h.resources = resources
	h.mu.Unlock()
}

func (h *Hub) Alerts() []models.Alert {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.alerts)
}

func (h *Hub) Shelters() []models.Shelter {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.shelters)
}

func (h *Hub) Coordinators() []models.Coordinator {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.coordinators)
}

func (h *Hub) Resources() []models.ResourceItem {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.resources)
}

func (h *Hub) UnreadCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, a := range h.alerts {
		if !a.Read {
			n++
		}
	}
	return n
}

func (h *Hub) AddAlert(ctx context.Context, in models.NewAlert) (models.Alert, error) {
	if strings.TrimSpace(in.Title) == "" {
		return models.Alert{}, fmt.Errorf("%w: title is required", ErrInvalidAlert)
	}
	if !in.Type.Valid() {
		return models.Alert{}, fmt.Errorf("%w: unknown type %q", ErrInvalidAlert, in.Type)
	}
	if in.Severity != "" && !in.Severity.Valid() {
		return models.Alert{}, fmt.Errorf("%w: unknown severity %q", ErrInvalidAlert, in.Severity)
	}

	alert := models.Alert{
		Title:       in.Title,
		Message:     in.Message,
		Type:        in.Type,
		Timestamp:   h.now().UTC(),
		Location:    in.Location,
		District:    in.District,
		Severity:    in.Severity,
		Coordinates: in.Coordinates,
	}
	if err := h.repo.AddAlert(ctx, &alert); err != nil {
		return models.Alert{}, fmt.Errorf("adding alert: %w", err)
	}

	h.mu.Lock()
	if !slices.ContainsFunc(h.alerts, func(a models.Alert) bool { return a.ID == alert.ID }) {
		h.alerts = slices.Insert(h.alerts, 0, alert)
	}
	h.mu.Unlock()

	h.emit(Event{Kind: EventAlertAdded, Collection: repository.CollAlerts, Alert: &alert})
	return alert, nil
}

// MarkAlertAsRead flips the local copy first and restores it if the write
// fails.
func (h *Hub) MarkAlertAsRead(ctx context.Context, id string) error {
	h.mu.Lock()
	idx := h.indexOf(id)
	if idx < 0 {
		h.mu.Unlock()
		return fmt.Errorf("%s: %w", id, ErrAlertNotFound)
	}
	prev := h.alerts[idx].Read
	h.alerts[idx].Read = true
	h.mu.Unlock()

	if err := h.repo.SetAlertRead(ctx, id, true); err != nil {
		h.mu.Lock()
		if i := h.indexOf(id); i >= 0 {
			h.alerts[i].Read = prev
		}
		h.mu.Unlock()

		if errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("%s: %w", id, ErrAlertNotFound)
		}
		return fmt.Errorf("marking alert read: %w", err)
	}

	h.mu.RLock()
	var alert *models.Alert
	if i := h.indexOf(id); i >= 0 {
		a := h.alerts[i]
		alert = &a
	}
	h.mu.RUnlock()

	h.emit(Event{Kind: EventAlertRead, Collection: repository.CollAlerts, Alert: alert})
	return nil
}

// indexOf must be called with mu held.
func (h *Hub) indexOf(id string) int {
	return slices.IndexFunc(h.alerts, func(a models.Alert) bool { return a.ID == id })
}

// ClearAllAlerts deletes every stored alert in batches of ClearBatchSize.
// It returns how many were deleted, which is less than the total when a
// batch fails.
func (h *Hub) ClearAllAlerts(ctx context.Context) (int, error) {
	ids, err := h.repo.AlertIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing alerts: %w", err)
	}

	deleted := 0
	for chunk := range slices.Chunk(ids, ClearBatchSize) {
		if err := h.repo.DeleteAlerts(ctx, chunk); err != nil {
			return deleted, fmt.Errorf("deleting alerts: %w", err)
		}
		deleted += len(chunk)
	}

	h.mu.Lock()
	h.alerts = nil
	h.mu.Unlock()

	slog.Info("cleared alerts", "count", deleted)
	h.emit(Event{Kind: EventAlertsCleared, Collection: repository.CollAlerts, Count: deleted})
	return deleted, nil
}

// SendEmergencyBroadcast records the broadcast as an alert and publishes it
// to the district's subject, or to every region when district is empty.
func (h *Hub) SendEmergencyBroadcast(ctx context.Context, message, district string) (models.Alert, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return models.Alert{}, ErrEmptyBroadcast
	}
	district = strings.TrimSpace(district)

	text := "Message sent to all regions: " + message
	if district != "" {
		text = fmt.Sprintf("Message sent to %s: %s", district, message)
	}

	alert, err := h.AddAlert(ctx, models.NewAlert{
		Title:    "Broadcast Sent",
		Message:  text,
		Type:     models.AlertTypeSuccess,
		District: district,
	})
	if err != nil {
		return models.Alert{}, err
	}

	err = h.publisher.PublishBroadcast(ctx, notify.Broadcast{
		AlertID:  alert.ID,
		Message:  message,
		District: district,
		SentAt:   alert.Timestamp,
	})
	if err != nil {
		slog.Warn("failed to publish broadcast", "district", district, "error", err)
	}

	h.emit(Event{Kind: EventBroadcast, Collection: repository.CollAlerts, Alert: &alert})
	return alert, nil
}
