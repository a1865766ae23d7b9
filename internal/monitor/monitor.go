// Package monitor polls rainfall for every district and raises alerts when
// a district's flood risk climbs to High or Critical.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mr1hm/floodsense/internal/config"
	"github.com/mr1hm/floodsense/internal/geo"
	"github.com/mr1hm/floodsense/internal/models"
	"github.com/mr1hm/floodsense/internal/weather"
	"github.com/mr1hm/floodsense/internal/worker"
)

// Rainfall thresholds in mm over the last hour.
const (
	CriticalRainfall = 50.0
	HighRainfall     = 20.0
	MediumRainfall   = 7.5
)

type WeatherSource interface {
	Current(ctx context.Context, p *geo.Point) (*weather.Conditions, error)
}

type AlertSink interface {
	AddAlert(ctx context.Context, in models.NewAlert) (models.Alert, error)
}

type Manager struct {
	cfg       *config.Config
	weather   WeatherSource
	alerts    AlertSink
	districts []models.District
	pool      *worker.Pool[models.District]
	wg        sync.WaitGroup

	mu     sync.Mutex
	levels map[string]models.Severity
}

func NewManager(cfg *config.Config, ws WeatherSource, alerts AlertSink, districts []models.District) *Manager {
	return &Manager{
		cfg:       cfg,
		weather:   ws,
		alerts:    alerts,
		districts: districts,
		levels:    make(map[string]models.Severity),
	}
}

// Classify maps rainfall in mm/h to a flood severity.
func Classify(rainfall float64) models.Severity {
	switch {
	case rainfall >= CriticalRainfall:
		return models.SeverityCritical
	case rainfall >= HighRainfall:
		return models.SeverityHigh
	case rainfall >= MediumRainfall:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func (m *Manager) Start(ctx context.Context) {
	m.pool = worker.NewPool("monitor", m.cfg.Worker.Count, m.cfg.Worker.BufferSize, m.check)
	m.pool.Start(ctx)

	if m.cfg.Monitor.Enabled && len(m.districts) > 0 {
		m.wg.Add(1)
		go m.runPoller(ctx, m.cfg.Monitor.PollInterval)
	}
}

func (m *Manager) runPoller(ctx context.Context, interval time.Duration) {
	defer m.wg.Done()
	slog.Info("starting rainfall poller", "districts", len(m.districts), "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("rainfall poller shutting down")
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Manager) poll(ctx context.Context) {
	slog.Debug("polling rainfall", "districts", len(m.districts))

	for _, d := range m.districts {
		if err := m.pool.Submit(ctx, d); err != nil {
			slog.Debug("poll interrupted", "error", err)
			return
		}
	}
}

func (m *Manager) check(ctx context.Context, d models.District) error {
	p := d.Coordinates
	cond, err := m.weather.Current(ctx, &p)
	if err != nil {
		return fmt.Errorf("weather for %s: %w", d.Name, err)
	}

	level := Classify(cond.Rainfall)
	prev := m.swapLevel(d.Name, level)
	if level.Rank() <= prev.Rank() || level.Rank() < models.SeverityHigh.Rank() {
		return nil
	}

	typ := models.AlertTypeWarning
	if level == models.SeverityCritical {
		typ = models.AlertTypeError
	}

	_, err = m.alerts.AddAlert(ctx, models.NewAlert{
		Title:       fmt.Sprintf("%s flood risk in %s", level, d.Name),
		Message:     fmt.Sprintf("%.1f mm of rain in the last hour in %s.", cond.Rainfall, d.Name),
		Type:        typ,
		District:    d.Name,
		Severity:    level,
		Coordinates: &p,
	})
	if err != nil {
		return fmt.Errorf("raising alert for %s: %w", d.Name, err)
	}

	slog.Info("flood risk raised", "district", d.Name, "level", level, "rainfall", cond.Rainfall)
	return nil
}

// swapLevel records level for district and returns the previous one. An
// unseen district counts as Low.
func (m *Manager) swapLevel(district string, level models.Severity) models.Severity {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.levels[district]
	if !ok {
		prev = models.SeverityLow
	}
	m.levels[district] = level
	return prev
}

// Level reports the last observed severity for district.
func (m *Manager) Level(district string) (models.Severity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.levels[district]
	return l, ok
}

func (m *Manager) Stop() {
	m.wg.Wait()
	if m.pool != nil {
		m.pool.Stop()
	}
	slog.Info("monitor stopped")
}
