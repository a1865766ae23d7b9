package models

import (
	"time"

	"github.com/mr1hm/floodsense/internal/geo"
)

type AlertType string

const (
	AlertTypeInfo    AlertType = "info"
	AlertTypeWarning AlertType = "warning"
	AlertTypeError   AlertType = "error"
	AlertTypeSuccess AlertType = "success"
)

func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeInfo, AlertTypeWarning, AlertTypeError, AlertTypeSuccess:
		return true
	}
	return false
}

type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Rank orders severities from Low (1) to Critical (4). Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// ZoneRadius is the radius in meters drawn around a flood marker of this severity.
func (s Severity) ZoneRadius() float64 {
	switch s {
	case SeverityCritical:
		return 2000
	case SeverityHigh:
		return 1500
	default:
		return 1000
	}
}

type Alert struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	Type        AlertType  `json:"type"`
	Timestamp   time.Time  `json:"timestamp"`
	Read        bool       `json:"read"`
	Location    string     `json:"location,omitempty"`
	District    string     `json:"district,omitempty"`
	Severity    Severity   `json:"severity,omitempty"`
	Coordinates *geo.Point `json:"coordinates,omitempty"`
}

// NewAlert carries the caller-supplied fields of an alert; id, timestamp
// and read state are assigned on creation.
type NewAlert struct {
	Title       string     `json:"title" binding:"required"`
	Message     string     `json:"message"`
	Type        AlertType  `json:"type" binding:"required"`
	Location    string     `json:"location,omitempty"`
	District    string     `json:"district,omitempty"`
	Severity    Severity   `json:"severity,omitempty"`
	Coordinates *geo.Point `json:"coordinates,omitempty"`
}

// TimeLayout is a fixed-width RFC 3339 layout so stored timestamps sort
// lexically in chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Fields returns the document representation stored in the alerts collection.
func (a *Alert) Fields() map[string]any {
	m := map[string]any{
		"title":     a.Title,
		"message":   a.Message,
		"type":      string(a.Type),
		"timestamp": FormatTime(a.Timestamp),
		"read":      a.Read,
	}
	if a.Location != "" {
		m["location"] = a.Location
	}
	if a.District != "" {
		m["district"] = a.District
	}
	if a.Severity != "" {
		m["severity"] = string(a.Severity)
	}
	if a.Coordinates != nil {
		m["coordinates"] = []any{a.Coordinates.Lat, a.Coordinates.Lng}
	}
	return m
}
