package models

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestDecodeAlert_Valid(t *testing.T) {
	ts := time.Date(2025, 11, 2, 8, 30, 0, 0, time.UTC)
	data := map[string]any{
		"title":       "Flood",
		"message":     "Rapid water rise near station.",
		"type":        "error",
		"timestamp":   ts.Format(time.RFC3339),
		"read":        true,
		"district":    "Chennai",
		"severity":    "Critical",
		"coordinates": []any{13.0827, 80.2707},
	}

	a, err := DecodeAlert("a1", data, time.Now())
	if err != nil {
		t.Fatalf("DecodeAlert failed: %v", err)
	}
	if a.ID != "a1" || a.Type != AlertTypeError || !a.Read {
		t.Errorf("unexpected alert: %+v", a)
	}
	if !a.Timestamp.Equal(ts) {
		t.Errorf("expected timestamp %v, got %v", ts, a.Timestamp)
	}
	if a.Coordinates == nil || a.Coordinates.Lat != 13.0827 {
		t.Errorf("expected coordinates, got %+v", a.Coordinates)
	}
}

func TestDecodeAlert_NativeTimestamp(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a, err := DecodeAlert("a1", map[string]any{"title": "x", "type": "info", "timestamp": ts}, time.Now())
	if err != nil {
		t.Fatalf("DecodeAlert failed: %v", err)
	}
	if !a.Timestamp.Equal(ts) {
		t.Errorf("expected %v, got %v", ts, a.Timestamp)
	}
}

func TestDecodeAlert_MissingTimestampUsesNow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a, err := DecodeAlert("a1", map[string]any{"title": "x", "type": "info"}, now)
	if err != nil {
		t.Fatalf("DecodeAlert failed: %v", err)
	}
	if !a.Timestamp.Equal(now) {
		t.Errorf("expected %v, got %v", now, a.Timestamp)
	}
}

func TestDecodeAlert_Malformed(t *testing.T) {
	cases := map[string]map[string]any{
		"missing title":    {"type": "info"},
		"blank title":      {"title": "  ", "type": "info"},
		"unknown type":     {"title": "x", "type": "panic"},
		"numeric title":    {"title": 42, "type": "info"},
		"read as string":   {"title": "x", "type": "info", "read": "yes"},
		"bad severity":     {"title": "x", "type": "info", "severity": "Extreme"},
		"bad timestamp":    {"title": "x", "type": "info", "timestamp": "yesterday"},
		"bad coordinates":  {"title": "x", "type": "info", "coordinates": []any{1.0}},
		"coords off globe": {"title": "x", "type": "info", "coordinates": []any{91.0, 0.0}},
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeAlert("bad", data, time.Now())
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestDecodeShelter_Defaults(t *testing.T) {
	s, err := DecodeShelter("s1", map[string]any{"name": "Govt High School"})
	if err != nil {
		t.Fatalf("DecodeShelter failed: %v", err)
	}
	if s.Capacity != "0/0" || s.Status != ShelterAvailable || s.Resources != ResourcesAdequate {
		t.Errorf("unexpected defaults: %+v", s)
	}
}

func TestDecodeShelter_RejectsBadCapacity(t *testing.T) {
	_, err := DecodeShelter("s1", map[string]any{"name": "Hall", "capacity": "many"})
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestShelter_Occupancy(t *testing.T) {
	s := Shelter{Capacity: "180/200"}
	current, total, err := s.Occupancy()
	if err != nil {
		t.Fatalf("Occupancy failed: %v", err)
	}
	if current != 180 || total != 200 {
		t.Errorf("expected 180/200, got %d/%d", current, total)
	}
	if got := s.OccupancyPercent(); got != 90 {
		t.Errorf("expected 90%%, got %v", got)
	}

	empty := Shelter{Capacity: "0/0"}
	if got := empty.OccupancyPercent(); got != 0 {
		t.Errorf("expected 0 for empty shelter, got %v", got)
	}
}

func TestDecodeResource_NumericString(t *testing.T) {
	r, err := DecodeResource("r1", map[string]any{"name": "Water Stock", "percentage": "45"})
	if err != nil {
		t.Fatalf("DecodeResource failed: %v", err)
	}
	if r.Percentage != 45 {
		t.Errorf("expected 45, got %v", r.Percentage)
	}

	r, err = DecodeResource("r2", map[string]any{"name": "Food", "percentage": int64(140)})
	if err != nil {
		t.Fatalf("DecodeResource failed: %v", err)
	}
	if r.Percentage != 100 {
		t.Errorf("expected clamp to 100, got %v", r.Percentage)
	}
}

func TestDecodeResource_RejectsNonFinite(t *testing.T) {
	for _, v := range []any{"NaN", "Inf", "-Infinity", math.NaN(), math.Inf(1)} {
		_, err := DecodeResource("r1", map[string]any{"name": "Water Stock", "percentage": v})
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("percentage %v: expected ErrMalformed, got %v", v, err)
		}
	}

	if _, err := DecodeFloodLevels(map[string]any{"current": "NaN", "predicted": 3.2}); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed for NaN current level, got %v", err)
	}
}

func TestDecodeProfile_DefaultTheme(t *testing.T) {
	p, err := DecodeProfile("u1", map[string]any{"fullName": "Anitha Devi"})
	if err != nil {
		t.Fatalf("DecodeProfile failed: %v", err)
	}
	if p.Theme != ThemeSystem {
		t.Errorf("expected system theme, got %q", p.Theme)
	}
}

func TestDecodeFloodLevels(t *testing.T) {
	l, err := DecodeFloodLevels(map[string]any{"current": 2.8, "predicted": "3.2"})
	if err != nil {
		t.Fatalf("DecodeFloodLevels failed: %v", err)
	}
	if l.Current != 2.8 || l.Predicted != 3.2 || l.TimeToPeak != "N/A" {
		t.Errorf("unexpected levels: %+v", l)
	}
}

func TestAlert_FieldsRoundTrip(t *testing.T) {
	a := Alert{
		ID:        "a1",
		Title:     "Broadcast Sent",
		Message:   "Message sent to all regions: evacuate",
		Type:      AlertTypeSuccess,
		Timestamp: time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC),
	}

	got, err := DecodeAlert(a.ID, a.Fields(), time.Now())
	if err != nil {
		t.Fatalf("DecodeAlert failed: %v", err)
	}
	if got.Title != a.Title || got.Message != a.Message || !got.Timestamp.Equal(a.Timestamp) {
		t.Errorf("expected %+v, got %+v", a, got)
	}
}
