package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mr1hm/floodsense/internal/geo"
)

// ErrMalformed marks a stored document that cannot be mapped onto its type.
var ErrMalformed = errors.New("malformed document")

type fieldError struct {
	id, field, reason string
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("document %s: field %q %s", e.id, e.field, e.reason)
}

func (e *fieldError) Unwrap() error { return ErrMalformed }

type fields struct {
	id   string
	data map[string]any
	err  error
}

func (f *fields) fail(field, reason string) {
	if f.err == nil {
		f.err = &fieldError{id: f.id, field: field, reason: reason}
	}
}

func (f *fields) str(key string, required bool) string {
	v, ok := f.data[key]
	if !ok || v == nil {
		if required {
			f.fail(key, "is required")
		}
		return ""
	}
	s, ok := v.(string)
	if !ok {
		f.fail(key, fmt.Sprintf("must be a string, got %T", v))
		return ""
	}
	if required && strings.TrimSpace(s) == "" {
		f.fail(key, "is required")
	}
	return s
}

func (f *fields) boolean(key string) bool {
	v, ok := f.data[key]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		f.fail(key, fmt.Sprintf("must be a bool, got %T", v))
	}
	return b
}

// number accepts native numerics and numeric strings. NaN and infinities
// are rejected.
func (f *fields) number(key string) float64 {
	v, ok := f.data[key]
	if !ok || v == nil {
		return 0
	}
	var x float64
	switch n := v.(type) {
	case float64:
		x = n
	case float32:
		x = float64(n)
	case int:
		x = float64(n)
	case int64:
		x = float64(n)
	case string:
		var err error
		x, err = strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			f.fail(key, "is not numeric")
			return 0
		}
	default:
		f.fail(key, fmt.Sprintf("must be a number, got %T", v))
		return 0
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		f.fail(key, "is not a finite number")
		return 0
	}
	return x
}

// timestamp accepts native times and RFC 3339 strings. Missing values
// resolve to fallback.
func (f *fields) timestamp(key string, fallback time.Time) time.Time {
	v, ok := f.data[key]
	if !ok || v == nil {
		return fallback
	}
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			f.fail(key, "is not an RFC 3339 timestamp")
		}
		return parsed
	}
	f.fail(key, fmt.Sprintf("must be a timestamp, got %T", v))
	return fallback
}

// point accepts [lat, lng] arrays and {lat, lng} maps.
func (f *fields) point(key string) *geo.Point {
	v, ok := f.data[key]
	if !ok || v == nil {
		return nil
	}
	p, err := ParsePoint(v)
	if err != nil {
		f.fail(key, err.Error())
		return nil
	}
	return &p
}

// ParsePoint converts a stored coordinate into a Point.
func ParsePoint(v any) (geo.Point, error) {
	toFloat := func(x any) (float64, bool) {
		switch n := x.(type) {
		case float64:
			return n, true
		case int64:
			return float64(n), true
		case int:
			return float64(n), true
		}
		return 0, false
	}

	var p geo.Point
	switch c := v.(type) {
	case []any:
		if len(c) != 2 {
			return p, fmt.Errorf("must have 2 elements, got %d", len(c))
		}
		lat, ok1 := toFloat(c[0])
		lng, ok2 := toFloat(c[1])
		if !ok1 || !ok2 {
			return p, errors.New("must contain numbers")
		}
		p = geo.Point{Lat: lat, Lng: lng}
	case map[string]any:
		lat, ok1 := toFloat(c["lat"])
		lng, ok2 := toFloat(c["lng"])
		if !ok1 || !ok2 {
			return p, errors.New("must have numeric lat and lng")
		}
		p = geo.Point{Lat: lat, Lng: lng}
	default:
		return p, fmt.Errorf("must be a coordinate, got %T", v)
	}
	if !p.Valid() {
		return p, errors.New("is out of range")
	}
	return p, nil
}

// DecodeAlert maps an alerts document. now is used when the document has no
// timestamp.
func DecodeAlert(id string, data map[string]any, now time.Time) (Alert, error) {
	f := &fields{id: id, data: data}
	a := Alert{
		ID:          id,
		Title:       f.str("title", true),
		Message:     f.str("message", false),
		Type:        AlertType(f.str("type", true)),
		Timestamp:   f.timestamp("timestamp", now),
		Read:        f.boolean("read"),
		Location:    f.str("location", false),
		District:    f.str("district", false),
		Severity:    Severity(f.str("severity", false)),
		Coordinates: f.point("coordinates"),
	}
	if f.err == nil && !a.Type.Valid() {
		f.fail("type", fmt.Sprintf("has unknown value %q", a.Type))
	}
	if f.err == nil && a.Severity != "" && !a.Severity.Valid() {
		f.fail("severity", fmt.Sprintf("has unknown value %q", a.Severity))
	}
	return a, f.err
}

func DecodeShelter(id string, data map[string]any) (Shelter, error) {
	f := &fields{id: id, data: data}
	s := Shelter{
		ID:          id,
		Name:        f.str("name", true),
		Location:    f.str("location", false),
		Capacity:    f.str("capacity", false),
		Status:      ShelterStatus(f.str("status", false)),
		Resources:   ResourceLevel(f.str("resources", false)),
		Contact:     f.str("contact", false),
		Coordinates: f.point("coordinates"),
	}
	if f.err != nil {
		return s, f.err
	}
	if s.Capacity == "" {
		s.Capacity = "0/0"
	} else if _, _, err := s.Occupancy(); err != nil {
		f.fail("capacity", "must be \"current/max\"")
	}
	switch s.Status {
	case "":
		s.Status = ShelterAvailable
	case ShelterAvailable, ShelterNearFull, ShelterFull:
	default:
		f.fail("status", fmt.Sprintf("has unknown value %q", s.Status))
	}
	switch s.Resources {
	case "":
		s.Resources = ResourcesAdequate
	case ResourcesAdequate, ResourcesLow, ResourcesNone:
	default:
		f.fail("resources", fmt.Sprintf("has unknown value %q", s.Resources))
	}
	return s, f.err
}

func DecodeCoordinator(id string, data map[string]any) (Coordinator, error) {
	f := &fields{id: id, data: data}
	c := Coordinator{
		ID:      id,
		Name:    f.str("name", true),
		Role:    f.str("role", false),
		Shelter: f.str("shelter", false),
		Phone:   f.str("phone", false),
		Avatar:  f.str("avatar", false),
	}
	if c.Role == "" {
		c.Role = "Coordinator"
	}
	return c, f.err
}

func DecodeResource(id string, data map[string]any) (ResourceItem, error) {
	f := &fields{id: id, data: data}
	r := ResourceItem{
		ID:         id,
		Name:       f.str("name", true),
		Percentage: f.number("percentage"),
		Icon:       f.str("icon", false),
	}
	r.Percentage = math.Max(0, math.Min(100, r.Percentage))
	return r, f.err
}

func DecodeProfile(uid string, data map[string]any) (Profile, error) {
	f := &fields{id: uid, data: data}
	p := Profile{
		FullName:         f.str("fullName", false),
		Email:            f.str("email", false),
		Phone:            f.str("phone", false),
		Role:             f.str("role", false),
		PhotoBase64:      f.str("photoBase64", false),
		Theme:            Theme(f.str("theme", false)),
		TwoFactorEnabled: f.boolean("twoFactorEnabled"),
		UpdatedAt:        f.timestamp("updatedAt", time.Time{}),
	}
	if p.Theme == "" {
		p.Theme = ThemeSystem
	} else if f.err == nil && !p.Theme.Valid() {
		f.fail("theme", fmt.Sprintf("has unknown value %q", p.Theme))
	}
	return p, f.err
}

func DecodeFloodLevels(data map[string]any) (FloodLevels, error) {
	f := &fields{id: "system/floodLevels", data: data}
	l := FloodLevels{
		Current:    f.number("current"),
		Predicted:  f.number("predicted"),
		TimeToPeak: f.str("timeToPeak", false),
		UpdatedAt:  f.timestamp("updatedAt", time.Time{}),
	}
	if l.TimeToPeak == "" {
		l.TimeToPeak = "N/A"
	}
	return l, f.err
}
