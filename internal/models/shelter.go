package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mr1hm/floodsense/internal/geo"
)

type ShelterStatus string

const (
	ShelterAvailable ShelterStatus = "Available"
	ShelterNearFull  ShelterStatus = "Near Full"
	ShelterFull      ShelterStatus = "Full"
)

type ResourceLevel string

const (
	ResourcesAdequate ResourceLevel = "Adequate"
	ResourcesLow      ResourceLevel = "Low"
	ResourcesNone     ResourceLevel = "None"
)

type Shelter struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Location    string        `json:"location"`
	Capacity    string        `json:"capacity"` // "current/max"
	Status      ShelterStatus `json:"status"`
	Resources   ResourceLevel `json:"resources"`
	Contact     string        `json:"contact"`
	Coordinates *geo.Point    `json:"coordinates,omitempty"`
}

// Occupancy parses the "current/max" capacity string.
func (s *Shelter) Occupancy() (current, total int, err error) {
	parts := strings.Split(s.Capacity, "/")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed capacity %q", s.Capacity)
	}
	if current, err = strconv.Atoi(strings.TrimSpace(parts[0])); err != nil {
		return 0, 0, fmt.Errorf("malformed capacity %q: %w", s.Capacity, err)
	}
	if total, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
		return 0, 0, fmt.Errorf("malformed capacity %q: %w", s.Capacity, err)
	}
	if current < 0 || total < 0 {
		return 0, 0, fmt.Errorf("negative capacity %q", s.Capacity)
	}
	return current, total, nil
}

// OccupancyPercent is current/max as a percentage, 0 when unknown.
func (s *Shelter) OccupancyPercent() float64 {
	current, total, err := s.Occupancy()
	if err != nil || total == 0 {
		return 0
	}
	return float64(current) / float64(total) * 100
}

type Coordinator struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	Shelter string `json:"shelter"`
	Phone   string `json:"phone"`
	Avatar  string `json:"avatar,omitempty"`
}

type ResourceItem struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
	Icon       string  `json:"icon,omitempty"`
}
