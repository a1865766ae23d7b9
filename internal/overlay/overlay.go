// Package overlay loads the static map layers: flood zones, blocked roads,
// sensors, per-area flood data and the district list.
package overlay

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mr1hm/floodsense/internal/geo"
	"github.com/mr1hm/floodsense/internal/models"
)

//go:embed default.yaml
var defaultData []byte

var ErrUnknownArea = errors.New("unknown area")

type Set struct {
	FloodZones   []models.FloodZone     `yaml:"floodZones" json:"floodZones"`
	BlockedRoads []models.BlockedRoad   `yaml:"blockedRoads" json:"blockedRoads"`
	Sensors      []models.Sensor        `yaml:"sensors" json:"sensors"`
	Areas        []models.AreaFloodData `yaml:"areas" json:"areas"`
	Districts    []models.District      `yaml:"districts" json:"districts"`
}

// Load reads an overlay file, or the built-in data set when path is empty.
func Load(path string) (*Set, error) {
	if path == "" {
		return Parse(defaultData)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading overlays: %w", err)
	}
	return Parse(data)
}

func Default() *Set {
	s, err := Parse(defaultData)
	if err != nil {
		panic(fmt.Sprintf("embedded overlays are invalid: %v", err))
	}
	return s
}

func Parse(data []byte) (*Set, error) {
	var s Set
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing overlays: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Set) validate() error {
	for i, z := range s.FloodZones {
		if z.Name == "" {
			return fmt.Errorf("flood zone %d: missing name", i)
		}
		if !z.Severity.Valid() {
			return fmt.Errorf("flood zone %q: unknown severity %q", z.Name, z.Severity)
		}
		if len(z.Coordinates) == 0 {
			return fmt.Errorf("flood zone %q: no coordinates", z.Name)
		}
		if err := validPoints(z.Coordinates...); err != nil {
			return fmt.Errorf("flood zone %q: %w", z.Name, err)
		}
	}
	for i, r := range s.BlockedRoads {
		switch r.Status {
		case models.RoadBlocked, models.RoadDamaged, models.RoadDemolished:
		default:
			return fmt.Errorf("blocked road %d: unknown status %q", i, r.Status)
		}
		if len(r.Coordinates) < 2 {
			return fmt.Errorf("blocked road %d: needs at least two points", i)
		}
		if err := validPoints(r.Coordinates...); err != nil {
			return fmt.Errorf("blocked road %d: %w", i, err)
		}
	}
	for _, sn := range s.Sensors {
		switch sn.Status {
		case models.SensorActive, models.SensorWarning, models.SensorOffline:
		default:
			return fmt.Errorf("sensor %q: unknown status %q", sn.ID, sn.Status)
		}
		if err := validPoints(sn.Coordinates); err != nil {
			return fmt.Errorf("sensor %q: %w", sn.ID, err)
		}
	}
	for _, a := range s.Areas {
		if !a.RiskLevel.Valid() {
			return fmt.Errorf("area %q: unknown risk level %q", a.Area, a.RiskLevel)
		}
		for _, sh := range a.NearbyShelters {
			if err := validPoints(sh.Coordinates); err != nil {
				return fmt.Errorf("area %q shelter %q: %w", a.Area, sh.Name, err)
			}
		}
	}
	for _, d := range s.Districts {
		if err := validPoints(d.Coordinates); err != nil {
			return fmt.Errorf("district %q: %w", d.Name, err)
		}
	}
	return nil
}

func validPoints(points ...geo.Point) error {
	for _, p := range points {
		if !p.Valid() {
			return fmt.Errorf("invalid coordinate %v", p)
		}
	}
	return nil
}

// Area looks up flood data by area name, ignoring case.
func (s *Set) Area(name string) (models.AreaFloodData, error) {
	for _, a := range s.Areas {
		if strings.EqualFold(a.Area, name) {
			return a, nil
		}
	}
	return models.AreaFloodData{}, fmt.Errorf("%q: %w", name, ErrUnknownArea)
}

func (s *Set) Zone(name string) (models.FloodZone, bool) {
	for _, z := range s.FloodZones {
		if strings.EqualFold(z.Name, name) {
			return z, true
		}
	}
	return models.FloodZone{}, false
}

func (s *Set) District(name string) (models.District, bool) {
	for _, d := range s.Districts {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return models.District{}, false
}

// ZonesAt returns every flood zone containing p.
func (s *Set) ZonesAt(p geo.Point) []models.FloodZone {
	var out []models.FloodZone
	for _, z := range s.FloodZones {
		if z.Contains(p) {
			out = append(out, z)
		}
	}
	return out
}

// Shelters lists the nearby shelters of every area, first occurrence of a
// name wins.
func (s *Set) Shelters() []models.NearbyShelter {
	seen := make(map[string]bool)
	var out []models.NearbyShelter
	for _, a := range s.Areas {
		for _, sh := range a.NearbyShelters {
			if seen[sh.Name] {
				continue
			}
			seen[sh.Name] = true
			out = append(out, sh)
		}
	}
	return out
}
