package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mr1hm/floodsense/internal/geo"
	"github.com/mr1hm/floodsense/internal/models"
)

// BlockedRoadClearance is the minimum distance in meters a safe route keeps
// from any blocked road segment.
const BlockedRoadClearance = 30.0

type osrmResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Distance float64      `json:"distance"`
	Duration float64      `json:"duration"`
	Geometry osrmGeometry `json:"geometry"`
	Legs     []osrmLeg    `json:"legs"`
}

type osrmGeometry struct {
	Coordinates [][2]float64 `json:"coordinates"` // [lon, lat]
}

type osrmLeg struct {
	Steps []osrmStep `json:"steps"`
}

type osrmStep struct {
	Distance float64      `json:"distance"`
	Duration float64      `json:"duration"`
	Name     string       `json:"name"`
	Maneuver osrmManeuver `json:"maneuver"`
}

type osrmManeuver struct {
	Type     string     `json:"type"`
	Modifier string     `json:"modifier"`
	Location [2]float64 `json:"location"` // [lon, lat]
}

// OSRM asks an OSRM-compatible server for driving routes and returns the
// first alternative that avoids flood zones and blocked roads.
type OSRM struct {
	baseURL string
	client  *http.Client
}

var _ SafeRouter = (*OSRM)(nil)

func NewOSRM(baseURL string, timeout time.Duration) *OSRM {
	return &OSRM{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (o *OSRM) FindSafeRoute(ctx context.Context, start, end geo.Point, zones []models.FloodZone, roads []models.BlockedRoad) (*models.Route, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?alternatives=true&steps=true&geometries=geojson&overview=full",
		o.baseURL, start.Lng, start.Lat, end.Lng, end.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	var data osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
		}
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}

	switch data.Code {
	case "Ok":
	case "NoRoute", "NoSegment":
		return nil, nil
	default:
		return nil, fmt.Errorf("router returned %s: %s", data.Code, data.Message)
	}

	for _, r := range data.Routes {
		path := make([]geo.Point, len(r.Geometry.Coordinates))
		for i, c := range r.Geometry.Coordinates {
			path[i] = geo.Point{Lat: c[1], Lng: c[0]}
		}
		if !IsSafe(path, zones, roads) {
			continue
		}
		return convertRoute(r), nil
	}
	return nil, nil
}

// IsSafe reports whether no point of path lies in a flood zone or within
// BlockedRoadClearance of a blocked road.
func IsSafe(path []geo.Point, zones []models.FloodZone, roads []models.BlockedRoad) bool {
	for _, p := range path {
		for _, z := range zones {
			if z.Contains(p) {
				return false
			}
		}
		for _, r := range roads {
			for i := 1; i < len(r.Coordinates); i++ {
				if geo.DistanceToSegment(p, r.Coordinates[i-1], r.Coordinates[i]) < BlockedRoadClearance {
					return false
				}
			}
		}
	}
	return true
}

func convertRoute(r osrmRoute) *models.Route {
	route := &models.Route{
		Distance:    r.Distance,
		Duration:    r.Duration,
		Coordinates: r.Geometry.Coordinates,
	}
	for _, leg := range r.Legs {
		for _, s := range leg.Steps {
			route.Steps = append(route.Steps, models.RouteStep{
				Instruction: instruction(s),
				Distance:    s.Distance,
				Duration:    s.Duration,
				Coordinates: s.Maneuver.Location,
			})
		}
	}
	return route
}

func instruction(s osrmStep) string {
	onto := ""
	if s.Name != "" {
		onto = " onto " + s.Name
	}

	switch s.Maneuver.Type {
	case "depart":
		if s.Name != "" {
			return "Head out on " + s.Name
		}
		return "Head out"
	case "arrive":
		return "Arrive at destination"
	case "roundabout", "rotary":
		return "Take the roundabout" + onto
	}

	verb := "Continue"
	switch s.Maneuver.Type {
	case "turn", "end of road", "fork":
		verb = "Turn"
	case "merge":
		verb = "Merge"
	case "on ramp":
		verb = "Take the ramp"
	case "off ramp":
		verb = "Take the exit"
	}
	if s.Maneuver.Modifier != "" && s.Maneuver.Modifier != "straight" {
		return verb + " " + s.Maneuver.Modifier + onto
	}
	return verb + onto
}
