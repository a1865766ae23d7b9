package api

import (
	"github.com/mr1hm/floodsense/internal/geo"
	"github.com/mr1hm/floodsense/internal/overlay"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

func pointGeometry(p geo.Point) Geometry {
	return Geometry{Type: "Point", Coordinates: p.LngLat()}
}

func lineGeometry(points []geo.Point) Geometry {
	coords := make([][2]float64, len(points))
	for i, p := range points {
		coords[i] = p.LngLat()
	}
	return Geometry{Type: "LineString", Coordinates: coords}
}

// polygonGeometry closes the ring as GeoJSON requires.
func polygonGeometry(points []geo.Point) Geometry {
	ring := make([][2]float64, 0, len(points)+1)
	for _, p := range points {
		ring = append(ring, p.LngLat())
	}
	if len(points) > 0 && points[0] != points[len(points)-1] {
		ring = append(ring, points[0].LngLat())
	}
	return Geometry{Type: "Polygon", Coordinates: [][][2]float64{ring}}
}

func toGeoJSON(s *overlay.Set) FeatureCollection {
	features := make([]Feature, 0, len(s.FloodZones)+len(s.BlockedRoads)+len(s.Sensors))

	for _, z := range s.FloodZones {
		f := Feature{
			Type: "Feature",
			Properties: map[string]any{
				"layer":    "floodZone",
				"name":     z.Name,
				"severity": z.Severity,
			},
		}
		if len(z.Coordinates) < 3 {
			f.Geometry = pointGeometry(geo.Centroid(z.Coordinates))
			f.Properties["radius"] = z.Severity.ZoneRadius()
		} else {
			f.Geometry = polygonGeometry(z.Coordinates)
		}
		features = append(features, f)
	}

	for _, r := range s.BlockedRoads {
		features = append(features, Feature{
			Type:       "Feature",
			Geometry:   lineGeometry(r.Coordinates),
			Properties: map[string]any{"layer": "blockedRoad", "status": r.Status},
		})
	}

	for _, sn := range s.Sensors {
		features = append(features, Feature{
			Type:       "Feature",
			Geometry:   pointGeometry(sn.Coordinates),
			Properties: map[string]any{"layer": "sensor", "id": sn.ID, "status": sn.Status},
		})
	}

	for _, sh := range s.Shelters() {
		features = append(features, Feature{
			Type:     "Feature",
			Geometry: pointGeometry(sh.Coordinates),
			Properties: map[string]any{
				"layer":            "shelter",
				"name":             sh.Name,
				"capacity":         sh.Capacity,
				"outsideFloodZone": sh.OutsideFloodZone,
			},
		})
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
