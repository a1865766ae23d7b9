package models

import "github.com/mr1hm/floodsense/internal/geo"

type FloodZone struct {
	Name        string      `json:"name" yaml:"name"`
	Severity    Severity    `json:"severity" yaml:"severity"`
	Coordinates []geo.Point `json:"coordinates" yaml:"coordinates"`
}

// Contains reports whether p lies inside the zone. Zones with fewer than
// three vertices are circles around their centroid sized by severity.
func (z FloodZone) Contains(p geo.Point) bool {
	if len(z.Coordinates) == 0 {
		return false
	}
	if len(z.Coordinates) < 3 {
		return geo.Between(geo.Centroid(z.Coordinates), p) <= z.Severity.ZoneRadius()
	}
	return geo.PointInPolygon(p, z.Coordinates)
}

type RoadStatus string

const (
	RoadBlocked    RoadStatus = "blocked"
	RoadDamaged    RoadStatus = "damaged"
	RoadDemolished RoadStatus = "demolished"
)

type BlockedRoad struct {
	Status      RoadStatus  `json:"status" yaml:"status"`
	Coordinates []geo.Point `json:"coordinates" yaml:"coordinates"`
}

type SensorStatus string

const (
	SensorActive  SensorStatus = "active"
	SensorWarning SensorStatus = "warning"
	SensorOffline SensorStatus = "offline"
)

type Sensor struct {
	ID          string       `json:"id" yaml:"id"`
	Status      SensorStatus `json:"status" yaml:"status"`
	Coordinates geo.Point    `json:"coordinates" yaml:"coordinates"`
}

type NearbyShelter struct {
	Name             string    `json:"name" yaml:"name"`
	Distance         string    `json:"distance,omitempty" yaml:"distance"`
	Capacity         string    `json:"capacity" yaml:"capacity"`
	Coordinates      geo.Point `json:"coordinates" yaml:"coordinates"`
	OutsideFloodZone bool      `json:"outsideFloodZone" yaml:"outsideFloodZone"`
}

// AreaFloodData is the per-locality panel shown when a flood zone is selected.
type AreaFloodData struct {
	Area                string          `json:"area" yaml:"area"`
	CurrentWaterLevel   float64         `json:"currentWaterLevel" yaml:"currentWaterLevel"`
	PredictedWaterLevel float64         `json:"predictedWaterLevel" yaml:"predictedWaterLevel"`
	Rainfall            float64         `json:"rainfall" yaml:"rainfall"`
	RiskLevel           Severity        `json:"riskLevel" yaml:"riskLevel"`
	SafeRoutes          []string        `json:"safeRoutes" yaml:"safeRoutes"`
	NearbyShelters      []NearbyShelter `json:"nearbyShelters" yaml:"nearbyShelters"`
}

type District struct {
	Name        string    `json:"name" yaml:"name"`
	Coordinates geo.Point `json:"coordinates" yaml:"coordinates"`
}

type RouteStep struct {
	Instruction string     `json:"instruction"`
	Distance    float64    `json:"distance"` // meters
	Duration    float64    `json:"duration"` // seconds
	Coordinates [2]float64 `json:"coordinates"`
}

// Route is a drivable path. Coordinates are in [lng, lat] order.
type Route struct {
	Distance    float64      `json:"distance"`
	Duration    float64      `json:"duration"`
	Steps       []RouteStep  `json:"steps"`
	Coordinates [][2]float64 `json:"coordinates"`
	Fallback    bool         `json:"fallback"`
}
