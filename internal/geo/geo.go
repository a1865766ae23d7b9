package geo

import (
	"math"
	"math/rand/v2"
)

// EarthRadius is the mean Earth radius in meters.
const EarthRadius = 6371e3

const (
	exitNudgeDegrees    = 0.005
	fallbackExitDegrees = 0.01
)

type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// LngLat returns the point in GeoJSON coordinate order.
func (p Point) LngLat() [2]float64 {
	return [2]float64{p.Lng, p.Lat}
}

func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Distance returns the great-circle distance in meters between two
// coordinates using the haversine formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	deltaPhi := (lat2 - lat1) * math.Pi / 180
	deltaLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*
			math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// Between is Distance for two points.
func Between(a, b Point) float64 {
	return Distance(a.Lat, a.Lng, b.Lat, b.Lng)
}

// Bearing returns the initial bearing from a to b in degrees [0, 360).
func Bearing(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	deltaLon := (b.Lng - a.Lng) * math.Pi / 180

	y := math.Sin(deltaLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) -
		math.Sin(lat1)*math.Cos(lat2)*math.Cos(deltaLon)

	bearing := math.Atan2(y, x) * 180 / math.Pi
	if bearing < 0 {
		bearing += 360
	}
	return bearing
}

// Centroid is the arithmetic mean of the vertices. The zero Point is
// returned for an empty slice.
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}
	var lat, lng float64
	for _, p := range points {
		lat += p.Lat
		lng += p.Lng
	}
	n := float64(len(points))
	return Point{Lat: lat / n, Lng: lng / n}
}

// PointInPolygon reports whether p lies inside the polygon using ray casting.
// Polygons with fewer than three vertices contain nothing.
func PointInPolygon(p Point, polygon []Point) bool {
	if len(polygon) < 3 {
		return false
	}

	inside := false
	j := len(polygon) - 1
	for i := 0; i < len(polygon); i++ {
		pi := polygon[i]
		pj := polygon[j]

		if ((pi.Lng > p.Lng) != (pj.Lng > p.Lng)) &&
			(p.Lat < (pj.Lat-pi.Lat)*(p.Lng-pi.Lng)/(pj.Lng-pi.Lng)+pi.Lat) {
			inside = !inside
		}
		j = i
	}
	return inside
}

// DistanceToSegment returns the approximate distance in meters from p to the
// segment ab. Coordinates are projected onto a local equirectangular plane
// centered on p, which is accurate for the few-kilometer spans of city roads.
func DistanceToSegment(p, a, b Point) float64 {
	cosLat := math.Cos(p.Lat * math.Pi / 180)
	project := func(q Point) (float64, float64) {
		x := (q.Lng - p.Lng) * math.Pi / 180 * EarthRadius * cosLat
		y := (q.Lat - p.Lat) * math.Pi / 180 * EarthRadius
		return x, y
	}

	ax, ay := project(a)
	bx, by := project(b)
	dx, dy := bx-ax, by-ay

	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(ax, ay)
	}

	t := -(ax*dx + ay*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(ax+t*dx, ay+t*dy)
}

// SafeExitPoint approximates a point just outside a flood zone: the zone
// vertex nearest to the user, pushed outward along the centroid-to-vertex
// direction. When the zone has no vertices a point at a random bearing
// around the user is returned instead. A nil rnd uses the global source.
func SafeExitPoint(zone []Point, user Point, rnd *rand.Rand) Point {
	if len(zone) == 0 {
		var angle float64
		if rnd != nil {
			angle = rnd.Float64() * 2 * math.Pi
		} else {
			angle = rand.Float64() * 2 * math.Pi
		}
		return Point{
			Lat: user.Lat + math.Sin(angle)*fallbackExitDegrees,
			Lng: user.Lng + math.Cos(angle)*fallbackExitDegrees,
		}
	}

	center := Centroid(zone)

	closest := zone[0]
	minDist := math.MaxFloat64
	for _, v := range zone {
		if d := Between(user, v); d < minDist {
			minDist = d
			closest = v
		}
	}

	vx := closest.Lat - center.Lat
	vy := closest.Lng - center.Lng
	mag := math.Sqrt(vx*vx + vy*vy)
	if mag == 0 {
		mag = 1
	}

	return Point{
		Lat: closest.Lat + vx/mag*exitNudgeDegrees,
		Lng: closest.Lng + vy/mag*exitNudgeDegrees,
	}
}
