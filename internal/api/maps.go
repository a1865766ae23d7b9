package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/floodsense/internal/geo"
	"github.com/mr1hm/floodsense/internal/overlay"
	"github.com/mr1hm/floodsense/internal/routing"
)

// queryPoint parses a point from two query parameters. ok is false when
// both are absent.
func queryPoint(c *gin.Context, latKey, lngKey string) (geo.Point, bool, error) {
	latStr, lngStr := c.Query(latKey), c.Query(lngKey)
	if latStr == "" && lngStr == "" {
		return geo.Point{}, false, nil
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return geo.Point{}, false, fmt.Errorf("invalid %s", latKey)
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return geo.Point{}, false, fmt.Errorf("invalid %s", lngKey)
	}

	p := geo.Point{Lat: lat, Lng: lng}
	if !p.Valid() {
		return geo.Point{}, false, errors.New("coordinates out of range")
	}
	return p, true, nil
}

func optionalPoint(p geo.Point, ok bool) *geo.Point {
	if !ok {
		return nil
	}
	return &p
}

// pointsInRange reports whether every non-nil point is a valid coordinate.
func pointsInRange(points ...*geo.Point) bool {
	for _, p := range points {
		if p != nil && !p.Valid() {
			return false
		}
	}
	return true
}

func (h *Handler) overlays(c *gin.Context) {
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, toGeoJSON(h.Overlays))
}

func (h *Handler) districts(c *gin.Context) {
	c.JSON(http.StatusOK, h.Overlays.Districts)
}

func (h *Handler) area(c *gin.Context) {
	a, err := h.Overlays.Area(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) distance(c *gin.Context) {
	from, ok1, err := queryPoint(c, "fromLat", "fromLng")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	to, ok2, err := queryPoint(c, "toLat", "toLng")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if !ok1 || !ok2 {
		badRequest(c, "fromLat, fromLng, toLat and toLng are required")
		return
	}

	meters := geo.Between(from, to)
	c.JSON(http.StatusOK, gin.H{
		"meters":    meters,
		"formatted": routing.FormatDistance(meters),
	})
}

type exitPointRequest struct {
	Zone     string     `json:"zone" binding:"required"`
	Location *geo.Point `json:"location"`
}

func (h *Handler) exitPoint(c *gin.Context) {
	var req exitPointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "zone is required")
		return
	}
	if req.Location == nil {
		respondError(c, routing.ErrLocationUnavailable)
		return
	}
	if !pointsInRange(req.Location) {
		badRequest(c, "coordinates out of range")
		return
	}

	zone, ok := h.Overlays.Zone(req.Zone)
	if !ok {
		respondError(c, fmt.Errorf("%s: %w", req.Zone, overlay.ErrUnknownArea))
		return
	}

	exit := geo.SafeExitPoint(zone.Coordinates, *req.Location, nil)
	c.JSON(http.StatusOK, gin.H{
		"zone":     zone.Name,
		"exit":     exit,
		"distance": routing.FormatDistance(geo.Between(*req.Location, exit)),
	})
}

type routeRequest struct {
	Start    *geo.Point `json:"start"`
	End      *geo.Point `json:"end"`
	District string     `json:"district"`
}

type routeResponse struct {
	Route    any    `json:"route"`
	Distance string `json:"distance"`
	Duration string `json:"duration"`
}

func (h *Handler) route(c *gin.Context) {
	var req routeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid route request")
		return
	}
	if !pointsInRange(req.Start, req.End) {
		badRequest(c, "coordinates out of range")
		return
	}

	end := req.End
	if end == nil && req.District != "" {
		d, ok := h.Overlays.District(req.District)
		if !ok {
			respondError(c, fmt.Errorf("%s: %w", req.District, overlay.ErrUnknownArea))
			return
		}
		end = &d.Coordinates
	}
	if end == nil {
		badRequest(c, "end or district is required")
		return
	}

	route, err := h.Navigator.CalculateRoute(c.Request.Context(), req.Start, *end)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, routeResponse{
		Route:    route,
		Distance: routing.FormatDistance(route.Distance),
		Duration: routing.FormatDuration(route.Duration),
	})
}

// shelterRoutes routes to the nearest shelters known from the live
// directory and the overlay data.
func (h *Handler) shelterRoutes(c *gin.Context) {
	var req routeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid route request")
		return
	}
	if !pointsInRange(req.Start, req.End) {
		badRequest(c, "coordinates out of range")
		return
	}

	var targets []routing.Target
	for _, s := range h.Hub.Shelters() {
		if s.Coordinates != nil {
			targets = append(targets, routing.Target{Name: s.Name, Coordinates: *s.Coordinates})
		}
	}
	for _, s := range h.Overlays.Shelters() {
		targets = append(targets, routing.Target{Name: s.Name, Coordinates: s.Coordinates})
	}

	multi, err := h.Navigator.CalculateMultipleRoutes(c.Request.Context(), req.Start, targets)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, multi)
}
