// Package routing finds drivable routes that avoid flooded areas, falling
// back to a straight line when no safe route exists.
package routing

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/mr1hm/floodsense/internal/geo"
	"github.com/mr1hm/floodsense/internal/models"
	"github.com/mr1hm/floodsense/internal/overlay"
)

const MaxShelterRoutes = 3

var (
	ErrLocationUnavailable = errors.New("location unavailable, enable location services")
	ErrNoShelterRoutes     = errors.New("no route to any shelter")
)

// SafeRouter returns (nil, nil) when no route avoiding the hazards exists and
// an error only when the lookup itself failed.
type SafeRouter interface {
	FindSafeRoute(ctx context.Context, start, end geo.Point, zones []models.FloodZone, roads []models.BlockedRoad) (*models.Route, error)
}

type Target struct {
	Name        string    `json:"name"`
	Coordinates geo.Point `json:"coordinates"`
}

type ShelterRoute struct {
	Target Target        `json:"target"`
	Route  *models.Route `json:"route"`
}

type MultiRoute struct {
	Selected     ShelterRoute   `json:"selected"`
	Alternatives []ShelterRoute `json:"alternatives"`
}

type Navigator struct {
	router   SafeRouter
	overlays *overlay.Set
}

func NewNavigator(router SafeRouter, overlays *overlay.Set) *Navigator {
	return &Navigator{router: router, overlays: overlays}
}

func (n *Navigator) CalculateRoute(ctx context.Context, start *geo.Point, end geo.Point) (*models.Route, error) {
	if start == nil {
		return nil, ErrLocationUnavailable
	}

	route, err := n.router.FindSafeRoute(ctx, *start, end, n.overlays.FloodZones, n.overlays.BlockedRoads)
	if err != nil {
		return nil, fmt.Errorf("finding safe route: %w", err)
	}
	if route == nil {
		return Fallback(*start, end), nil
	}
	return route, nil
}

// CalculateMultipleRoutes routes to the MaxShelterRoutes targets closest to
// start in parallel. Failed lookups are dropped; the closest target with a
// route becomes Selected.
func (n *Navigator) CalculateMultipleRoutes(ctx context.Context, start *geo.Point, targets []Target) (*MultiRoute, error) {
	if start == nil {
		return nil, ErrLocationUnavailable
	}

	nearest := slices.Clone(targets)
	slices.SortStableFunc(nearest, func(a, b Target) int {
		return cmp.Compare(geo.Between(*start, a.Coordinates), geo.Between(*start, b.Coordinates))
	})
	if len(nearest) > MaxShelterRoutes {
		nearest = nearest[:MaxShelterRoutes]
	}

	routes := make([]*models.Route, len(nearest))
	var g errgroup.Group
	for i, t := range nearest {
		g.Go(func() error {
			route, err := n.router.FindSafeRoute(ctx, *start, t.Coordinates, n.overlays.FloodZones, n.overlays.BlockedRoads)
			if err != nil {
				slog.Warn("shelter route lookup failed", "shelter", t.Name, "error", err)
				return nil
			}
			routes[i] = route
			return nil
		})
	}
	g.Wait()

	var found []ShelterRoute
	for i, r := range routes {
		if r != nil {
			found = append(found, ShelterRoute{Target: nearest[i], Route: r})
		}
	}
	if len(found) == 0 {
		return nil, ErrNoShelterRoutes
	}
	return &MultiRoute{Selected: found[0], Alternatives: found[1:]}, nil
}

// Fallback is the straight-line route used when the router finds nothing.
func Fallback(start, end geo.Point) *models.Route {
	distance := geo.Between(start, end)
	duration := distance / 30000 * 3600 // 30 km/h

	return &models.Route{
		Distance: distance,
		Duration: duration,
		Steps: []models.RouteStep{{
			Instruction: "Direct to destination",
			Distance:    distance,
			Duration:    duration,
			Coordinates: end.LngLat(),
		}},
		Coordinates: [][2]float64{start.LngLat(), end.LngLat()},
		Fallback:    true,
	}
}

func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%d m", int(math.Round(meters)))
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

func FormatDuration(seconds float64) string {
	s := int(math.Round(seconds))
	switch {
	case s < 60:
		return fmt.Sprintf("%d s", s)
	case s < 3600:
		return fmt.Sprintf("%d min", s/60)
	}
	h := s / 3600
	m := (s % 3600) / 60
	if m == 0 {
		return fmt.Sprintf("%d h", h)
	}
	return fmt.Sprintf("%d h %d min", h, m)
}
