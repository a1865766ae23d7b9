package routing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/floodsense/internal/geo"
	"github.com/mr1hm/floodsense/internal/models"
	"github.com/mr1hm/floodsense/internal/overlay"
)

type fakeRouter struct {
	mu     sync.Mutex
	calls  []geo.Point
	routes map[geo.Point]*models.Route
	errs   map[geo.Point]error
}

func (f *fakeRouter) FindSafeRoute(ctx context.Context, start, end geo.Point, zones []models.FloodZone, roads []models.BlockedRoad) (*models.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, end)
	if err := f.errs[end]; err != nil {
		return nil, err
	}
	return f.routes[end], nil
}

var (
	chennai   = geo.Point{Lat: 13.0827, Lng: 80.2707}
	tNagar    = geo.Point{Lat: 13.0418, Lng: 80.2341}
	adyar     = geo.Point{Lat: 13.0012, Lng: 80.2565}
	tambaram  = geo.Point{Lat: 12.9249, Lng: 80.1}
	vellore   = geo.Point{Lat: 12.9165, Lng: 79.1325}
	someRoute = &models.Route{Distance: 4200, Duration: 600}
)

func TestCalculateRoute_NoLocation(t *testing.T) {
	nav := NewNavigator(&fakeRouter{}, overlay.Default())

	_, err := nav.CalculateRoute(context.Background(), nil, chennai)
	assert.ErrorIs(t, err, ErrLocationUnavailable)
}

func TestCalculateRoute_UsesRouter(t *testing.T) {
	router := &fakeRouter{routes: map[geo.Point]*models.Route{tNagar: someRoute}}
	nav := NewNavigator(router, overlay.Default())

	got, err := nav.CalculateRoute(context.Background(), &chennai, tNagar)
	require.NoError(t, err)
	assert.Same(t, someRoute, got)
	assert.False(t, got.Fallback)
}

func TestCalculateRoute_Fallback(t *testing.T) {
	nav := NewNavigator(&fakeRouter{}, overlay.Default())

	got, err := nav.CalculateRoute(context.Background(), &chennai, tNagar)
	require.NoError(t, err)

	want := geo.Between(chennai, tNagar)
	assert.True(t, got.Fallback)
	assert.InDelta(t, want, got.Distance, 1e-9)
	assert.InDelta(t, want/30000*3600, got.Duration, 1e-9)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, "Direct to destination", got.Steps[0].Instruction)
	assert.Equal(t, [][2]float64{{chennai.Lng, chennai.Lat}, {tNagar.Lng, tNagar.Lat}}, got.Coordinates)
}

func TestCalculateRoute_RouterError(t *testing.T) {
	boom := errors.New("router unreachable")
	router := &fakeRouter{errs: map[geo.Point]error{tNagar: boom}}
	nav := NewNavigator(router, overlay.Default())

	_, err := nav.CalculateRoute(context.Background(), &chennai, tNagar)
	assert.ErrorIs(t, err, boom)
}

func TestCalculateMultipleRoutes_NearestThree(t *testing.T) {
	router := &fakeRouter{routes: map[geo.Point]*models.Route{
		tNagar:   {Distance: 1},
		adyar:    {Distance: 2},
		tambaram: {Distance: 3},
		vellore:  {Distance: 4},
	}}
	nav := NewNavigator(router, overlay.Default())

	targets := []Target{
		{Name: "Vellore", Coordinates: vellore},
		{Name: "Tambaram", Coordinates: tambaram},
		{Name: "T. Nagar", Coordinates: tNagar},
		{Name: "Adyar", Coordinates: adyar},
	}
	got, err := nav.CalculateMultipleRoutes(context.Background(), &chennai, targets)
	require.NoError(t, err)

	assert.Equal(t, "T. Nagar", got.Selected.Target.Name)
	require.Len(t, got.Alternatives, 2)
	assert.Equal(t, "Adyar", got.Alternatives[0].Target.Name)
	assert.Equal(t, "Tambaram", got.Alternatives[1].Target.Name)
	assert.Len(t, router.calls, 3)
	assert.NotContains(t, router.calls, vellore)
}

func TestCalculateMultipleRoutes_DropsFailures(t *testing.T) {
	router := &fakeRouter{
		routes: map[geo.Point]*models.Route{tambaram: {Distance: 3}},
		errs:   map[geo.Point]error{tNagar: errors.New("timeout")},
	}
	nav := NewNavigator(router, overlay.Default())

	got, err := nav.CalculateMultipleRoutes(context.Background(), &chennai, []Target{
		{Name: "T. Nagar", Coordinates: tNagar},
		{Name: "Adyar", Coordinates: adyar},
		{Name: "Tambaram", Coordinates: tambaram},
	})
	require.NoError(t, err)
	assert.Equal(t, "Tambaram", got.Selected.Target.Name)
	assert.Empty(t, got.Alternatives)
}

func TestCalculateMultipleRoutes_NoRoutes(t *testing.T) {
	nav := NewNavigator(&fakeRouter{}, overlay.Default())

	_, err := nav.CalculateMultipleRoutes(context.Background(), &chennai, []Target{{Name: "Adyar", Coordinates: adyar}})
	assert.ErrorIs(t, err, ErrNoShelterRoutes)

	_, err = nav.CalculateMultipleRoutes(context.Background(), &chennai, nil)
	assert.ErrorIs(t, err, ErrNoShelterRoutes)

	_, err = nav.CalculateMultipleRoutes(context.Background(), nil, []Target{{Name: "Adyar", Coordinates: adyar}})
	assert.ErrorIs(t, err, ErrLocationUnavailable)
}

func TestFormatDistance(t *testing.T) {
	assert.Equal(t, "0 m", FormatDistance(0))
	assert.Equal(t, "850 m", FormatDistance(849.6))
	assert.Equal(t, "1.0 km", FormatDistance(1000))
	assert.Equal(t, "12.3 km", FormatDistance(12345))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45 s", FormatDuration(45))
	assert.Equal(t, "12 min", FormatDuration(750))
	assert.Equal(t, "1 h", FormatDuration(3600))
	assert.Equal(t, "1 h 5 min", FormatDuration(3900))
}
