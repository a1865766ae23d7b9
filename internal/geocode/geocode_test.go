package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/floodsense/internal/geo"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "floodsense-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "Adyar", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Write([]byte(`[
			{"display_name": "Adyar, Chennai, Tamil Nadu", "type": "suburb", "lat": "13.0012", "lon": "80.2565"},
			{"display_name": "broken", "type": "x", "lat": "n/a", "lon": "80"}
		]`))
	}))
	defer srv.Close()

	places, err := NewClient(srv.URL, "floodsense-test").Search(context.Background(), "  Adyar ")
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "Adyar, Chennai, Tamil Nadu", places[0].Name)
	assert.Equal(t, geo.Point{Lat: 13.0012, Lng: 80.2565}, places[0].Coordinates)
}

func TestSearch_EmptyQuery(t *testing.T) {
	_, err := NewClient("http://unused", "ua").Search(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearch_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "ua").Search(context.Background(), "Adyar")
	assert.Error(t, err)
}
