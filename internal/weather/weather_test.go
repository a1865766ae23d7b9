package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/floodsense/internal/geo"
)

const owmBody = `{
  "name": "Chennai",
  "weather": [{"main": "Rain", "description": "heavy intensity rain", "icon": "10d"}],
  "main": {"temp": 27.4, "humidity": 91},
  "wind": {"speed": 6.2},
  "rain": {"1h": 21.5}
}`

func newTestServer(t *testing.T, hits *atomic.Int64, lastQuery *atomic.Value) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if lastQuery != nil {
			lastQuery.Store(r.URL.RawQuery)
		}
		w.Write([]byte(owmBody))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCurrent_ParsesResponse(t *testing.T) {
	var hits atomic.Int64
	var query atomic.Value
	srv := newTestServer(t, &hits, &query)
	client := NewClient("key", srv.URL, nil, time.Minute)

	cond, err := client.Current(context.Background(), &geo.Point{Lat: 12.9165, Lng: 79.1325})
	require.NoError(t, err)

	assert.Equal(t, "Chennai", cond.Location)
	assert.Equal(t, "Rain", cond.Condition)
	assert.Equal(t, 27.4, cond.Temperature)
	assert.Equal(t, 91, cond.Humidity)
	assert.Equal(t, 21.5, cond.Rainfall)
	assert.Equal(t, "https://openweathermap.org/img/wn/10d@2x.png", cond.IconURL)
	assert.Contains(t, query.Load(), "lat=12.916500")
	assert.Contains(t, query.Load(), "units=metric")
}

func TestCurrent_NilPointUsesDefault(t *testing.T) {
	var hits atomic.Int64
	var query atomic.Value
	srv := newTestServer(t, &hits, &query)
	client := NewClient("key", srv.URL, nil, time.Minute)

	cond, err := client.Current(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultLocation, cond.Point)
	assert.Contains(t, query.Load(), "lat=13.082700")
}

func TestCurrent_NotConfigured(t *testing.T) {
	client := NewClient("", "http://unused", nil, time.Minute)

	_, err := client.Current(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCurrent_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient("bad", srv.URL, nil, time.Minute).Current(context.Background(), nil)
	assert.Error(t, err)
}

func TestCurrent_CachesInRedis(t *testing.T) {
	var hits atomic.Int64
	srv := newTestServer(t, &hits, nil)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	client := NewClient("key", srv.URL, rdb, 10*time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := client.Current(ctx, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), hits.Load())
	assert.True(t, mr.Exists(cacheKey(DefaultLocation)))

	mr.FastForward(11 * time.Minute)
	_, err := client.Current(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestCurrent_CacheFailureIsIgnored(t *testing.T) {
	var hits atomic.Int64
	srv := newTestServer(t, &hits, nil)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	cond, err := NewClient("key", srv.URL, rdb, time.Minute).Current(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Chennai", cond.Location)
}
