// Package weather fetches current conditions from OpenWeatherMap, caching
// responses in Redis when a client is configured.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mr1hm/floodsense/internal/geo"
)

// DefaultLocation is used when the caller has no position (Chennai).
var DefaultLocation = geo.Point{Lat: 13.0827, Lng: 80.2707}

var ErrNotConfigured = errors.New("weather API key not configured")

type Conditions struct {
	Location    string    `json:"location"`
	Point       geo.Point `json:"point"`
	Temperature float64   `json:"temperature"` // °C
	Condition   string    `json:"condition"`
	Description string    `json:"description"`
	Humidity    int       `json:"humidity"`
	WindSpeed   float64   `json:"windSpeed"` // m/s
	Rainfall    float64   `json:"rainfall"`  // mm over the last hour
	IconURL     string    `json:"iconUrl,omitempty"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

type owmResponse struct {
	Name    string `json:"name"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Rain struct {
		OneHour float64 `json:"1h"`
	} `json:"rain"`
}

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	redis   *redis.Client
	ttl     time.Duration
}

// NewClient builds a client. rdb may be nil to disable caching.
func NewClient(apiKey, baseURL string, rdb *redis.Client, ttl time.Duration) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		redis:   rdb,
		ttl:     ttl,
	}
}

func cacheKey(p geo.Point) string {
	return fmt.Sprintf("weather:%.4f:%.4f", p.Lat, p.Lng)
}

// Current returns conditions at p, or at DefaultLocation when p is nil.
func (c *Client) Current(ctx context.Context, p *geo.Point) (*Conditions, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	point := DefaultLocation
	if p != nil {
		point = *p
	}
	key := cacheKey(point)

	if cached := c.fromCache(ctx, key); cached != nil {
		return cached, nil
	}

	cond, err := c.fetch(ctx, point)
	if err != nil {
		return nil, err
	}

	c.toCache(ctx, key, cond)
	return cond, nil
}

func (c *Client) fetch(ctx context.Context, p geo.Point) (*Conditions, error) {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", p.Lat))
	q.Set("lon", fmt.Sprintf("%f", p.Lng))
	q.Set("units", "metric")
	q.Set("appid", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	var data owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}

	cond := &Conditions{
		Location:    data.Name,
		Point:       p,
		Temperature: data.Main.Temp,
		Humidity:    data.Main.Humidity,
		WindSpeed:   data.Wind.Speed,
		Rainfall:    data.Rain.OneHour,
		FetchedAt:   time.Now().UTC(),
	}
	if len(data.Weather) > 0 {
		w := data.Weather[0]
		cond.Condition = w.Main
		cond.Description = w.Description
		if w.Icon != "" {
			cond.IconURL = fmt.Sprintf("https://openweathermap.org/img/wn/%s@2x.png", strings.TrimSpace(w.Icon))
		}
	}
	return cond, nil
}

func (c *Client) fromCache(ctx context.Context, key string) *Conditions {
	if c.redis == nil {
		return nil
	}
	raw, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("weather cache read failed", "key", key, "error", err)
		}
		return nil
	}

	var cond Conditions
	if err := json.Unmarshal(raw, &cond); err != nil {
		slog.Warn("weather cache entry unreadable", "key", key, "error", err)
		return nil
	}
	return &cond
}

func (c *Client) toCache(ctx context.Context, key string, cond *Conditions) {
	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(cond)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		slog.Warn("weather cache write failed", "key", key, "error", err)
	}
}
