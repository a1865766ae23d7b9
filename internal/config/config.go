package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreSQLite    = "sqlite"
	StoreFirestore = "firestore"

	AuthLocal    = "local"
	AuthFirebase = "firebase"
)

type Config struct {
	Server   ServerConfig
	GRPC     GRPCConfig
	Worker   WorkerConfig
	Store    StoreConfig
	Auth     AuthConfig
	Firebase FirebaseConfig
	Weather  WeatherConfig
	Geocode  GeocodeConfig
	Routing  RoutingConfig
	Monitor  MonitorConfig
	Redis    RedisConfig
	NATS     NATSConfig
	Overlays OverlayConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	RateLimit      int // requests per second per client
}

type GRPCConfig struct {
	Enabled bool
	Port    int
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type StoreConfig struct {
	Backend    string
	SQLitePath string
}

type AuthConfig struct {
	Provider   string
	JWTSecret  string
	SessionTTL time.Duration
}

type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	WebAPIKey       string
}

type WeatherConfig struct {
	APIKey   string
	BaseURL  string
	CacheTTL time.Duration
}

type GeocodeConfig struct {
	BaseURL   string
	UserAgent string
}

type RoutingConfig struct {
	OSRMURL string
	Timeout time.Duration
}

type MonitorConfig struct {
	Enabled      bool
	PollInterval time.Duration
}

type RedisConfig struct {
	URL string // empty disables caching
}

type NATSConfig struct {
	URL string // empty disables broadcast publishing
}

type OverlayConfig struct {
	Path string // empty uses the embedded data set
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "localhost"),
			Port:           getEnvInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),
			RateLimit:      getEnvInt("RATE_LIMIT_RPS", 10),
		},
		GRPC: GRPCConfig{
			Enabled: getEnvBool("GRPC_ENABLED", true),
			Port:    getEnvInt("GRPC_PORT", 50051),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 2),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 20),
		},
		Store: StoreConfig{
			Backend:    getEnv("STORE_BACKEND", StoreSQLite),
			SQLitePath: getEnv("DB_PATH", "./data/floodsense.db"),
		},
		Auth: AuthConfig{
			Provider:   getEnv("AUTH_PROVIDER", AuthLocal),
			JWTSecret:  getEnv("JWT_SECRET", ""),
			SessionTTL: getEnvDuration("SESSION_TTL", 24*time.Hour),
		},
		Firebase: FirebaseConfig{
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
			WebAPIKey:       getEnv("FIREBASE_WEB_API_KEY", ""),
		},
		Weather: WeatherConfig{
			APIKey:   getEnv("OPENWEATHER_API_KEY", ""),
			BaseURL:  getEnv("OPENWEATHER_URL", "https://api.openweathermap.org/data/2.5/weather"),
			CacheTTL: getEnvDuration("WEATHER_CACHE_TTL", 10*time.Minute),
		},
		Geocode: GeocodeConfig{
			BaseURL:   getEnv("GEOCODE_URL", "https://nominatim.openstreetmap.org/search"),
			UserAgent: getEnv("GEOCODE_USER_AGENT", "floodsense/1.0"),
		},
		Routing: RoutingConfig{
			OSRMURL: getEnv("OSRM_URL", "https://router.project-osrm.org"),
			Timeout: getEnvDuration("ROUTING_TIMEOUT", 15*time.Second),
		},
		Monitor: MonitorConfig{
			Enabled:      getEnvBool("MONITOR_ENABLED", true),
			PollInterval: getEnvDuration("MONITOR_POLL_INTERVAL", 15*time.Minute),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		Overlays: OverlayConfig{
			Path: getEnv("OVERLAYS_PATH", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.GRPC.Enabled && (c.GRPC.Port < 1 || c.GRPC.Port > 65535) {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}
	if c.Server.RateLimit < 1 {
		return fmt.Errorf("rate limit must be at least 1 request per second")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	switch c.Store.Backend {
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite store")
		}
	case StoreFirestore:
		if c.Firebase.ProjectID == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required for the firestore store")
		}
	default:
		return fmt.Errorf("invalid store backend: %s", c.Store.Backend)
	}

	switch c.Auth.Provider {
	case AuthLocal:
		if len(c.Auth.JWTSecret) < 16 {
			return fmt.Errorf("JWT_SECRET must be at least 16 characters for local auth")
		}
		if c.Auth.SessionTTL < time.Minute {
			return fmt.Errorf("session TTL must be at least 1 minute")
		}
	case AuthFirebase:
		if c.Firebase.ProjectID == "" || c.Firebase.WebAPIKey == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID and FIREBASE_WEB_API_KEY are required for firebase auth")
		}
	default:
		return fmt.Errorf("invalid auth provider: %s", c.Auth.Provider)
	}

	if c.Monitor.Enabled && c.Monitor.PollInterval < time.Minute {
		return fmt.Errorf("monitor poll interval must be at least 1 minute")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
