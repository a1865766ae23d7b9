// Package bootstrap opens the configured backends shared by the server and
// the admin CLI.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	firebase "firebase.google.com/go/v4"
	"github.com/redis/go-redis/v9"

	"github.com/mr1hm/floodsense/internal/auth"
	"github.com/mr1hm/floodsense/internal/config"
	"github.com/mr1hm/floodsense/internal/docstore"
	"github.com/mr1hm/floodsense/internal/notify"
)

type Backends struct {
	Store     docstore.Store
	Auth      auth.Provider
	Publisher notify.Publisher
	Redis     *redis.Client

	closers []func() error
}

// Open connects everything cfg asks for. Optional services (Redis, NATS)
// that cannot be reached are logged and left disabled.
func Open(ctx context.Context, cfg *config.Config) (*Backends, error) {
	b := &Backends{Publisher: notify.Nop{}}

	var app *firebase.App
	if cfg.Store.Backend == config.StoreFirestore || cfg.Auth.Provider == config.AuthFirebase {
		var err error
		app, err = config.NewFirebaseApp(ctx, cfg.Firebase)
		if err != nil {
			return nil, err
		}
	}

	store, err := openStore(ctx, cfg, app)
	if err != nil {
		return nil, err
	}
	b.Store = store
	b.closers = append(b.closers, store.Close)

	switch cfg.Auth.Provider {
	case config.AuthFirebase:
		fb, err := auth.NewFirebase(ctx, app, cfg.Firebase.WebAPIKey)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Auth = fb
	default:
		b.Auth = auth.NewLocal(store, cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	}

	if cfg.Redis.URL != "" {
		b.Redis = openRedis(ctx, cfg.Redis.URL)
		if b.Redis != nil {
			b.closers = append(b.closers, b.Redis.Close)
		}
	}

	if cfg.NATS.URL != "" {
		nc, err := notify.ConnectNATS(cfg.NATS.URL)
		if err != nil {
			slog.Warn("NATS unavailable, broadcasts will not be published", "error", err)
		} else {
			b.Publisher = nc
			b.closers = append(b.closers, nc.Close)
		}
	}

	return b, nil
}

func openStore(ctx context.Context, cfg *config.Config, app *firebase.App) (docstore.Store, error) {
	if cfg.Store.Backend == config.StoreFirestore {
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("error creating firestore client: %w", err)
		}
		slog.Info("using firestore store", "project", cfg.Firebase.ProjectID)
		return docstore.NewFirestore(client), nil
	}

	if dir := filepath.Dir(cfg.Store.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("error creating data directory: %w", err)
		}
	}
	store, err := docstore.NewSQLite(cfg.Store.SQLitePath)
	if err != nil {
		return nil, err
	}
	slog.Info("using sqlite store", "path", cfg.Store.SQLitePath)
	return store, nil
}

func openRedis(ctx context.Context, url string) *redis.Client {
	opts, err := redis.ParseURL(url)
	if err != nil {
		slog.Warn("invalid REDIS_URL, weather cache disabled", "error", err)
		return nil
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unreachable, weather cache disabled", "error", err)
		rdb.Close()
		return nil
	}
	return rdb
}

// Close releases backends in reverse order of opening.
func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			slog.Warn("error closing backend", "error", err)
		}
	}
	b.closers = nil
}
