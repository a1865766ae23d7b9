package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/floodsense/internal/auth"
	"github.com/mr1hm/floodsense/internal/config"
	"github.com/mr1hm/floodsense/internal/docstore"
	"github.com/mr1hm/floodsense/internal/notify"
)

func localConfig(t *testing.T) *config.Config {
	return &config.Config{
		Store: config.StoreConfig{Backend: config.StoreSQLite, SQLitePath: filepath.Join(t.TempDir(), "data", "test.db")},
		Auth:  config.AuthConfig{Provider: config.AuthLocal, JWTSecret: "bootstrap-secret-1234", SessionTTL: time.Hour},
	}
}

func TestOpen_LocalDefaults(t *testing.T) {
	b, err := Open(context.Background(), localConfig(t))
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &docstore.SQLite{}, b.Store)
	assert.IsType(t, &auth.Local{}, b.Auth)
	assert.IsType(t, notify.Nop{}, b.Publisher)
	assert.Nil(t, b.Redis)
}

func TestOpen_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := localConfig(t)
	cfg.Redis.URL = "redis://" + mr.Addr()
	b, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer b.Close()

	require.NotNil(t, b.Redis)
	assert.NoError(t, b.Redis.Ping(context.Background()).Err())
}

func TestOpen_UnreachableOptionalServices(t *testing.T) {
	cfg := localConfig(t)
	cfg.Redis.URL = "redis://127.0.0.1:1"
	cfg.NATS.URL = "nats://127.0.0.1:1"

	b, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer b.Close()

	assert.Nil(t, b.Redis)
	assert.IsType(t, notify.Nop{}, b.Publisher)
}
