package docstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs only against the Firestore emulator (FIRESTORE_EMULATOR_HOST).
func setupFirestore(t *testing.T) *Firestore {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "floodsense-test")
	require.NoError(t, err)

	store := NewFirestore(client)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestFirestore_CRUD(t *testing.T) {
	store := setupFirestore(t)
	ctx := context.Background()

	id, err := store.Add(ctx, "alerts", map[string]any{"title": "Rising water", "read": false})
	require.NoError(t, err)
	t.Cleanup(func() { store.Delete(ctx, "alerts", id) })

	require.NoError(t, store.Update(ctx, "alerts", id, map[string]any{"read": true}))

	doc, err := store.Get(ctx, "alerts", id)
	require.NoError(t, err)
	assert.Equal(t, true, doc.Data["read"])
	assert.Equal(t, "Rising water", doc.Data["title"])

	err = store.Update(ctx, "alerts", "does-not-exist", map[string]any{"read": true})
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestFirestore_WatchAndDeleteBatch(t *testing.T) {
	store := setupFirestore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snaps, err := store.Watch(ctx, Query{Collection: "watch_test", OrderBy: "name"})
	require.NoError(t, err)
	<-snaps

	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, store.Set(ctx, "watch_test", name, map[string]any{"name": name}, false))
		ids = append(ids, name)
	}
	require.NoError(t, store.DeleteBatch(ctx, "watch_test", ids))

	for snap := range snaps {
		require.NoError(t, snap.Err)
		if len(snap.Docs) == 0 {
			break
		}
	}
	cancel()
}
