package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mr1hm/floodsense/internal/auth"
	"github.com/mr1hm/floodsense/internal/docstore"
	"github.com/mr1hm/floodsense/internal/models"
	"github.com/mr1hm/floodsense/internal/repository"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func setupBridge(t *testing.T) (*Bridge, *repository.Repository) {
	db, err := docstore.NewSQLite(":memory:")
	require.NoError(t, err)

	repo := repository.New(db)
	b := NewBridge(auth.NewLocal(db, "bridge-test-secret-123", time.Hour), repo)
	t.Cleanup(func() {
		b.Close()
		db.Close()
	})
	return b, repo
}

func TestMerge(t *testing.T) {
	id := auth.Identity{UID: "u1", Email: "asha@example.com", DisplayName: "Asha", PhotoURL: "https://img/1.png"}

	u := Merge(id, nil)
	assert.Equal(t, models.User{ID: "u1", Name: "Asha", Email: "asha@example.com", Role: "User", Avatar: "https://img/1.png"}, u)

	u = Merge(id, &models.Profile{FullName: "Asha Raman", Role: "Coordinator", PhotoBase64: "data:image/jpeg;base64,AA==", Phone: "123"})
	assert.Equal(t, "Asha Raman", u.Name)
	assert.Equal(t, "Coordinator", u.Role)
	assert.Equal(t, "data:image/jpeg;base64,AA==", u.Avatar)
	assert.Equal(t, "123", u.Phone)

	u = Merge(auth.Identity{UID: "u2"}, nil)
	assert.Equal(t, models.DefaultName, u.Name)
	assert.Equal(t, models.DefaultRole, u.Role)
}

func TestBridge_SignUpCreatesProfile(t *testing.T) {
	b, repo := setupBridge(t)
	ctx := context.Background()
	_, events := b.Subscribe()

	sess, user, err := b.SignUp(ctx, "asha@example.com", "monsoon", "Asha")
	require.NoError(t, err)
	assert.Equal(t, "Asha", user.Name)
	assert.Equal(t, "User", user.Role)

	p, err := repo.Profile(ctx, sess.Identity.UID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Asha", p.FullName)

	select {
	case e := <-events:
		assert.Equal(t, SignedIn, e.Kind)
		assert.Equal(t, sess.Identity.UID, e.UID)
	case <-time.After(time.Second):
		t.Fatal("no auth event")
	}
}

func TestBridge_ResolveAndSignOut(t *testing.T) {
	b, repo := setupBridge(t)
	ctx := context.Background()

	sess, _, err := b.SignUp(ctx, "asha@example.com", "monsoon", "Asha")
	require.NoError(t, err)
	repo.MergeProfile(ctx, sess.Identity.UID, map[string]any{"fullName": "Asha Raman"})

	user, id, err := b.Resolve(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "Asha Raman", user.Name)
	assert.Equal(t, sess.Identity.UID, id.UID)

	_, events := b.Subscribe()
	require.NoError(t, b.SignOut(ctx, sess.Identity.UID))

	_, _, err = b.Resolve(ctx, sess.Token)
	assert.True(t, errors.Is(err, auth.ErrInvalidToken))

	e := <-events
	assert.Equal(t, SignedOut, e.Kind)
}

func TestBridge_SignInFailure(t *testing.T) {
	b, _ := setupBridge(t)

	_, _, err := b.SignIn(context.Background(), "nobody@example.com", "monsoon")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}
