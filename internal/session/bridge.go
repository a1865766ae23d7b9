// Package session joins auth identities with their profile documents and
// publishes sign-in state changes.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/mr1hm/floodsense/internal/auth"
	"github.com/mr1hm/floodsense/internal/models"
	"github.com/mr1hm/floodsense/internal/repository"
	"github.com/mr1hm/floodsense/internal/stream"
)

type EventKind string

const (
	SignedIn  EventKind = "signed_in"
	SignedOut EventKind = "signed_out"
)

type Event struct {
	Kind EventKind    `json:"kind"`
	UID  string       `json:"uid"`
	User *models.User `json:"user,omitempty"`
	At   time.Time    `json:"at"`
}

type Bridge struct {
	provider auth.Provider
	profiles repository.ProfileRepository
	events   *stream.Broadcaster[Event]
}

func NewBridge(provider auth.Provider, profiles repository.ProfileRepository) *Bridge {
	return &Bridge{
		provider: provider,
		profiles: profiles,
		events:   stream.NewBroadcaster[Event](),
	}
}

func (b *Bridge) Provider() auth.Provider {
	return b.provider
}

// SignUp creates the account and seeds its profile document.
func (b *Bridge) SignUp(ctx context.Context, email, password, name string) (*auth.Session, *models.User, error) {
	sess, err := b.provider.SignUp(ctx, email, password, name)
	if err != nil {
		return nil, nil, err
	}

	err = b.profiles.MergeProfile(ctx, sess.Identity.UID, map[string]any{
		"fullName": name,
		"email":    sess.Identity.Email,
		"role":     models.DefaultRole,
	})
	if err != nil {
		slog.Warn("failed to create profile", "uid", sess.Identity.UID, "error", err)
	}

	user := b.UserFor(ctx, sess.Identity)
	b.events.Broadcast(Event{Kind: SignedIn, UID: user.ID, User: user, At: time.Now()})
	return sess, user, nil
}

func (b *Bridge) SignIn(ctx context.Context, email, password string) (*auth.Session, *models.User, error) {
	sess, err := b.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}

	user := b.UserFor(ctx, sess.Identity)
	b.events.Broadcast(Event{Kind: SignedIn, UID: user.ID, User: user, At: time.Now()})
	return sess, user, nil
}

func (b *Bridge) SignOut(ctx context.Context, uid string) error {
	if err := b.provider.SignOut(ctx, uid); err != nil {
		return err
	}
	b.events.Broadcast(Event{Kind: SignedOut, UID: uid, At: time.Now()})
	return nil
}

// Resolve verifies token and returns the merged user.
func (b *Bridge) Resolve(ctx context.Context, token string) (*models.User, *auth.Identity, error) {
	id, err := b.provider.Verify(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	return b.UserFor(ctx, *id), id, nil
}

// UserFor merges id with its profile. A profile that cannot be read is
// logged and the identity alone is used.
func (b *Bridge) UserFor(ctx context.Context, id auth.Identity) *models.User {
	profile, err := b.profiles.Profile(ctx, id.UID)
	if err != nil {
		slog.Warn("failed to load profile", "uid", id.UID, "error", err)
		profile = nil
	}
	user := Merge(id, profile)
	return &user
}

func Merge(id auth.Identity, p *models.Profile) models.User {
	u := models.User{
		ID:     id.UID,
		Name:   id.DisplayName,
		Email:  id.Email,
		Role:   models.DefaultRole,
		Avatar: id.PhotoURL,
	}
	if p != nil {
		if p.FullName != "" {
			u.Name = p.FullName
		}
		if p.Email != "" {
			u.Email = p.Email
		}
		if p.Role != "" {
			u.Role = p.Role
		}
		if p.PhotoBase64 != "" {
			u.Avatar = p.PhotoBase64
		}
		u.Phone = p.Phone
	}
	if u.Name == "" {
		u.Name = models.DefaultName
	}
	return u
}

func (b *Bridge) Subscribe() (uint64, <-chan Event) {
	return b.events.Subscribe()
}

func (b *Bridge) Unsubscribe(id uint64) {
	b.events.Unsubscribe(id)
}

func (b *Bridge) Close() {
	b.events.Close()
}
