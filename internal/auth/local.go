package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mr1hm/floodsense/internal/docstore"
)

const credentialsCollection = "credentials"

type claims struct {
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Version int    `json:"ver"`
	jwt.RegisteredClaims
}

// Local keeps bcrypt password hashes in the credentials collection and
// issues HS256 tokens. Signing out bumps the user's token version, which
// invalidates every token issued before.
type Local struct {
	store  docstore.Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

var _ Provider = (*Local)(nil)

func NewLocal(store docstore.Store, secret string, ttl time.Duration) *Local {
	return &Local{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

type credential struct {
	uid          string
	email        string
	passwordHash string
	displayName  string
	photoURL     string
	version      int
}

func (l *Local) SignUp(ctx context.Context, email, password, displayName string) (*Session, error) {
	if err := ValidateCredentials(email, password); err != nil {
		return nil, err
	}
	email = normalizeEmail(email)

	if _, err := l.findByEmail(ctx, email); err == nil {
		return nil, ErrEmailInUse
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	cred := credential{
		uid:          uuid.NewString(),
		email:        email,
		passwordHash: string(hash),
		displayName:  displayName,
	}
	err = l.store.Set(ctx, credentialsCollection, cred.uid, map[string]any{
		"email":        cred.email,
		"passwordHash": cred.passwordHash,
		"displayName":  cred.displayName,
		"tokenVersion": 0,
		"createdAt":    l.now().UTC(),
	}, false)
	if err != nil {
		return nil, fmt.Errorf("saving credentials: %w", err)
	}

	return l.issue(cred)
}

func (l *Local) SignIn(ctx context.Context, email, password string) (*Session, error) {
	cred, err := l.findByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.passwordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return l.issue(*cred)
}

func (l *Local) SignOut(ctx context.Context, uid string) error {
	cred, err := l.load(ctx, uid)
	if err != nil {
		return err
	}
	return l.store.Update(ctx, credentialsCollection, uid, map[string]any{
		"tokenVersion": cred.version + 1,
	})
}

func (l *Local) Verify(ctx context.Context, token string) (*Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return l.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(l.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	cred, err := l.load(ctx, c.Subject)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if c.Version != cred.version {
		return nil, fmt.Errorf("%w: revoked", ErrInvalidToken)
	}

	return &Identity{
		UID:         cred.uid,
		Email:       cred.email,
		DisplayName: cred.displayName,
		PhotoURL:    cred.photoURL,
	}, nil
}

func (l *Local) UpdateIdentity(ctx context.Context, uid, displayName, email string) error {
	if _, err := l.load(ctx, uid); err != nil {
		return err
	}

	fields := map[string]any{}
	if displayName != "" {
		fields["displayName"] = displayName
	}
	if email != "" {
		if err := ValidateEmail(email); err != nil {
			return err
		}
		email = normalizeEmail(email)
		other, err := l.findByEmail(ctx, email)
		if err == nil && other.uid != uid {
			return ErrEmailInUse
		}
		if err != nil && !errors.Is(err, ErrUserNotFound) {
			return err
		}
		fields["email"] = email
	}
	if len(fields) == 0 {
		return nil
	}

	return l.store.Update(ctx, credentialsCollection, uid, fields)
}

func (l *Local) issue(cred credential) (*Session, error) {
	now := l.now()
	expires := now.Add(l.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email:   cred.email,
		Name:    cred.displayName,
		Version: cred.version,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cred.uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(l.secret)
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}

	return &Session{
		Token:     signed,
		ExpiresAt: expires,
		Identity: Identity{
			UID:         cred.uid,
			Email:       cred.email,
			DisplayName: cred.displayName,
			PhotoURL:    cred.photoURL,
		},
	}, nil
}

func (l *Local) findByEmail(ctx context.Context, email string) (*credential, error) {
	docs, err := l.store.List(ctx, docstore.Query{
		Collection: credentialsCollection,
		Where:      []docstore.Filter{{Field: "email", Value: email}},
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrUserNotFound
	}
	return toCredential(docs[0]), nil
}

func (l *Local) load(ctx context.Context, uid string) (*credential, error) {
	doc, err := l.store.Get(ctx, credentialsCollection, uid)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return toCredential(doc), nil
}

func toCredential(doc docstore.Document) *credential {
	str := func(k string) string {
		s, _ := doc.Data[k].(string)
		return s
	}
	version := 0
	switch v := doc.Data["tokenVersion"].(type) {
	case float64:
		version = int(v)
	case int64:
		version = int(v)
	case int:
		version = v
	}
	return &credential{
		uid:          doc.ID,
		email:        str("email"),
		passwordHash: str("passwordHash"),
		displayName:  str("displayName"),
		photoURL:     str("photoURL"),
		version:      version,
	}
}
