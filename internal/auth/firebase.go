package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
)

const identityToolkitURL = "https://identitytoolkit.googleapis.com/v1/accounts:signInWithPassword"

// Firebase verifies ID tokens and manages users with the Admin SDK. Password
// sign-in goes through the Identity Toolkit REST API, which the Admin SDK
// does not expose.
type Firebase struct {
	client    *fbauth.Client
	apiKey    string
	signInURL string
	http      *http.Client
}

var _ Provider = (*Firebase)(nil)

func NewFirebase(ctx context.Context, app *firebase.App, apiKey string) (*Firebase, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase auth: %w", err)
	}
	return &Firebase{
		client:    client,
		apiKey:    apiKey,
		signInURL: identityToolkitURL,
		http:      &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (f *Firebase) SignUp(ctx context.Context, email, password, displayName string) (*Session, error) {
	if err := ValidateCredentials(email, password); err != nil {
		return nil, err
	}

	params := (&fbauth.UserToCreate{}).Email(normalizeEmail(email)).Password(password)
	if displayName != "" {
		params = params.DisplayName(displayName)
	}
	if _, err := f.client.CreateUser(ctx, params); err != nil {
		if fbauth.IsEmailAlreadyExists(err) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return f.SignIn(ctx, email, password)
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	IDToken     string `json:"idToken"`
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	ExpiresIn   string `json:"expiresIn"`
	Error       *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (f *Firebase) SignIn(ctx context.Context, email, password string) (*Session, error) {
	body, err := json.Marshal(signInRequest{Email: normalizeEmail(email), Password: password, ReturnSecureToken: true})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.signInURL+"?key="+f.apiKey, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	var data signInResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}

	if data.Error != nil {
		switch data.Error.Message {
		case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED":
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("sign-in failed: %s", data.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	seconds, _ := strconv.Atoi(data.ExpiresIn)
	return &Session{
		Token:     data.IDToken,
		ExpiresAt: time.Now().Add(time.Duration(seconds) * time.Second),
		Identity: Identity{
			UID:         data.LocalID,
			Email:       data.Email,
			DisplayName: data.DisplayName,
		},
	}, nil
}

func (f *Firebase) SignOut(ctx context.Context, uid string) error {
	if err := f.client.RevokeRefreshTokens(ctx, uid); err != nil {
		if fbauth.IsUserNotFound(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("revoking tokens: %w", err)
	}
	return nil
}

func (f *Firebase) Verify(ctx context.Context, token string) (*Identity, error) {
	tok, err := f.client.VerifyIDTokenAndCheckRevoked(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claim := func(k string) string {
		s, _ := tok.Claims[k].(string)
		return s
	}
	return &Identity{
		UID:         tok.UID,
		Email:       claim("email"),
		DisplayName: claim("name"),
		PhotoURL:    claim("picture"),
	}, nil
}

func (f *Firebase) UpdateIdentity(ctx context.Context, uid, displayName, email string) error {
	if displayName == "" && email == "" {
		return nil
	}
	params := &fbauth.UserToUpdate{}
	if displayName != "" {
		params = params.DisplayName(displayName)
	}
	if email != "" {
		if err := ValidateEmail(email); err != nil {
			return err
		}
		params = params.Email(normalizeEmail(email))
	}

	if _, err := f.client.UpdateUser(ctx, uid, params); err != nil {
		switch {
		case fbauth.IsUserNotFound(err):
			return ErrUserNotFound
		case fbauth.IsEmailAlreadyExists(err):
			return ErrEmailInUse
		}
		return fmt.Errorf("updating user: %w", err)
	}
	return nil
}
