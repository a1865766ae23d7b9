// Package settings loads and saves the per-user settings page: profile,
// appearance preferences and security toggles.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mr1hm/floodsense/internal/auth"
	"github.com/mr1hm/floodsense/internal/models"
	"github.com/mr1hm/floodsense/internal/repository"
)

var ErrInvalidTheme = errors.New("theme must be light, dark or system")

type ProfileUpdate struct {
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	PhotoBase64 string `json:"photoBase64,omitempty"`
}

type Service struct {
	provider auth.Provider
	profiles repository.ProfileRepository
}

func NewService(provider auth.Provider, profiles repository.ProfileRepository) *Service {
	return &Service{provider: provider, profiles: profiles}
}

// Load returns the stored settings for id, falling back to the identity's
// name and email when the profile has none.
func (s *Service) Load(ctx context.Context, id auth.Identity) (models.Profile, error) {
	p, err := s.profiles.Profile(ctx, id.UID)
	if err != nil {
		return models.Profile{}, fmt.Errorf("loading profile: %w", err)
	}
	if p == nil {
		p = &models.Profile{}
	}

	out := *p
	if out.FullName == "" {
		out.FullName = id.DisplayName
	}
	if out.Email == "" {
		out.Email = id.Email
	}
	if !out.Theme.Valid() {
		out.Theme = models.ThemeSystem
	}
	return out, nil
}

// SaveProfile pushes the name, and the email when it changed, to the auth
// provider before writing the profile document.
func (s *Service) SaveProfile(ctx context.Context, id auth.Identity, u ProfileUpdate) error {
	u.FullName = strings.TrimSpace(u.FullName)
	u.Email = strings.TrimSpace(u.Email)
	u.Phone = strings.TrimSpace(u.Phone)
	if u.PhotoBase64 != "" {
		if err := CheckAvatarURL(u.PhotoBase64); err != nil {
			return err
		}
	}

	email := ""
	if u.Email != "" && !strings.EqualFold(u.Email, id.Email) {
		if err := auth.ValidateEmail(u.Email); err != nil {
			return err
		}
		email = u.Email
	}

	if err := s.provider.UpdateIdentity(ctx, id.UID, u.FullName, email); err != nil {
		return fmt.Errorf("updating identity: %w", err)
	}

	fields := map[string]any{
		"fullName": u.FullName,
		"email":    u.Email,
		"phone":    u.Phone,
	}
	if u.PhotoBase64 != "" {
		fields["photoBase64"] = u.PhotoBase64
	}
	return s.profiles.MergeProfile(ctx, id.UID, fields)
}

func (s *Service) SavePreferences(ctx context.Context, uid string, theme models.Theme) error {
	if !theme.Valid() {
		return ErrInvalidTheme
	}
	return s.profiles.MergeProfile(ctx, uid, map[string]any{"theme": string(theme)})
}

func (s *Service) SaveSecurity(ctx context.Context, uid string, twoFactorEnabled bool) error {
	return s.profiles.MergeProfile(ctx, uid, map[string]any{"twoFactorEnabled": twoFactorEnabled})
}

// SaveAvatar stores an already encoded avatar data URL.
func (s *Service) SaveAvatar(ctx context.Context, uid, dataURL string) error {
	if err := CheckAvatarURL(dataURL); err != nil {
		return err
	}
	return s.profiles.MergeProfile(ctx, uid, map[string]any{"photoBase64": dataURL})
}
