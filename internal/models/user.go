package models

import "time"

const (
	DefaultRole = "User"
	// DefaultName is shown for users with neither a profile name nor a
	// provider display name.
	DefaultName = "User"
)

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark || t == ThemeSystem
}

// User is the merged view of an auth identity and its profile document.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Avatar string `json:"avatar,omitempty"`
	Phone  string `json:"phone,omitempty"`
}

// Profile is the users/{uid} document.
type Profile struct {
	FullName         string    `json:"fullName"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	Role             string    `json:"role,omitempty"`
	PhotoBase64      string    `json:"photoBase64,omitempty"`
	Theme            Theme     `json:"theme"`
	TwoFactorEnabled bool      `json:"twoFactorEnabled"`
	UpdatedAt        time.Time `json:"updatedAt,omitempty"`
}

// FloodLevels is the system/floodLevels singleton.
type FloodLevels struct {
	Current    float64   `json:"current"`
	Predicted  float64   `json:"predicted"`
	TimeToPeak string    `json:"timeToPeak"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty"`
}
