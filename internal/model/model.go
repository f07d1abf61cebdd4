package model

import (
	"fmt"
	"time"
)

// Role labels which side of a transfer a stored credential represents.
type Role string

const (
	RoleGeneral     Role = "general"
	RoleSource      Role = "source"
	RoleDestination Role = "destination"
)

// Roles lists every role label the session index knows about.
var Roles = []Role{RoleGeneral, RoleSource, RoleDestination}

// ParseRole maps a request parameter to a Role. An empty string is the general role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case "":
		return RoleGeneral, nil
	case RoleGeneral, RoleSource, RoleDestination:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown session role %q", s)
}

// CredentialBundle holds everything needed to act as an authenticated Google identity.
type CredentialBundle struct {
	AccessToken  string     `json:"token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	IDToken      string     `json:"id_token,omitempty"`
	TokenURI     string     `json:"token_uri"`
	ClientID     string     `json:"client_id"`
	ClientSecret string     `json:"client_secret"`
	Scopes       []string   `json:"scopes"`
	Expiry       *time.Time `json:"expiry,omitempty"`
	Role         Role       `json:"session_type"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Valid reports whether the bundle can be handed to callers.
func (b *CredentialBundle) Valid() bool {
	return b != nil && b.AccessToken != ""
}

// Identity is the verified account behind a login.
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
}
