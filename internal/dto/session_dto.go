package dto

import (
	"time"

	"catalog-lens/internal/entity"
)

type SignInRequest struct {
	Token string       `json:"token" validate:"required"`
	User  *entity.User `json:"user" validate:"required"`
}

func (r *SignInRequest) ToSession() entity.Session {
	return entity.Session{Token: r.Token, User: r.User}
}

type AuthStatusResponse struct {
	LoggedIn bool   `json:"loggedIn"`
	Role     string `json:"role,omitempty"`
	// Verified is only set when the backend was asked.
	Verified *bool `json:"verified,omitempty"`
}

type TokenClaimsResponse struct {
	Subject   string     `json:"subject,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Expired   bool       `json:"expired"`
	// ParseError is set when the token is not a readable JWT.
	ParseError string `json:"parseError,omitempty"`
}

type StoreStateResponse struct {
	Store     string       `json:"store"`
	HasToken  bool         `json:"hasToken"`
	User      *entity.User `json:"user,omitempty"`
	UserError string       `json:"userError,omitempty"`
}

type DebugAuthResponse struct {
	LoggedIn bool                 `json:"loggedIn"`
	Role     string               `json:"role,omitempty"`
	Token    *TokenClaimsResponse `json:"token,omitempty"`
	Stores   []StoreStateResponse `json:"stores"`
	Logs     interface{}          `json:"logs,omitempty"`
}
