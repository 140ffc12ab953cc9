package provider

import (
	"context"
)

// Tokens are the opaque credentials returned by the token endpoint.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
}

// Claims is the subset of userinfo the identity chain reads.
type Claims struct {
	Subject           string `json:"sub"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	MatrixID          string `json:"matrix_id"`
	Email             string `json:"email"`
}

// OAuthProvider defines the contract the login flow needs from the identity
// provider. Implementations return tokens and claims only and must not
// touch sessions.
type OAuthProvider interface {
	// AuthCodeURL returns the authorization URL for a PKCE S256 login.
	AuthCodeURL(ctx context.Context, state, codeVerifier string) (string, error)

	// ExchangeCode redeems an authorization code.
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*Tokens, error)

	// Refresh redeems a refresh token.
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)

	// UserInfo returns nil claims when the provider has no userinfo endpoint.
	UserInfo(ctx context.Context, accessToken string) (*Claims, error)
}
