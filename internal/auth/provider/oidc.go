package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"invite-service/internal/apperr"
	"invite-service/internal/oidc"
)

// ErrClientNotConfigured is returned when the client id or redirect URI is
// missing.
var ErrClientNotConfigured = apperr.Configuration("OIDC client is not configured.", nil)

// TokenExchangeError carries the provider's response body.
type TokenExchangeError struct {
	Status int
	Body   string
	Cause  error
}

func (e *TokenExchangeError) Error() string {
	if e.Body != "" {
		return "Token exchange failed: " + e.Body
	}
	return "Token exchange failed: " + e.Cause.Error()
}

func (e *TokenExchangeError) Unwrap() error {
	return e.Cause
}

type ClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scope        string
}

// OIDC implements OAuthProvider against a resolved set of OIDC endpoints.
type OIDC struct {
	resolver *oidc.Resolver
	client   ClientConfig
	http     *http.Client
}

var _ OAuthProvider = (*OIDC)(nil)

func NewOIDC(resolver *oidc.Resolver, client ClientConfig, httpClient *http.Client) *OIDC {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OIDC{resolver: resolver, client: client, http: httpClient}
}

func (p *OIDC) oauthConfig(ctx context.Context, requireRedirect bool) (*oauth2.Config, oidc.Config, error) {
	if p.client.ClientID == "" || (requireRedirect && p.client.RedirectURI == "") {
		return nil, oidc.Config{}, ErrClientNotConfigured
	}

	resolved, err := p.resolver.Resolve(ctx)
	if err != nil {
		return nil, oidc.Config{}, err
	}

	return &oauth2.Config{
		ClientID:     p.client.ClientID,
		ClientSecret: p.client.ClientSecret,
		RedirectURL:  p.client.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   resolved.AuthorizationEndpoint,
			TokenURL:  resolved.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: strings.Fields(p.client.Scope),
	}, resolved, nil
}

func (p *OIDC) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.http)
}

// AuthCodeURL builds the OAuth authorization URL with PKCE parameters.
func (p *OIDC) AuthCodeURL(ctx context.Context, state, codeVerifier string) (string, error) {
	cfg, _, err := p.oauthConfig(ctx, true)
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(codeVerifier)), nil
}

func (p *OIDC) ExchangeCode(ctx context.Context, code, codeVerifier string) (*Tokens, error) {
	cfg, _, err := p.oauthConfig(ctx, true)
	if err != nil {
		return nil, err
	}

	token, err := cfg.Exchange(p.withClient(ctx), code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, exchangeError(err)
	}
	return tokensFrom(token), nil
}

func (p *OIDC) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	cfg, _, err := p.oauthConfig(ctx, false)
	if err != nil {
		return nil, err
	}

	src := cfg.TokenSource(p.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, exchangeError(err)
	}
	return tokensFrom(token), nil
}

func (p *OIDC) UserInfo(ctx context.Context, accessToken string) (*Claims, error) {
	resolved, err := p.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if resolved.UserinfoEndpoint == "" {
		return nil, nil
	}

	ctx = gooidc.ClientContext(ctx, p.http)
	info, err := resolved.Provider(ctx).UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	if err != nil {
		return nil, apperr.Upstream("Failed to fetch user info.", err)
	}

	var claims Claims
	if err := info.Claims(&claims); err != nil {
		return nil, apperr.Upstream("Failed to decode user info.", err)
	}
	return &claims, nil
}

func tokensFrom(token *oauth2.Token) *Tokens {
	idToken, _ := token.Extra("id_token").(string)
	return &Tokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		IDToken:      idToken,
	}
}

// exchangeError classifies a token endpoint failure as upstream, keeping the
// provider's body in the client-facing message.
func exchangeError(err error) error {
	tee := &TokenExchangeError{Cause: fmt.Errorf("token endpoint: %w", err)}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		tee.Body = strings.TrimSpace(string(re.Body))
		if re.Response != nil {
			tee.Status = re.Response.StatusCode
		}
	}
	return apperr.Upstream(tee.Error(), tee)
}
