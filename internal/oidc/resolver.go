// Package oidc resolves and memoizes the provider endpoints used by the
// login flow, either from static configuration or from discovery.
package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	gooidc "github.com/coreos/go-oidc/v3/oidc"

	"invite-service/internal/apperr"
)

const wellKnownPath = "/.well-known/openid-configuration"

// Config is the resolved endpoint set. It never changes once resolved.
type Config struct {
	Issuer                string
	AuthorizationEndpoint string
	TokenEndpoint         string
	UserinfoEndpoint      string
	JWKSURL               string
}

// Provider returns a go-oidc provider over the resolved endpoints. The
// http client travelling in ctx (gooidc.ClientContext) is used for calls.
func (c Config) Provider(ctx context.Context) *gooidc.Provider {
	pc := &gooidc.ProviderConfig{
		IssuerURL:   c.Issuer,
		AuthURL:     c.AuthorizationEndpoint,
		TokenURL:    c.TokenEndpoint,
		UserInfoURL: c.UserinfoEndpoint,
		JWKSURL:     c.JWKSURL,
	}
	return pc.NewProvider(ctx)
}

// Static holds endpoints supplied through configuration.
type Static struct {
	Issuer                string
	AuthorizationEndpoint string
	TokenEndpoint         string
	UserinfoEndpoint      string
}

// Resolver is safe for concurrent use. Only a successful resolution is
// cached; failures are retried on the next call. The lock is never held
// across a discovery fetch, so a hung issuer only stalls its own caller.
type Resolver struct {
	static Static
	client *http.Client

	mu       sync.Mutex
	resolved *Config
}

func NewResolver(static Static, client *http.Client) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &Resolver{static: static, client: client}
}

func (r *Resolver) Resolve(ctx context.Context) (Config, error) {
	if cfg, ok := r.cached(); ok {
		return cfg, nil
	}

	cfg, err := r.resolve(ctx)
	if err != nil {
		return Config{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// first success wins
	if r.resolved == nil {
		r.resolved = &cfg
	}
	return *r.resolved, nil
}

func (r *Resolver) cached() (Config, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved == nil {
		return Config{}, false
	}
	return *r.resolved, true
}

func (r *Resolver) resolve(ctx context.Context) (Config, error) {
	s := r.static
	if s.AuthorizationEndpoint != "" && s.TokenEndpoint != "" {
		return Config{
			Issuer:                s.Issuer,
			AuthorizationEndpoint: s.AuthorizationEndpoint,
			TokenEndpoint:         s.TokenEndpoint,
			UserinfoEndpoint:      s.UserinfoEndpoint,
		}, nil
	}

	if s.Issuer == "" {
		return Config{}, apperr.Configuration("MATRIX_OIDC_ISSUER is required to discover OIDC config.", nil)
	}

	doc, err := r.fetchDiscovery(ctx, DiscoveryURL(s.Issuer))
	if err != nil {
		return Config{}, err
	}
	if doc.AuthURL == "" || doc.TokenURL == "" {
		return Config{}, apperr.Configuration("OIDC discovery document is missing required endpoints.", nil)
	}

	issuer := doc.IssuerURL
	if issuer == "" {
		issuer = strings.TrimSuffix(s.Issuer, wellKnownPath)
	}
	return Config{
		Issuer:                issuer,
		AuthorizationEndpoint: doc.AuthURL,
		TokenEndpoint:         doc.TokenURL,
		UserinfoEndpoint:      doc.UserInfoURL,
		JWKSURL:               doc.JWKSURL,
	}, nil
}

func (r *Resolver) fetchDiscovery(ctx context.Context, url string) (*gooidc.ProviderConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Configuration("Invalid OIDC issuer URL.", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, apperr.Configuration("Failed to fetch OIDC discovery document.", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apperr.Configuration(
			"Failed to fetch OIDC discovery document.",
			fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body))),
		)
	}

	var doc gooidc.ProviderConfig
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, apperr.Configuration("Failed to decode OIDC discovery document.", err)
	}
	return &doc, nil
}

// DiscoveryURL accepts either an issuer or a full discovery URL.
func DiscoveryURL(issuer string) string {
	if strings.HasSuffix(issuer, wellKnownPath) {
		return issuer
	}
	return strings.TrimRight(issuer, "/") + wellKnownPath
}
