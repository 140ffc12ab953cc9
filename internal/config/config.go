package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Flag is a boolean that also accepts "yes", matching how deployments of
// this service have always spelled their toggles.
type Flag bool

func (f *Flag) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "true", "1", "yes":
		*f = true
	default:
		*f = false
	}
	return nil
}

const (
	StoreRedis    = "redis"
	StoreRESP     = "resp"
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	IdentityUserInfo = "userinfo"
	IdentityMatrix   = "matrix"

	InviteLocal             = "local"
	InviteRegistrationToken = "registration_token"

	InviteAuthSession = "session"
	InviteAuthSigned  = "signed"
)

type Config struct {
	AppPort           string        `env:"APP_PORT" envDefault:"3000"`
	AppEnv            string        `env:"APP_ENV" envDefault:"development"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPClientTimeout time.Duration `env:"HTTP_CLIENT_TIMEOUT" envDefault:"0s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Store Store
	OIDC  OIDC

	IdentityMode    string `env:"IDENTITY_MODE" envDefault:"userinfo"`
	MatrixJWTSecret string `env:"MATRIX_JWT_SECRET"`
	MatrixJWTIssuer string `env:"MATRIX_JWT_ISSUER"`
	MatrixJWTAud    string `env:"MATRIX_JWT_AUDIENCE"`

	CookieSecret string `env:"SESSION_COOKIE_SECRET"`
	CookieName   string `env:"SESSION_COOKIE_NAME" envDefault:"ff_session"`

	Matrix Matrix
	Invite Invite
}

type Store struct {
	Backend     string `env:"STORE_BACKEND" envDefault:"redis"`
	RedisURL    string `env:"REDIS_URL"`
	RedisHost   string `env:"REDIS_HOST"`
	RedisPort   int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisUser   string `env:"REDIS_USER"`
	RedisPass   string `env:"REDIS_PASS"`
	RedisTLS    Flag   `env:"REDIS_TLS"`
	TLSInsecure Flag   `env:"REDIS_TLS_INSECURE"`
	DatabaseDSN string `env:"DATABASE_DSN"`
}

// RedisConfigured reports whether any Redis connection settings are present.
func (s Store) RedisConfigured() bool {
	return s.RedisURL != "" || s.RedisHost != ""
}

type OIDC struct {
	Issuer                string `env:"MATRIX_OIDC_ISSUER"`
	AuthorizationEndpoint string `env:"MATRIX_OIDC_AUTHORIZATION_ENDPOINT"`
	TokenEndpoint         string `env:"MATRIX_OIDC_TOKEN_ENDPOINT"`
	UserinfoEndpoint      string `env:"MATRIX_OIDC_USERINFO_ENDPOINT"`
	ClientID              string `env:"MATRIX_OIDC_CLIENT_ID"`
	ClientSecret          string `env:"MATRIX_OIDC_CLIENT_SECRET"`
	RedirectURI           string `env:"MATRIX_OIDC_REDIRECT_URI"`
	Scope                 string `env:"MATRIX_OIDC_SCOPE" envDefault:"openid profile email"`
	FrontendRedirectURI   string `env:"FRONTEND_REDIRECT_URI" envDefault:"/"`
}

// Configured reports whether enough is set to attempt a login.
func (o OIDC) Configured() bool {
	hasEndpoints := o.Issuer != "" || (o.AuthorizationEndpoint != "" && o.TokenEndpoint != "")
	return hasEndpoints && o.ClientID != ""
}

type Matrix struct {
	HomeserverURL string `env:"MATRIX_HOMESERVER_URL"`
	AdminAPIBase  string `env:"MATRIX_ADMIN_API_BASE"`
	AccessToken   string `env:"MATRIX_ACCESS_TOKEN"`
	UserID        string `env:"MATRIX_USER_ID"`
}

func (m Matrix) Configured() bool {
	return m.HomeserverURL != "" && m.UserID != ""
}

type Invite struct {
	Strategy      string        `env:"INVITE_STRATEGY" envDefault:"local"`
	Authorization string        `env:"INVITE_AUTHORIZATION" envDefault:"session"`
	RequireLogin  Flag          `env:"INVITE_REQUIRE_LOGIN"`
	AuthSecret    string        `env:"MATRIX_AUTH_SECRET"`
	TTL           time.Duration `env:"INVITE_TTL" envDefault:"168h"`
	SignedWindow  time.Duration `env:"INVITE_SIGNED_WINDOW" envDefault:"15m"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Production() bool {
	return c.AppEnv == "production"
}

// Validate rejects settings the service cannot start with. OIDC client
// settings are deliberately absent: those fail per request.
func (c Config) Validate() error {
	var errs []error

	if c.CookieSecret == "" {
		errs = append(errs, errors.New("SESSION_COOKIE_SECRET is required to sign cookies"))
	}

	switch c.Store.Backend {
	case StoreRedis, StoreRESP:
		if !c.Store.RedisConfigured() {
			errs = append(errs, fmt.Errorf("REDIS_URL or REDIS_HOST is required for store backend %q", c.Store.Backend))
		}
	case StorePostgres:
		if c.Store.DatabaseDSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required for store backend \"postgres\""))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend))
	}

	switch c.IdentityMode {
	case IdentityUserInfo:
	case IdentityMatrix:
		if c.Matrix.HomeserverURL == "" {
			errs = append(errs, errors.New("MATRIX_HOMESERVER_URL is required when IDENTITY_MODE=matrix"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown IDENTITY_MODE %q", c.IdentityMode))
	}

	switch c.Invite.Strategy {
	case InviteLocal, InviteRegistrationToken:
	default:
		errs = append(errs, fmt.Errorf("unknown INVITE_STRATEGY %q", c.Invite.Strategy))
	}

	switch c.Invite.Authorization {
	case InviteAuthSession:
	case InviteAuthSigned:
		if c.Invite.AuthSecret == "" {
			errs = append(errs, errors.New("MATRIX_AUTH_SECRET is required when INVITE_AUTHORIZATION=signed"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown INVITE_AUTHORIZATION %q", c.Invite.Authorization))
	}

	if c.Invite.TTL <= 0 {
		errs = append(errs, errors.New("INVITE_TTL must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// LoadStore reads only the store settings, for tools that never serve HTTP.
func LoadStore() (Store, error) {
	var s Store
	if err := env.Parse(&s); err != nil {
		return Store{}, fmt.Errorf("config: parse env: %w", err)
	}
	return s, nil
}
