package app

import (
	"context"
	"net/http"
	"strings"

	"invite-service/internal/auth"
	authhandler "invite-service/internal/auth/handler"
	"invite-service/internal/auth/provider"
	"invite-service/internal/auth/resolver"
	"invite-service/internal/config"
	"invite-service/internal/health"
	"invite-service/internal/invite"
	invitehandler "invite-service/internal/invite/handler"
	"invite-service/internal/logger"
	"invite-service/internal/matrix"
	"invite-service/internal/metrics"
	"invite-service/internal/middleware"
	"invite-service/internal/oidc"
	"invite-service/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {
	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	router, err := newRouter(cfg, infra)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}
	return router, infra.Close, nil
}

func newRouter(cfg config.Config, infra *Infra) (*gin.Engine, error) {
	// ----------------------------
	// Dependencies
	// ----------------------------

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	rec := metrics.NewPrometheusMetricsRecorder(reg)

	oidcResolver := oidc.NewResolver(oidc.Static{
		Issuer:                cfg.OIDC.Issuer,
		AuthorizationEndpoint: cfg.OIDC.AuthorizationEndpoint,
		TokenEndpoint:         cfg.OIDC.TokenEndpoint,
		UserinfoEndpoint:      cfg.OIDC.UserinfoEndpoint,
	}, infra.HTTPClient)

	oauthProvider := provider.NewOIDC(oidcResolver, provider.ClientConfig{
		ClientID:     cfg.OIDC.ClientID,
		ClientSecret: cfg.OIDC.ClientSecret,
		RedirectURI:  cfg.OIDC.RedirectURI,
		Scope:        cfg.OIDC.Scope,
	}, infra.HTTPClient)

	sessions := session.NewRepository(infra.Store)
	cookies := session.NewCookies(cfg.CookieSecret, session.CookieOptions{
		Name:   cfg.CookieName,
		Secure: cfg.Production(),
	})

	authService := auth.NewService(
		oauthProvider,
		sessions,
		identityChain(cfg, oauthProvider, infra.HTTPClient, rec),
		rec,
	)

	invites := invite.NewManager(infra.Store, inviteGenerator(cfg, infra.HTTPClient), cfg.Invite.TTL, rec)

	authz, inviteMiddleware, err := inviteAuthorization(cfg, cookies, sessions)
	if err != nil {
		return nil, err
	}

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	authhandler.NewHandler(authService, cookies, cfg.OIDC.FrontendRedirectURI).RegisterRoutes(router)
	invitehandler.NewHandler(invites, authz).RegisterRoutes(router, inviteMiddleware...)
	health.NewHandler(cfg, infra.Ping).RegisterRoutes(router)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") || c.Request.URL.Path == "/api" {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		c.Status(http.StatusNotFound)
	})

	for _, route := range router.Routes() {
		logger.Debug("route registered", map[string]any{
			"method": route.Method,
			"path":   route.Path,
		})
	}

	return router, nil
}

// identityChain builds the resolver order for IDENTITY_MODE. userinfo mode
// only asks the provider; matrix mode also bridges into the homeserver.
func identityChain(cfg config.Config, p provider.OAuthProvider, client *http.Client, rec metrics.Recorder) *resolver.Chain {
	sources := []resolver.Resolver{resolver.UserInfo{Provider: p}}

	if cfg.IdentityMode == config.IdentityMatrix {
		hs := matrix.NewClient(cfg.Matrix.HomeserverURL, client)

		login := resolver.MatrixLogin{Client: hs}
		if cfg.MatrixJWTSecret != "" {
			login.Signer = &matrix.JWTSigner{
				Secret:   []byte(cfg.MatrixJWTSecret),
				Issuer:   cfg.MatrixJWTIssuer,
				Audience: cfg.MatrixJWTAud,
			}
		}

		sources = append(sources,
			login,
			resolver.Whoami{Client: hs},
			resolver.Profile{Client: hs},
		)
	}

	return resolver.NewChain(rec, sources...)
}

func inviteGenerator(cfg config.Config, client *http.Client) invite.Generator {
	if cfg.Invite.Strategy != config.InviteRegistrationToken {
		return invite.LocalGenerator{}
	}

	base := cfg.Matrix.AdminAPIBase
	if base == "" {
		base = cfg.Matrix.HomeserverURL
	}
	var admin *matrix.Client
	if base != "" {
		admin = matrix.NewClient(base, client)
	}
	return invite.RegistrationTokenGenerator{Admin: admin, AccessToken: cfg.Matrix.AccessToken}
}

func inviteAuthorization(
	cfg config.Config,
	cookies *session.Cookies,
	sessions *session.Repository,
) (invitehandler.Authorizer, []gin.HandlerFunc, error) {
	if cfg.Invite.Authorization == config.InviteAuthSigned {
		signer, err := invite.NewSigner(cfg.Invite.AuthSecret, cfg.Invite.SignedWindow)
		if err != nil {
			return nil, nil, err
		}
		return invitehandler.SignedAuthorizer{Signer: signer}, nil, nil
	}

	var mw []gin.HandlerFunc
	if cfg.Invite.RequireLogin {
		mw = append(mw, middleware.GinRequireAuth(middleware.NewAuthMiddleware(cookies, sessions)))
	}
	return invitehandler.SessionAuthorizer{Cookies: cookies}, mw, nil
}
