// Package health serves the liveness and public configuration endpoints.
package health

import (
	"context"
	"net/http"
	"time"

	"invite-service/internal/config"
	"invite-service/internal/logger"

	"github.com/gin-gonic/gin"
)

// PingTimeout bounds the store probe; running out counts as unreachable.
const PingTimeout = 1500 * time.Millisecond

const (
	StoreConnected = "connected"
	StoreError     = "error"
	StoreDisabled  = "disabled"
)

// Pinger probes the session store.
type Pinger func(ctx context.Context) error

type Handler struct {
	cfg  config.Config
	ping Pinger
}

// NewHandler reports the store as disabled when ping is nil.
func NewHandler(cfg config.Config, ping Pinger) *Handler {
	return &Handler{cfg: cfg, ping: ping}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/api/health", h.health)
	r.GET("/api/config", h.config)
}

// StoreStatus runs one bounded probe.
func (h *Handler) StoreStatus(ctx context.Context) string {
	if h.ping == nil {
		return StoreDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()

	if err := h.ping(ctx); err != nil {
		logger.Warn("store health check failed", map[string]any{"error": err})
		return StoreError
	}
	return StoreConnected
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"redis":            h.StoreStatus(c.Request.Context()),
		"oidcConfigured":   h.cfg.OIDC.Configured(),
		"matrixConfigured": h.cfg.Matrix.Configured(),
	})
}

// config never includes secrets, only whether they are set.
func (h *Handler) config(c *gin.Context) {
	cfg := h.cfg
	c.JSON(http.StatusOK, gin.H{
		"oidc": gin.H{
			"issuerUrl":       cfg.OIDC.Issuer,
			"clientId":        cfg.OIDC.ClientID,
			"redirectUri":     cfg.OIDC.RedirectURI,
			"scope":           cfg.OIDC.Scope,
			"clientSecretSet": cfg.OIDC.ClientSecret != "",
			"configured":      cfg.OIDC.Configured(),
		},
		"matrix": gin.H{
			"homeserverUrl":  cfg.Matrix.HomeserverURL,
			"userId":         cfg.Matrix.UserID,
			"accessTokenSet": cfg.Matrix.AccessToken != "",
			"configured":     cfg.Matrix.Configured(),
		},
		"redis": gin.H{
			"urlSet":  cfg.Store.RedisURL != "",
			"backend": cfg.Store.Backend,
		},
		"invites": gin.H{
			"strategy":      cfg.Invite.Strategy,
			"authorization": cfg.Invite.Authorization,
			"requireLogin":  bool(cfg.Invite.RequireLogin),
			"ttlSeconds":    int64(cfg.Invite.TTL.Seconds()),
		},
		"identityMode": cfg.IdentityMode,
	})
}
