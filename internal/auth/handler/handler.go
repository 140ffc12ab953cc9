package handler

import (
	"net/http"

	"invite-service/internal/apperr"
	"invite-service/internal/auth"
	"invite-service/internal/logger"
	"invite-service/internal/session"

	"github.com/gin-gonic/gin"
)

const internalMessage = "Internal server error."

type Handler struct {
	auth             *auth.Service
	cookies          *session.Cookies
	frontendRedirect string
}

func NewHandler(
	svc *auth.Service,
	cookies *session.Cookies,
	frontendRedirect string,
) *Handler {
	if frontendRedirect == "" {
		frontendRedirect = "/"
	}
	return &Handler{
		auth:             svc,
		cookies:          cookies,
		frontendRedirect: frontendRedirect,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/api/auth/login", h.login)
	r.GET("/api/auth/callback", h.callback)
	r.POST("/api/auth/refresh", h.refresh)
	r.POST("/api/auth/logout", h.logout)
	r.GET("/api/me", h.me)
}

func (h *Handler) login(c *gin.Context) {
	sessionID, err := h.cookies.Ensure(c.Writer, c.Request)
	if err != nil {
		respondError(c, apperr.Internal("Failed to create session.", err))
		return
	}

	authURL, err := h.auth.Login(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"authorizationUrl": authURL})
}

func (h *Handler) callback(c *gin.Context) {
	sessionID := h.cookies.Read(c.Request)

	err := h.auth.Callback(c.Request.Context(), sessionID, auth.CallbackParams{
		Code:             c.Query("code"),
		State:            c.Query("state"),
		Error:            c.Query("error"),
		ErrorDescription: c.Query("error_description"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Info("login completed", map[string]any{
		"ip": c.ClientIP(),
	})
	c.Redirect(http.StatusFound, h.frontendRedirect)
}

func (h *Handler) refresh(c *gin.Context) {
	if err := h.auth.Refresh(c.Request.Context(), h.cookies.Read(c.Request)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// logout always succeeds for the client; a store failure only leaves a
// record that expires on its own.
func (h *Handler) logout(c *gin.Context) {
	sessionID := h.cookies.Read(c.Request)
	if err := h.auth.Logout(c.Request.Context(), sessionID); err != nil {
		logger.Error("failed to delete session on logout", map[string]any{
			"error": err,
		})
	}

	h.cookies.Clear(c.Writer)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.auth.Me(c.Request.Context(), h.cookies.Read(c.Request))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func respondError(c *gin.Context, err error) {
	status := apperr.StatusOf(err)
	fields := map[string]any{
		"path":   c.FullPath(),
		"status": status,
		"error":  err,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("auth request failed", fields)
	} else {
		logger.Warn("auth request rejected", fields)
	}
	c.JSON(status, gin.H{"error": apperr.PublicMessage(err, internalMessage)})
}
