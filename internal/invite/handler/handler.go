package handler

import (
	"net/http"

	"invite-service/internal/apperr"
	"invite-service/internal/invite"
	"invite-service/internal/logger"

	"github.com/gin-gonic/gin"
)

const internalMessage = "Internal server error."

type Handler struct {
	invites *invite.Manager
	authz   Authorizer
}

func NewHandler(invites *invite.Manager, authz Authorizer) *Handler {
	return &Handler{invites: invites, authz: authz}
}

// RegisterRoutes mounts the invite routes behind any extra middleware.
func (h *Handler) RegisterRoutes(r gin.IRouter, mw ...gin.HandlerFunc) {
	g := r.Group("/api/invites", mw...)
	g.POST("", h.create)
	g.GET("/current", h.current)
	g.DELETE("/current", h.delete)
}

func (h *Handler) create(c *gin.Context) {
	owner, err := h.authz.Authorize(c, true)
	if err != nil {
		respondError(c, err)
		return
	}

	inv, err := h.invites.Create(c.Request.Context(), owner.ID, owner.Meta)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Info("invite created", map[string]any{
		"matrix_user_id": owner.Meta.MatrixUserID,
		"expires_at":     inv.ExpiresAt,
	})
	c.JSON(http.StatusOK, inv)
}

func (h *Handler) current(c *gin.Context) {
	owner, err := h.authz.Authorize(c, true)
	if err != nil {
		respondError(c, err)
		return
	}

	inv, err := h.invites.Current(c.Request.Context(), owner.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *Handler) delete(c *gin.Context) {
	owner, err := h.authz.Authorize(c, false)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.invites.Delete(c.Request.Context(), owner.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// respondError never exposes server-side failure details.
func respondError(c *gin.Context, err error) {
	status := apperr.StatusOf(err)
	msg := internalMessage
	if status < http.StatusInternalServerError {
		msg = apperr.PublicMessage(err, internalMessage)
	}

	fields := map[string]any{
		"path":   c.FullPath(),
		"status": status,
		"error":  err,
	}
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("invite request failed", fields)
	case status != http.StatusNotFound:
		logger.Warn("invite request rejected", fields)
	}
	c.JSON(status, gin.H{"message": msg})
}
