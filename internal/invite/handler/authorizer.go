package handler

import (
	"net/http"
	"time"

	"invite-service/internal/apperr"
	"invite-service/internal/invite"
	"invite-service/internal/middleware"
	"invite-service/internal/session"

	"github.com/gin-gonic/gin"
)

// Owner identifies whose invite a request acts on. An empty ID means the
// request has no owner yet.
type Owner struct {
	ID   string
	Meta invite.Meta
}

// Authorizer decides who may act on an invite. mint is set when a missing
// identity may be created on the spot.
type Authorizer interface {
	Authorize(c *gin.Context, mint bool) (Owner, error)
}

// SessionAuthorizer keys invites by the session cookie.
type SessionAuthorizer struct {
	Cookies *session.Cookies
}

func (a SessionAuthorizer) Authorize(c *gin.Context, mint bool) (Owner, error) {
	var (
		id  string
		err error
	)
	if mint {
		id, err = a.Cookies.Ensure(c.Writer, c.Request)
		if err != nil {
			return Owner{}, apperr.Internal("Failed to create session.", err)
		}
	} else {
		id = a.Cookies.Read(c.Request)
	}

	owner := Owner{ID: id}
	if user, ok := middleware.UserFromContext(c.Request.Context()); ok {
		owner.Meta.MatrixUserID = user.MatrixID
	}
	return owner, nil
}

// SignedAuthorizer keys invites by a payload signed with the shared Matrix
// bot secret. POST carries it as JSON, GET and DELETE as query parameters.
type SignedAuthorizer struct {
	Signer *invite.Signer
	Now    func() time.Time
}

func (a SignedAuthorizer) Authorize(c *gin.Context, _ bool) (Owner, error) {
	var (
		p   invite.SignedPayload
		err error
	)
	if c.Request.Method == http.MethodPost {
		err = c.ShouldBindJSON(&p)
	} else {
		err = c.ShouldBindQuery(&p)
	}
	if err != nil {
		return Owner{}, apperr.Validation("Invalid invite payload.")
	}

	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	if err := a.Signer.Verify(p, now()); err != nil {
		return Owner{}, err
	}

	return Owner{
		ID:   p.Owner(),
		Meta: invite.Meta{MatrixUserID: p.MatrixUserID, RoomID: p.RoomID},
	}, nil
}
