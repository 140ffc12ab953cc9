package resolver

import (
	"context"
	"errors"

	"invite-service/internal/auth/provider"
	"invite-service/internal/logger"
	"invite-service/internal/matrix"
	"invite-service/internal/metrics"
	"invite-service/internal/session"
)

const unknownID = "unknown"

// ErrSkipped means a resolver had nothing to work with. It is not a failure.
var ErrSkipped = errors.New("resolver: skipped")

// Evidence accumulates what each identity source reported. Sources run in
// order and later ones may build on earlier results.
type Evidence struct {
	UserInfo          *provider.Claims
	LoginUserID       string
	MatrixAccessToken string
	WhoamiUserID      string
	Profile           *matrix.Profile
}

// Resolver contributes one identity source. A returned error is logged and
// the chain moves on.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, tokens provider.Tokens, ev *Evidence) error
}

// Chain runs resolvers in order and folds their evidence into a user.
type Chain struct {
	resolvers []Resolver
	metrics   metrics.Recorder
}

func NewChain(rec metrics.Recorder, resolvers ...Resolver) *Chain {
	if rec == nil {
		rec = metrics.NewNoopMetricsRecorder()
	}
	return &Chain{resolvers: resolvers, metrics: rec}
}

// Resolve never fails: with no evidence at all the user is "unknown".
func (c *Chain) Resolve(ctx context.Context, tokens provider.Tokens) session.User {
	var ev Evidence
	for _, r := range c.resolvers {
		err := r.Resolve(ctx, tokens, &ev)
		switch {
		case err == nil:
		case errors.Is(err, ErrSkipped):
			logger.Debug("identity source skipped", map[string]any{"source": r.Name()})
		default:
			c.metrics.RecordIdentityFallback(r.Name())
			logger.Warn("identity source failed, falling back", map[string]any{
				"source": r.Name(),
				"error":  err.Error(),
			})
		}
	}
	return ev.User()
}

// MatrixID applies the precedence whoami > login > userinfo claims.
func (e *Evidence) MatrixID() string {
	var ui provider.Claims
	if e.UserInfo != nil {
		ui = *e.UserInfo
	}
	return firstNonEmpty(
		e.WhoamiUserID,
		e.LoginUserID,
		ui.MatrixID,
		ui.PreferredUsername,
		ui.Subject,
		unknownID,
	)
}

func (e *Evidence) User() session.User {
	var ui provider.Claims
	if e.UserInfo != nil {
		ui = *e.UserInfo
	}
	var profile matrix.Profile
	if e.Profile != nil {
		profile = *e.Profile
	}

	matrixID := e.MatrixID()
	return session.User{
		ID:          firstNonEmpty(ui.Subject, matrixID),
		DisplayName: firstNonEmpty(profile.DisplayName, ui.Name, ui.PreferredUsername, matrixID),
		MatrixID:    matrixID,
		AvatarURL:   profile.AvatarURL,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
