// Package auth drives the OIDC authorization code flow for a browser
// session: NEW -> PENDING_AUTH -> AUTHENTICATED, and back to NEW on logout.
package auth

import (
	"context"

	"invite-service/internal/apperr"
	"invite-service/internal/auth/provider"
	"invite-service/internal/logger"
	"invite-service/internal/metrics"
	"invite-service/internal/session"
)

var (
	ErrMissingSession      = apperr.Validation("Missing session cookie.")
	ErrMissingPendingState = apperr.Validation("Missing session state.")
	ErrInvalidState        = apperr.Validation("Invalid OIDC state.")
	ErrNoSession           = apperr.Unauthorized("Missing session.")
	ErrMissingRefreshToken = apperr.Unauthorized("Missing refresh token.")
)

const (
	stepLogin    = "login"
	stepCallback = "callback"
	stepRefresh  = "refresh"
	stepLogout   = "logout"
)

// IdentityResolver turns freshly issued tokens into the session user. It
// never fails; see resolver.Chain.
type IdentityResolver interface {
	Resolve(ctx context.Context, tokens provider.Tokens) session.User
}

// CallbackParams are the query parameters of the redirect back from the
// provider.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

type Service struct {
	provider provider.OAuthProvider
	sessions *session.Repository
	identity IdentityResolver
	metrics  metrics.Recorder
}

func NewService(
	p provider.OAuthProvider,
	sessions *session.Repository,
	identity IdentityResolver,
	rec metrics.Recorder,
) *Service {
	if rec == nil {
		rec = metrics.NewNoopMetricsRecorder()
	}
	return &Service{
		provider: p,
		sessions: sessions,
		identity: identity,
		metrics:  rec,
	}
}

// Login starts a PKCE flow for sessionID and returns the authorization URL.
// Any previous record for the session is replaced.
func (s *Service) Login(ctx context.Context, sessionID string) (authURL string, err error) {
	defer func() { s.metrics.RecordAuthStep(stepLogin, err == nil) }()

	if sessionID == "" {
		return "", ErrMissingSession
	}

	state, err := newState()
	if err != nil {
		return "", apperr.Internal("Failed to start login.", err)
	}
	verifier, err := newCodeVerifier()
	if err != nil {
		return "", apperr.Internal("Failed to start login.", err)
	}

	authURL, err = s.provider.AuthCodeURL(ctx, state, verifier)
	if err != nil {
		return "", err
	}

	if err := s.sessions.Put(ctx, sessionID, session.Pending(state, verifier)); err != nil {
		return "", s.storeError("put", err)
	}
	return authURL, nil
}

// Callback validates the provider redirect, redeems the code and
// authenticates the session. State problems abort before any token
// exchange.
func (s *Service) Callback(ctx context.Context, sessionID string, params CallbackParams) (err error) {
	defer func() { s.metrics.RecordAuthStep(stepCallback, err == nil) }()

	if sessionID == "" {
		return ErrMissingSession
	}

	rec, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return s.storeError("get", err)
	}
	if rec.Phase() != session.PhasePending {
		return ErrMissingPendingState
	}

	if params.Error != "" {
		logger.Warn("oidc callback returned error", map[string]any{
			"error": params.Error,
			"desc":  params.ErrorDescription,
		})
		return apperr.Validation("Authorization failed: " + params.Error)
	}

	if params.Code == "" || params.State == "" || params.State != rec.State {
		return ErrInvalidState
	}

	tokens, err := s.provider.ExchangeCode(ctx, params.Code, rec.CodeVerifier)
	if err != nil {
		return err
	}

	user := s.identity.Resolve(ctx, *tokens)

	authenticated := session.Record{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		IDToken:      tokens.IDToken,
		User:         &user,
	}
	if err := s.sessions.Put(ctx, sessionID, authenticated); err != nil {
		return s.storeError("put", err)
	}

	logger.Info("login succeeded", map[string]any{
		"user_id":   user.ID,
		"matrix_id": user.MatrixID,
	})
	return nil
}

// Refresh redeems the session's refresh token. Tokens the provider did not
// rotate are kept.
func (s *Service) Refresh(ctx context.Context, sessionID string) (err error) {
	defer func() { s.metrics.RecordAuthStep(stepRefresh, err == nil) }()

	if sessionID == "" {
		return ErrNoSession
	}

	rec, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return s.storeError("get", err)
	}
	if rec == nil || rec.RefreshToken == "" {
		return ErrMissingRefreshToken
	}

	tokens, err := s.provider.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		return err
	}

	rec.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		rec.RefreshToken = tokens.RefreshToken
	}
	if tokens.IDToken != "" {
		rec.IDToken = tokens.IDToken
	}

	if err := s.sessions.Put(ctx, sessionID, *rec); err != nil {
		return s.storeError("put", err)
	}
	return nil
}

// Logout drops the session record. Logging out twice is not an error.
func (s *Service) Logout(ctx context.Context, sessionID string) (err error) {
	defer func() { s.metrics.RecordAuthStep(stepLogout, err == nil) }()

	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return s.storeError("delete", err)
	}
	return nil
}

// Me returns the authenticated user of sessionID, or nil.
func (s *Service) Me(ctx context.Context, sessionID string) (*session.User, error) {
	if sessionID == "" {
		return nil, nil
	}
	rec, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, s.storeError("get", err)
	}
	if rec == nil {
		return nil, nil
	}
	return rec.User, nil
}

func (s *Service) storeError(op string, err error) error {
	s.metrics.RecordStoreError(op)
	return apperr.Internal("Session store unavailable.", err)
}
