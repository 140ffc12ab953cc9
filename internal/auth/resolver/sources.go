package resolver

import (
	"context"
	"time"

	"invite-service/internal/auth/provider"
	"invite-service/internal/matrix"
)

// UserInfo reads claims from the provider's userinfo endpoint.
type UserInfo struct {
	Provider provider.OAuthProvider
}

func (UserInfo) Name() string { return "userinfo" }

func (u UserInfo) Resolve(ctx context.Context, tokens provider.Tokens, ev *Evidence) error {
	claims, err := u.Provider.UserInfo(ctx, tokens.AccessToken)
	if err != nil {
		return err
	}
	if claims == nil {
		return ErrSkipped
	}
	ev.UserInfo = claims
	return nil
}

// MatrixLogin bridges the OIDC login into a Matrix session through the JWT
// login type. With a signer it presents a freshly minted token for the
// userinfo username; otherwise it forwards the provider's id token.
type MatrixLogin struct {
	Client *matrix.Client
	Signer *matrix.JWTSigner
	Now    func() time.Time
}

func (MatrixLogin) Name() string { return "matrix_login" }

func (m MatrixLogin) Resolve(ctx context.Context, tokens provider.Tokens, ev *Evidence) error {
	token := tokens.IDToken
	if m.Signer != nil {
		subject := ""
		if ev.UserInfo != nil {
			subject = firstNonEmpty(ev.UserInfo.PreferredUsername, ev.UserInfo.Subject)
		}
		if subject == "" {
			return ErrSkipped
		}
		now := time.Now
		if m.Now != nil {
			now = m.Now
		}
		signed, err := m.Signer.Sign(subject, now())
		if err != nil {
			return err
		}
		token = signed
	}
	if token == "" {
		return ErrSkipped
	}

	resp, err := m.Client.LoginJWT(ctx, token)
	if err != nil {
		return err
	}
	ev.LoginUserID = resp.UserID
	ev.MatrixAccessToken = resp.AccessToken
	return nil
}

// Whoami asks the homeserver who owns the Matrix token from the login
// bridge, or the OIDC access token on homeservers that delegate auth.
type Whoami struct {
	Client *matrix.Client
}

func (Whoami) Name() string { return "whoami" }

func (w Whoami) Resolve(ctx context.Context, tokens provider.Tokens, ev *Evidence) error {
	token := firstNonEmpty(ev.MatrixAccessToken, tokens.AccessToken)
	if token == "" {
		return ErrSkipped
	}
	userID, err := w.Client.Whoami(ctx, token)
	if err != nil {
		return err
	}
	ev.WhoamiUserID = userID
	return nil
}

// Profile fetches display name and avatar for the best matrix id so far.
type Profile struct {
	Client *matrix.Client
}

func (Profile) Name() string { return "profile" }

func (p Profile) Resolve(ctx context.Context, tokens provider.Tokens, ev *Evidence) error {
	userID := ev.MatrixID()
	if userID == unknownID || userID[0] != '@' {
		return ErrSkipped
	}
	profile, err := p.Client.Profile(ctx, userID, firstNonEmpty(ev.MatrixAccessToken, tokens.AccessToken))
	if err != nil {
		return err
	}
	ev.Profile = profile
	return nil
}
