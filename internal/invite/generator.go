package invite

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"invite-service/internal/apperr"
	"invite-service/internal/matrix"
)

const (
	// LocalAlphabet leaves out I, O, 0 and 1.
	LocalAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	LocalLength   = 6

	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	tokenLength   = 7
)

// Generator produces a fresh invite valid from now for ttl.
type Generator interface {
	Name() string
	Generate(ctx context.Context, now time.Time, ttl time.Duration) (Invite, error)
}

// LocalGenerator mints codes in-process.
type LocalGenerator struct{}

func (LocalGenerator) Name() string { return "local" }

func (LocalGenerator) Generate(_ context.Context, now time.Time, ttl time.Duration) (Invite, error) {
	code, err := randomCode(LocalAlphabet, LocalLength)
	if err != nil {
		return Invite{}, apperr.Internal("Failed to generate invite code.", err)
	}
	return Invite{Code: code, CreatedAt: now, ExpiresAt: now.Add(ttl)}, nil
}

// RegistrationTokenGenerator registers the code with the homeserver admin
// API so it can be redeemed at sign-up.
type RegistrationTokenGenerator struct {
	Admin       *matrix.Client
	AccessToken string
}

func (RegistrationTokenGenerator) Name() string { return "registration_token" }

func (g RegistrationTokenGenerator) Generate(ctx context.Context, now time.Time, ttl time.Duration) (Invite, error) {
	if g.Admin == nil || g.Admin.BaseURL() == "" {
		return Invite{}, apperr.Configuration("MATRIX_ADMIN_API_BASE or MATRIX_HOMESERVER_URL is required.", nil)
	}
	if g.AccessToken == "" {
		return Invite{}, apperr.Configuration("MATRIX_ACCESS_TOKEN is required.", nil)
	}

	code, err := randomCode(tokenAlphabet, tokenLength)
	if err != nil {
		return Invite{}, apperr.Internal("Failed to generate invite code.", err)
	}

	attrs, err := g.Admin.CreateRegistrationToken(ctx, g.AccessToken, code, now.Add(ttl))
	if err != nil {
		return Invite{}, fmt.Errorf("failed to create registration token: %w", err)
	}
	if attrs.Token == "" || attrs.CreatedAt == "" {
		return Invite{}, apperr.Upstream("Registration token response is missing required fields.", nil)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, attrs.CreatedAt)
	if err != nil {
		createdAt = now
	}
	expiresAt := createdAt.Add(ttl)
	if attrs.ExpiresAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *attrs.ExpiresAt); err == nil {
			expiresAt = t
		}
	}

	return Invite{Code: attrs.Token, CreatedAt: createdAt, ExpiresAt: expiresAt}, nil
}

func randomCode(alphabet string, n int) (string, error) {
	if n <= 0 || alphabet == "" {
		return "", errors.New("invite: empty code spec")
	}
	limit := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
