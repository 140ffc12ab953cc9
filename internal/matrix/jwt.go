package matrix

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const loginTokenTTL = 5 * time.Minute

// JWTSigner mints the short-lived HS256 tokens accepted by the homeserver's
// JWT login type.
type JWTSigner struct {
	Secret   []byte
	Issuer   string
	Audience string
}

func (s JWTSigner) Sign(subject string, now time.Time) (string, error) {
	if len(s.Secret) == 0 {
		return "", errors.New("matrix: jwt secret is empty")
	}
	if subject == "" {
		return "", errors.New("matrix: jwt subject is empty")
	}

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(loginTokenTTL)),
	}
	if s.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.Audience}
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}
