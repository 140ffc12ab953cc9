package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"invite-service/internal/utils"
)

// 32 bytes, base64url without padding: 43 characters.
const secretBytes = 32

func newState() (string, error) {
	state, err := utils.RandomString(secretBytes)
	if err != nil {
		return "", fmt.Errorf("auth: failed to generate state: %w", err)
	}
	return state, nil
}

func newCodeVerifier() (string, error) {
	verifier, err := utils.RandomString(secretBytes)
	if err != nil {
		return "", fmt.Errorf("auth: failed to generate code verifier: %w", err)
	}
	return verifier, nil
}

// CodeChallenge is the S256 challenge for verifier.
func CodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
