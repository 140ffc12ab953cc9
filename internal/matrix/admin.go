package matrix

import (
	"context"
	"net/http"
	"time"
)

// RegistrationToken is the attributes block returned by the admin API.
// Timestamps are left as sent; callers decide how to treat bad values.
type RegistrationToken struct {
	Token     string  `json:"token"`
	CreatedAt string  `json:"created_at"`
	ExpiresAt *string `json:"expires_at"`
}

// CreateRegistrationToken asks the admin API for a one-time registration
// token. c must be built over the admin base URL with the admin access token.
func (c *Client) CreateRegistrationToken(ctx context.Context, adminToken, token string, expiresAt time.Time) (*RegistrationToken, error) {
	body := map[string]any{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339Nano),
	}

	var out struct {
		Data struct {
			Attributes RegistrationToken `json:"attributes"`
		} `json:"data"`
	}
	err := c.do(ctx, http.MethodPost, "/api/admin/v1/user-registration-tokens", adminToken, body, &out)
	if err != nil {
		return nil, err
	}
	return &out.Data.Attributes, nil
}
