// Package matrix talks to the homeserver client-server API and to the
// registration-token admin API. Whoami and profile go through mautrix; JWT
// login and the admin API use a small JSON client.
package matrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"

	"invite-service/internal/apperr"
)

const loginTypeJWT = "org.matrix.login.jwt"

// Client is a thin JSON client over one base URL.
type Client struct {
	base string
	http *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// BaseURL is the trimmed base URL the client was built with.
func (c *Client) BaseURL() string {
	return c.base
}

type LoginResponse struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	DeviceID    string `json:"device_id"`
}

// LoginJWT exchanges a JWT for a Matrix access token.
func (c *Client) LoginJWT(ctx context.Context, token string) (*LoginResponse, error) {
	body := map[string]string{"type": loginTypeJWT, "token": token}

	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, "/_matrix/client/v3/login", "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Whoami resolves an access token to its owning user id.
func (c *Client) Whoami(ctx context.Context, accessToken string) (string, error) {
	cli, err := c.clientServer(accessToken)
	if err != nil {
		return "", err
	}
	resp, err := cli.Whoami(ctx)
	if err != nil {
		return "", apperr.Upstream("Matrix request failed.", fmt.Errorf("whoami: %w", err))
	}
	return resp.UserID.String(), nil
}

type Profile struct {
	DisplayName string `json:"displayname"`
	AvatarURL   string `json:"avatar_url"`
}

// Profile fetches the public profile of userID. accessToken may be empty on
// homeservers that allow unauthenticated profile lookups.
func (c *Client) Profile(ctx context.Context, userID, accessToken string) (*Profile, error) {
	cli, err := c.clientServer(accessToken)
	if err != nil {
		return nil, err
	}
	resp, err := cli.GetProfile(ctx, id.UserID(userID))
	if err != nil {
		return nil, apperr.Upstream("Matrix request failed.", fmt.Errorf("profile %s: %w", userID, err))
	}

	out := &Profile{DisplayName: resp.DisplayName}
	if !resp.AvatarURL.IsEmpty() {
		out.AvatarURL = resp.AvatarURL.String()
	}
	return out, nil
}

// clientServer returns a mautrix client bound to accessToken that shares
// our http client and never retries.
func (c *Client) clientServer(accessToken string) (*mautrix.Client, error) {
	cli, err := mautrix.NewClient(c.base, "", accessToken)
	if err != nil {
		return nil, apperr.Configuration("Invalid Matrix homeserver URL.", err)
	}
	cli.Client = c.http
	cli.DefaultHTTPRetries = 0
	return cli, nil
}

// apiError is the standard Matrix error body.
type apiError struct {
	ErrCode string `json:"errcode"`
	Message string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("matrix: encode %s: %w", path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("matrix: build %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Upstream("Matrix request failed.", fmt.Errorf("%s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperr.Upstream("Matrix request failed.", fmt.Errorf("%s %s: read body: %w", method, path, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.Upstream("Matrix request failed.", statusError(method, path, resp.Status, raw))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Upstream("Matrix response was not understood.", fmt.Errorf("%s %s: %w", method, path, err))
	}
	return nil
}

func statusError(method, path, status string, raw []byte) error {
	var ae apiError
	if json.Unmarshal(raw, &ae) == nil && ae.ErrCode != "" {
		return fmt.Errorf("%s %s: %s: %s %s", method, path, status, ae.ErrCode, ae.Message)
	}
	return fmt.Errorf("%s %s: %s: %s", method, path, status, strings.TrimSpace(string(raw)))
}
