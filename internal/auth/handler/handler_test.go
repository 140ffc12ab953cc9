package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invite-service/internal/apperr"
	"invite-service/internal/auth"
	"invite-service/internal/auth/provider"
	"invite-service/internal/session"
	"invite-service/internal/store"
)

type stubProvider struct {
	exchanged   int
	exchangeErr error
}

func (s *stubProvider) AuthCodeURL(_ context.Context, state, verifier string) (string, error) {
	q := url.Values{"state": {state}, "code_challenge": {auth.CodeChallenge(verifier)}}
	return "https://idp.example/authorize?" + q.Encode(), nil
}

func (s *stubProvider) ExchangeCode(context.Context, string, string) (*provider.Tokens, error) {
	s.exchanged++
	if s.exchangeErr != nil {
		return nil, s.exchangeErr
	}
	return &provider.Tokens{AccessToken: "at", RefreshToken: "rt"}, nil
}

func (s *stubProvider) Refresh(context.Context, string) (*provider.Tokens, error) {
	return &provider.Tokens{AccessToken: "at-2"}, nil
}

func (s *stubProvider) UserInfo(context.Context, string) (*provider.Claims, error) {
	return nil, nil
}

type stubIdentity struct{}

func (stubIdentity) Resolve(context.Context, provider.Tokens) session.User {
	return session.User{ID: "sub-1", DisplayName: "Ada", MatrixID: "@ada:hs.example"}
}

type harness struct {
	router   *gin.Engine
	provider *stubProvider
	repo     *session.Repository
	cookies  *session.Cookies
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sp := &stubProvider{}
	repo := session.NewRepository(store.NewMemoryStore())
	cookies := session.NewCookies("secret", session.CookieOptions{})
	svc := auth.NewService(sp, repo, stubIdentity{}, nil)

	r := gin.New()
	NewHandler(svc, cookies, "https://app.example/home").RegisterRoutes(r)
	return &harness{router: r, provider: sp, repo: repo, cookies: cookies}
}

func (h *harness) do(method, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == session.DefaultCookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestLoginCallbackMeLogout(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/api/auth/login")
	require.Equal(t, http.StatusOK, w.Code)
	cookie := sessionCookie(t, w)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, int(session.TTL.Seconds()), cookie.MaxAge)

	authURL, err := url.Parse(decode(t, w)["authorizationUrl"].(string))
	require.NoError(t, err)
	state := authURL.Query().Get("state")
	require.NotEmpty(t, state)

	w = h.do(http.MethodGet, "/api/auth/callback?code=c1&state="+url.QueryEscape(state), cookie)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://app.example/home", w.Header().Get("Location"))

	w = h.do(http.MethodGet, "/api/me", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	user := decode(t, w)["user"].(map[string]any)
	assert.Equal(t, "@ada:hs.example", user["matrixId"])
	assert.Equal(t, "Ada", user["displayName"])

	w = h.do(http.MethodPost, "/api/auth/refresh", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["ok"])

	for range 2 {
		w = h.do(http.MethodPost, "/api/auth/logout", cookie)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decode(t, w)["ok"])
		assert.Equal(t, -1, sessionCookie(t, w).MaxAge)
	}

	w = h.do(http.MethodGet, "/api/me", cookie)
	assert.JSONEq(t, `{"user":null}`, w.Body.String())
}

func TestLoginReusesExistingCookie(t *testing.T) {
	h := newHarness(t)

	first := sessionCookie(t, h.do(http.MethodPost, "/api/auth/login"))
	w := h.do(http.MethodPost, "/api/auth/login", first)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Result().Cookies())
}

func TestCallbackErrors(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/auth/callback?code=c&state=s")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Missing session cookie."}`, w.Body.String())

	cookie := sessionCookie(t, h.do(http.MethodPost, "/api/auth/login"))

	w = h.do(http.MethodGet, "/api/auth/callback?code=c&state=wrong", cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid OIDC state."}`, w.Body.String())
	assert.Zero(t, h.provider.exchanged)

	other := &http.Cookie{Name: session.DefaultCookieName, Value: "forged"}
	w = h.do(http.MethodGet, "/api/auth/callback?code=c&state=s", other)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Missing session cookie."}`, w.Body.String())
}

func TestCallbackExchangeFailure(t *testing.T) {
	h := newHarness(t)
	h.provider.exchangeErr = apperr.Upstream("Token exchange failed: invalid_grant", nil)

	w := h.do(http.MethodPost, "/api/auth/login")
	cookie := sessionCookie(t, w)
	authURL, err := url.Parse(decode(t, w)["authorizationUrl"].(string))
	require.NoError(t, err)

	w = h.do(http.MethodGet, "/api/auth/callback?code=c&"+url.Values{"state": {authURL.Query().Get("state")}}.Encode(), cookie)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Token exchange failed: invalid_grant"}`, w.Body.String())
}

func TestRefreshWithoutSession(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/api/auth/refresh")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Missing session."}`, w.Body.String())

	cookie := sessionCookie(t, h.do(http.MethodPost, "/api/auth/login"))
	w = h.do(http.MethodPost, "/api/auth/refresh", cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Missing refresh token."}`, w.Body.String())
}

func TestMeWithoutCookie(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/me")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":null}`, w.Body.String())
}
