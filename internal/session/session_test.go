package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invite-service/internal/store"
)

func TestRepositoryRoundTrip(t *testing.T) {
	mem := store.NewMemoryStore()
	repo := NewRepository(mem)
	ctx := context.Background()

	rec, err := repo.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, PhaseNew, rec.Phase())

	require.NoError(t, repo.Put(ctx, "sid", Pending("st", "cv")))
	rec, err = repo.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, PhasePending, rec.Phase())

	raw, err := mem.Get(ctx, "session:sid")
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"st","codeVerifier":"cv"}`, raw)

	require.NoError(t, repo.Put(ctx, "sid", Record{
		AccessToken: "at",
		User:        &User{ID: "u", DisplayName: "U", MatrixID: "@u:hs"},
	}))
	rec, err = repo.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, PhaseAuthenticated, rec.Phase())
	assert.Empty(t, rec.State)
	assert.Empty(t, rec.CodeVerifier)

	require.NoError(t, repo.Delete(ctx, "sid"))
	require.NoError(t, repo.Delete(ctx, "sid"))
	rec, err = repo.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRepositoryRejectsCorruptRecord(t *testing.T) {
	mem := store.NewMemoryStore()
	require.NoError(t, mem.Set(context.Background(), "session:bad", "{not json", time.Hour))

	_, err := NewRepository(mem).Get(context.Background(), "bad")
	assert.Error(t, err)
}

func TestCookieSignAndRead(t *testing.T) {
	cookies := NewCookies("top-secret", CookieOptions{Secure: true})

	rec := httptest.NewRecorder()
	cookies.Set(rec, "abc123")

	resp := rec.Result()
	require.Len(t, resp.Cookies(), 1)
	issued := resp.Cookies()[0]

	assert.Equal(t, "ff_session", issued.Name)
	assert.True(t, issued.HttpOnly)
	assert.True(t, issued.Secure)
	assert.Equal(t, http.SameSiteLaxMode, issued.SameSite)
	assert.Equal(t, int(TTL.Seconds()), issued.MaxAge)
	assert.Contains(t, issued.Value, "s%3Aabc123.")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(issued)
	assert.Equal(t, "abc123", cookies.Read(req))

	other := NewCookies("another-secret", CookieOptions{})
	assert.Empty(t, other.Read(req), "signature from a different secret is rejected")
}

func TestCookieRejectsTampering(t *testing.T) {
	cookies := NewCookies("top-secret", CookieOptions{Name: "invite_session_id"})

	for _, v := range []string{"abc123", "s:abc123", "s:abc123.bogus", "s%3Aevil.AAAA", "%zz"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "invite_session_id", Value: v})
		assert.Empty(t, cookies.Read(req), v)
	}
}

func TestCookieEnsureMintsOnce(t *testing.T) {
	cookies := NewCookies("top-secret", CookieOptions{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	id, err := cookies.Ensure(rec, req)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.Len(t, rec.Result().Cookies(), 1)

	req2 := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req2.AddCookie(rec.Result().Cookies()[0])
	rec2 := httptest.NewRecorder()
	again, err := cookies.Ensure(rec2, req2)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Empty(t, rec2.Result().Cookies())
}

func TestCookieClear(t *testing.T) {
	cookies := NewCookies("top-secret", CookieOptions{})
	rec := httptest.NewRecorder()
	cookies.Clear(rec)

	c := rec.Result().Cookies()
	require.Len(t, c, 1)
	assert.Equal(t, -1, c[0].MaxAge)
	assert.Empty(t, c[0].Value)
}
