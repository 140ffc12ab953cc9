package invite

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invite-service/internal/apperr"
	"invite-service/internal/matrix"
	"invite-service/internal/store"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newManager(gen Generator) (*Manager, *store.MemoryStore, *clock) {
	clk := &clock{t: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	mem := store.NewMemoryStore().WithClock(clk.now)
	return NewManager(mem, gen, 0, nil).WithClock(clk.now), mem, clk
}

func TestCurrentUntilExpiry(t *testing.T) {
	m, mem, clk := newManager(LocalGenerator{})
	ctx := context.Background()

	created, err := m.Create(ctx, "sid", Meta{})
	require.NoError(t, err)
	assert.Equal(t, clk.t.Add(7*24*time.Hour), created.ExpiresAt)

	clk.t = created.ExpiresAt.Add(-time.Millisecond)
	got, err := m.Current(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, created.Code, got.Code)

	// Pretend the store kept the entry past its TTL so the check falls to
	// the manager.
	require.NoError(t, mem.Set(ctx, "invite:sid", mustJSON(t, created), time.Hour))
	clk.t = created.ExpiresAt
	_, err = m.Current(ctx, "sid")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, mem.Len(), "expired entry is removed")
}

func TestCreateOverwrites(t *testing.T) {
	m, _, _ := newManager(LocalGenerator{})
	ctx := context.Background()

	first, err := m.Create(ctx, "sid", Meta{})
	require.NoError(t, err)

	var second Invite
	for {
		second, err = m.Create(ctx, "sid", Meta{})
		require.NoError(t, err)
		if second.Code != first.Code {
			break
		}
	}

	got, err := m.Current(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, second.Code, got.Code)
}

func TestOwnersAreIsolated(t *testing.T) {
	m, _, _ := newManager(LocalGenerator{})
	ctx := context.Background()

	_, err := m.Create(ctx, "a", Meta{})
	require.NoError(t, err)

	_, err = m.Current(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Delete(ctx, "b"))
	_, err = m.Current(ctx, "a")
	assert.NoError(t, err)
}

func TestDeleteIsIdempotent(t *testing.T) {
	m, _, _ := newManager(LocalGenerator{})
	ctx := context.Background()

	_, err := m.Create(ctx, "sid", Meta{MatrixUserID: "@a:hs", RoomID: "!r:hs"})
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, "sid"))
	require.NoError(t, m.Delete(ctx, "sid"))
	require.NoError(t, m.Delete(ctx, ""))

	_, err = m.Current(ctx, "sid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCurrentDropsGarbage(t *testing.T) {
	m, mem, _ := newManager(LocalGenerator{})
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, "invite:sid", "not json", time.Hour))

	_, err := m.Current(ctx, "sid")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, mem.Len())
}

func TestLocalAlphabet(t *testing.T) {
	for range 500 {
		inv, err := LocalGenerator{}.Generate(context.Background(), time.Now(), time.Hour)
		require.NoError(t, err)
		require.Len(t, inv.Code, LocalLength)
		assert.NotContains(t, inv.Code, "I")
		assert.NotContains(t, inv.Code, "O")
		assert.NotContains(t, inv.Code, "0")
		assert.NotContains(t, inv.Code, "1")
		for _, r := range inv.Code {
			assert.True(t, strings.ContainsRune(LocalAlphabet, r), "unexpected %q", r)
		}
	}
}

func TestInviteJSONUsesMilliseconds(t *testing.T) {
	at := time.UnixMilli(1760529600123)
	data, err := json.Marshal(Invite{Code: "ABC234", CreatedAt: at, ExpiresAt: at.Add(time.Second)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"ABC234","createdAt":1760529600123,"expiresAt":1760529601123}`, string(data))
}

func TestRegistrationTokenGenerator(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	var gotAuth string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/admin/v1/user-registration-tokens", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"data":{"attributes":{"token":"` + gotBody["token"] + `","created_at":"2026-10-15T12:00:01Z","expires_at":"2026-10-22T12:00:00Z"}}}`))
	}))
	defer srv.Close()

	gen := RegistrationTokenGenerator{Admin: matrix.NewClient(srv.URL+"/", srv.Client()), AccessToken: "admin"}
	inv, err := gen.Generate(context.Background(), now, DefaultTTL)
	require.NoError(t, err)

	assert.Equal(t, "Bearer admin", gotAuth)
	assert.Len(t, gotBody["token"], 7)
	assert.Equal(t, gotBody["token"], inv.Code)
	assert.Equal(t, "2026-10-22T12:00:00Z", gotBody["expires_at"])
	assert.Equal(t, time.Date(2026, 10, 15, 12, 0, 1, 0, time.UTC), inv.CreatedAt.UTC())
	assert.Equal(t, time.Date(2026, 10, 22, 12, 0, 0, 0, time.UTC), inv.ExpiresAt.UTC())
}

func TestRegistrationTokenFallbacks(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	reply := `{"data":{"attributes":{"token":"TOKEN12","created_at":"yesterday","expires_at":null}}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(reply))
	}))
	defer srv.Close()

	gen := RegistrationTokenGenerator{Admin: matrix.NewClient(srv.URL, srv.Client()), AccessToken: "admin"}
	inv, err := gen.Generate(context.Background(), now, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, now, inv.CreatedAt)
	assert.Equal(t, now.Add(time.Hour), inv.ExpiresAt)

	reply = `{"data":{"attributes":{"created_at":"2026-10-15T12:00:00Z"}}}`
	_, err = gen.Generate(context.Background(), now, time.Hour)
	assert.Equal(t, apperr.CodeUpstream, apperr.CodeOf(err))
}

func TestRegistrationTokenConfiguration(t *testing.T) {
	ctx := context.Background()

	_, err := RegistrationTokenGenerator{AccessToken: "x"}.Generate(ctx, time.Now(), time.Hour)
	assert.Equal(t, apperr.CodeConfiguration, apperr.CodeOf(err))

	_, err = RegistrationTokenGenerator{Admin: matrix.NewClient("https://hs.example", nil)}.Generate(ctx, time.Now(), time.Hour)
	assert.Equal(t, apperr.CodeConfiguration, apperr.CodeOf(err))
}

func TestRegistrationTokenUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errcode":"M_FORBIDDEN","error":"nope"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	m, mem, _ := newManager(RegistrationTokenGenerator{Admin: matrix.NewClient(srv.URL, srv.Client()), AccessToken: "admin"})
	_, err := m.Create(context.Background(), "sid", Meta{})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeUpstream, apperr.CodeOf(err))
	assert.Contains(t, err.Error(), "M_FORBIDDEN")
	assert.Zero(t, mem.Len())
}

func TestSigner(t *testing.T) {
	s, err := NewSigner("bot-secret", 0)
	require.NoError(t, err)

	issued := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	p := s.Sign(SignedPayload{
		MatrixUserID: "@ada:hs.example",
		RoomID:       "!room:hs.example",
		IssuedAt:     issued.UnixMilli(),
		Nonce:        "n-1",
	})
	assert.Len(t, p.Signature, 64)

	assert.NoError(t, s.Verify(p, issued))
	assert.NoError(t, s.Verify(p, issued.Add(15*time.Minute)))
	assert.ErrorIs(t, s.Verify(p, issued.Add(15*time.Minute+time.Millisecond)), ErrPayloadExpired)

	tampered := p
	tampered.RoomID = "!other:hs.example"
	assert.ErrorIs(t, s.Verify(tampered, issued), ErrInvalidSignature)

	other, err := NewSigner("different", 0)
	require.NoError(t, err)
	assert.ErrorIs(t, other.Verify(p, issued), ErrInvalidSignature)

	incomplete := p
	incomplete.Nonce = ""
	assert.ErrorIs(t, s.Verify(incomplete, issued), ErrIncomplete)

	_, err = NewSigner("", time.Minute)
	assert.Error(t, err)
}

func TestSignerMessageFormat(t *testing.T) {
	s, err := NewSigner("k", time.Minute)
	require.NoError(t, err)
	p := SignedPayload{MatrixUserID: "@a:hs", RoomID: "!r:hs", IssuedAt: 42, Nonce: "n"}
	assert.Equal(t, "@a:hs:!r:hs:42:n", p.message())
	assert.Equal(t, "@a:hs|!r:hs", p.Owner())
	assert.NotEqual(t, s.Sign(p).Signature, s.Sign(SignedPayload{MatrixUserID: "@a:hs", RoomID: "!r:hs", IssuedAt: 43, Nonce: "n"}).Signature)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
