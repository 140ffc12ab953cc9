package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"invite-service/internal/store"
)

// TTL is how long a session record and its cookie live.
const TTL = 7 * 24 * time.Hour

const keyPrefix = "session:"

// User is the identity asserted by the provider at callback time.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	MatrixID    string `json:"matrixId"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Record is what the store holds under session:<id>. A record is either
// pending (State and CodeVerifier set) or authenticated (User set).
type Record struct {
	State        string `json:"state,omitempty"`
	CodeVerifier string `json:"codeVerifier,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	IDToken      string `json:"idToken,omitempty"`
	User         *User  `json:"user,omitempty"`
}

type Phase string

const (
	PhaseNew           Phase = "new"
	PhasePending       Phase = "pending_auth"
	PhaseAuthenticated Phase = "authenticated"
)

// Phase reports where in the login flow r sits. A nil record is new.
func (r *Record) Phase() Phase {
	switch {
	case r == nil:
		return PhaseNew
	case r.User != nil:
		return PhaseAuthenticated
	case r.State != "" && r.CodeVerifier != "":
		return PhasePending
	default:
		return PhaseNew
	}
}

// Pending builds the record written at login start.
func Pending(state, codeVerifier string) Record {
	return Record{State: state, CodeVerifier: codeVerifier}
}

// Repository maps session ids onto store keys. Writes always replace the
// whole record; concurrent writers to one id are last-write-wins.
type Repository struct {
	store store.Store
	ttl   time.Duration
}

func NewRepository(s store.Store) *Repository {
	return &Repository{store: s, ttl: TTL}
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}

// Get returns nil, nil when no record exists.
func (r *Repository) Get(ctx context.Context, sessionID string) (*Record, error) {
	raw, err := r.store.Get(ctx, key(sessionID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal: %w", err)
	}
	return &rec, nil
}

func (r *Repository) Put(ctx context.Context, sessionID string, rec Record) error {
	if sessionID == "" {
		return errors.New("session: missing session_id")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}
	return r.store.Set(ctx, key(sessionID), string(data), r.ttl)
}

func (r *Repository) Delete(ctx context.Context, sessionID string) error {
	return r.store.Delete(ctx, key(sessionID))
}
