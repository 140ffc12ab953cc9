package invite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"invite-service/internal/apperr"
	"invite-service/internal/logger"
	"invite-service/internal/metrics"
	"invite-service/internal/store"
)

// DefaultTTL is how long an invite stays retrievable.
const DefaultTTL = 7 * 24 * time.Hour

const keyPrefix = "invite:"

var ErrNotFound = apperr.NotFound("Invite code not found.")

// Manager keeps at most one live invite per owner.
type Manager struct {
	store   store.Store
	gen     Generator
	ttl     time.Duration
	now     func() time.Time
	metrics metrics.Recorder
}

func NewManager(s store.Store, gen Generator, ttl time.Duration, rec metrics.Recorder) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if rec == nil {
		rec = metrics.NewNoopMetricsRecorder()
	}
	return &Manager{store: s, gen: gen, ttl: ttl, now: time.Now, metrics: rec}
}

// WithClock replaces the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func key(owner string) string {
	return keyPrefix + owner
}

// Create issues a new invite for owner, replacing any previous one.
func (m *Manager) Create(ctx context.Context, owner string, meta Meta) (Invite, error) {
	if owner == "" {
		return Invite{}, errors.New("invite: missing owner")
	}

	inv, err := m.gen.Generate(ctx, m.now(), m.ttl)
	m.metrics.RecordInviteCreated(m.gen.Name(), err == nil)
	if err != nil {
		return Invite{}, err
	}
	inv.MatrixUserID = meta.MatrixUserID
	inv.RoomID = meta.RoomID

	data, err := json.Marshal(inv)
	if err != nil {
		return Invite{}, fmt.Errorf("invite: failed to marshal: %w", err)
	}
	if err := m.store.Set(ctx, key(owner), string(data), m.ttl); err != nil {
		m.metrics.RecordStoreError("set")
		return Invite{}, apperr.Internal("Failed to store invite.", err)
	}
	return inv, nil
}

// Current returns owner's live invite. An expired entry is deleted and
// reported as ErrNotFound.
func (m *Manager) Current(ctx context.Context, owner string) (Invite, error) {
	if owner == "" {
		return Invite{}, ErrNotFound
	}

	raw, err := m.store.Get(ctx, key(owner))
	if errors.Is(err, store.ErrNotFound) {
		return Invite{}, ErrNotFound
	}
	if err != nil {
		m.metrics.RecordStoreError("get")
		return Invite{}, apperr.Internal("Failed to load invite.", err)
	}

	var inv Invite
	if err := json.Unmarshal([]byte(raw), &inv); err != nil || inv.ExpiresAt.UnixMilli() == 0 || inv.ExpiredAt(m.now()) {
		if err != nil {
			logger.Warn("dropping unreadable invite", map[string]any{"error": err})
		}
		if err := m.store.Delete(ctx, key(owner)); err != nil {
			m.metrics.RecordStoreError("delete")
			return Invite{}, apperr.Internal("Failed to delete invite.", err)
		}
		return Invite{}, ErrNotFound
	}
	return inv, nil
}

// Delete removes owner's invite. Deleting nothing is not an error.
func (m *Manager) Delete(ctx context.Context, owner string) error {
	if owner == "" {
		return nil
	}
	if err := m.store.Delete(ctx, key(owner)); err != nil {
		m.metrics.RecordStoreError("delete")
		return apperr.Internal("Failed to delete invite.", err)
	}
	return nil
}
