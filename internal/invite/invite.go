// Package invite issues, stores and expires the shareable invite code bound
// to an owner (a browser session or a signed Matrix identity).
package invite

import (
	"encoding/json"
	"time"
)

// Invite is one issued code. JSON timestamps are Unix milliseconds.
type Invite struct {
	Code         string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	MatrixUserID string
	RoomID       string
}

// Meta is optional context copied onto a new invite.
type Meta struct {
	MatrixUserID string
	RoomID       string
}

type wireInvite struct {
	Code         string `json:"code"`
	CreatedAt    int64  `json:"createdAt"`
	ExpiresAt    int64  `json:"expiresAt"`
	MatrixUserID string `json:"matrixUserId,omitempty"`
	RoomID       string `json:"roomId,omitempty"`
}

func (i Invite) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireInvite{
		Code:         i.Code,
		CreatedAt:    i.CreatedAt.UnixMilli(),
		ExpiresAt:    i.ExpiresAt.UnixMilli(),
		MatrixUserID: i.MatrixUserID,
		RoomID:       i.RoomID,
	})
}

func (i *Invite) UnmarshalJSON(data []byte) error {
	var w wireInvite
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*i = Invite{
		Code:         w.Code,
		CreatedAt:    time.UnixMilli(w.CreatedAt),
		ExpiresAt:    time.UnixMilli(w.ExpiresAt),
		MatrixUserID: w.MatrixUserID,
		RoomID:       w.RoomID,
	}
	return nil
}

// ExpiredAt reports whether the invite is no longer valid at now. The
// expiry instant itself counts as expired.
func (i Invite) ExpiredAt(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}
