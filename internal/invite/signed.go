package invite

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"invite-service/internal/apperr"
)

// DefaultSignedWindow is how long a signed payload is accepted after
// issuedAt.
const DefaultSignedWindow = 15 * time.Minute

var (
	ErrPayloadExpired   = apperr.Unauthorized("Matrix invite payload has expired.")
	ErrInvalidSignature = apperr.Unauthorized("Matrix invite signature is invalid.")
	ErrIncomplete       = apperr.Unauthorized("Matrix invite payload is incomplete.")
)

// SignedPayload is issued by a trusted bot on behalf of a Matrix user in a
// room. IssuedAt is Unix milliseconds.
type SignedPayload struct {
	MatrixUserID string `json:"matrixUserId" form:"matrixUserId"`
	RoomID       string `json:"roomId" form:"roomId"`
	IssuedAt     int64  `json:"issuedAt" form:"issuedAt"`
	Nonce        string `json:"nonce" form:"nonce"`
	Signature    string `json:"signature" form:"signature"`
}

func (p SignedPayload) message() string {
	return strings.Join([]string{
		p.MatrixUserID,
		p.RoomID,
		strconv.FormatInt(p.IssuedAt, 10),
		p.Nonce,
	}, ":")
}

// Owner is the invite owner key for the payload's identity.
func (p SignedPayload) Owner() string {
	return p.MatrixUserID + "|" + p.RoomID
}

// Signer signs and verifies payloads with a shared secret.
type Signer struct {
	secret []byte
	window time.Duration
}

func NewSigner(secret string, window time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("invite: signing secret is empty")
	}
	if window <= 0 {
		window = DefaultSignedWindow
	}
	return &Signer{secret: []byte(secret), window: window}, nil
}

func (s *Signer) signature(p SignedPayload) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(p.message()))
	return hex.EncodeToString(mac.Sum(nil))
}

// Sign fills in the signature.
func (s *Signer) Sign(p SignedPayload) SignedPayload {
	p.Signature = s.signature(p)
	return p
}

// Verify checks the window first, then the signature.
func (s *Signer) Verify(p SignedPayload, now time.Time) error {
	if p.MatrixUserID == "" || p.RoomID == "" || p.Nonce == "" || p.Signature == "" {
		return ErrIncomplete
	}
	if now.UnixMilli()-p.IssuedAt > s.window.Milliseconds() {
		return ErrPayloadExpired
	}
	if !hmac.Equal([]byte(s.signature(p)), []byte(p.Signature)) {
		return ErrInvalidSignature
	}
	return nil
}
