// Package token signs and verifies the capability tokens embedded in booking
// emails. Each token names one appointment and one allowed action; possession
// of the link is the only credential a recipient needs.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Action identifies the single transition a token authorizes.
type Action string

const (
	AgentConfirm    Action = "agent-confirm"
	AgentCancel     Action = "agent-cancel"
	AgentReschedule Action = "agent-reschedule"

	OwnerConfirm Action = "owner-confirm"
	OwnerCancel  Action = "owner-cancel"

	ClientConfirm          Action = "client-confirm"
	ClientCancel           Action = "client-cancel"
	ClientReschedule       Action = "client-reschedule"
	ClientCancelReschedule Action = "client-cancel-reschedule"

	Details Action = "details"
)

// ErrInvalidToken covers every verification failure: bad signature, expiry,
// malformed payload. Callers never learn which, and neither do recipients.
var ErrInvalidToken = errors.New("ERR_INVALID_TOKEN")

// Claims is the payload carried by every capability token.
type Claims struct {
	AppointmentID int64  `json:"appointmentId"`
	Action        Action `json:"type"`
	AgencyID      int64  `json:"agencyId"`
	ResidenceID   int64  `json:"residenceId"`
	AgentRef      int64  `json:"selectedAgent,omitempty"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HMAC-signed capability tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign issues a token for the given claims. Confirm and cancel links expire
// after the configured TTL; reschedule links stay valid so a recipient can
// come back to pick a new slot whenever suits them.
func (s *Signer) Sign(claims Claims, expire bool) (string, error) {
	now := s.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	if expire {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims.
func (s *Signer) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
