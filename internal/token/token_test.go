package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSigner(now time.Time) *Signer {
	s := NewSigner("test-secret", time.Hour)
	s.now = func() time.Time { return now }
	return s
}

func TestSignAndVerifyRoundtrip(t *testing.T) {
	signer := newTestSigner(time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC))

	signed, err := signer.Sign(Claims{
		AppointmentID: 42,
		Action:        ClientConfirm,
		AgencyID:      5,
		ResidenceID:   10,
		AgentRef:      7,
	}, true)
	require.NoError(t, err)

	claims, err := signer.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.AppointmentID)
	assert.Equal(t, ClientConfirm, claims.Action)
	assert.Equal(t, int64(5), claims.AgencyID)
	assert.Equal(t, int64(10), claims.ResidenceID)
	assert.Equal(t, int64(7), claims.AgentRef)
}

func TestVerifyExpiredToken(t *testing.T) {
	issued := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	signer := newTestSigner(issued)

	signed, err := signer.Sign(Claims{AppointmentID: 1, Action: AgentCancel}, true)
	require.NoError(t, err)

	signer.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = signer.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRescheduleTokenNeverExpires(t *testing.T) {
	issued := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	signer := newTestSigner(issued)

	signed, err := signer.Sign(Claims{AppointmentID: 1, Action: ClientReschedule}, false)
	require.NoError(t, err)

	signer.now = func() time.Time { return issued.AddDate(0, 6, 0) }
	claims, err := signer.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, ClientReschedule, claims.Action)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	signer := newTestSigner(now)
	other := NewSigner("other-secret", time.Hour)
	other.now = signer.now

	signed, err := other.Sign(Claims{AppointmentID: 1, Action: OwnerConfirm}, true)
	require.NoError(t, err)

	_, err = signer.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	signer := newTestSigner(time.Now())
	_, err := signer.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
