package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *JWTService {
	t.Helper()
	svc, err := NewJWTService("test-secret", 1, 60)
	require.NoError(t, err)
	return svc
}

func TestJWTService_TokenRoundTrip(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.GenerateToken(42)
	require.NoError(t, err)

	claims, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Empty(t, claims.Usage)
}

func TestJWTService_WSTicketRoundTrip(t *testing.T) {
	svc := newTestService(t)

	ticket, err := svc.GenerateWSTicket(42, "sess-1", "cid-a")
	require.NoError(t, err)

	claims, err := svc.ParseWSTicket(ticket)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "cid-a", claims.CID)
	assert.Equal(t, uint(42), claims.UserID)
}

func TestJWTService_TicketNotUsableAsAccessToken(t *testing.T) {
	// WS-тикет и токен доступа не взаимозаменяемы
	svc := newTestService(t)

	ticket, err := svc.GenerateWSTicket(42, "sess-1", "cid-a")
	require.NoError(t, err)
	token, err := svc.GenerateToken(42)
	require.NoError(t, err)

	_, err = svc.ParseToken(ticket)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ParseWSTicket(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_WrongSecretRejected(t *testing.T) {
	svc := newTestService(t)
	other, err := NewJWTService("other-secret", 1, 60)
	require.NoError(t, err)

	token, err := svc.GenerateToken(42)
	require.NoError(t, err)

	_, err = other.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_ExpiredTicketRejected(t *testing.T) {
	svc, err := NewJWTService("test-secret", 1, 60)
	require.NoError(t, err)
	// Тикет с истекшим сроком жизни
	svc.wsTicketExpiry = -time.Minute

	ticket, err := svc.GenerateWSTicket(42, "sess-1", "cid-a")
	require.NoError(t, err)

	_, err = svc.ParseWSTicket(ticket)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
