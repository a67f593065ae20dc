package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradsms/rental_bot/internal/rental_service/domain"
)

func TestSessionStore_GetDefaultsWithoutStoring(t *testing.T) {
	store := NewSessionStore()

	sess := store.Get(42)
	assert.Equal(t, domain.NewSession(42), sess)
	assert.Equal(t, domain.StateIdle, sess.State)
	assert.Equal(t, domain.RoleNone, sess.Role)
	assert.Empty(t, store.sessions)
}

func TestSessionStore_Setters(t *testing.T) {
	store := NewSessionStore()

	require.NoError(t, store.SetRole(7, domain.RoleSeller))
	require.NoError(t, store.SetState(7, domain.StateAwaitingCodeInput))
	require.NoError(t, store.SetActiveNumber(7, "+79991234567"))

	sess := store.Get(7)
	assert.Equal(t, domain.RoleSeller, sess.Role)
	assert.Equal(t, domain.StateAwaitingCodeInput, sess.State)
	assert.True(t, sess.HasActiveNumber())

	require.NoError(t, store.ClearActiveNumber(7))
	assert.False(t, store.Get(7).HasActiveNumber())
}

func TestSessionStore_RejectsUnknownState(t *testing.T) {
	store := NewSessionStore()
	require.NoError(t, store.SetState(7, domain.StateSellerMenu))

	err := store.SetState(7, domain.ConversationState("limbo"))
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, domain.StateSellerMenu, store.Get(7).State)
}

func TestSessionStore_UpsertKeepsID(t *testing.T) {
	store := NewSessionStore()

	sess, err := store.Upsert(9, func(s *domain.Session) {
		s.ID = 1000
		s.Role = domain.RoleBuyer
		s.State = domain.StateBuyerMenu
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ChatID(9), sess.ID)
	assert.Equal(t, domain.RoleBuyer, store.Get(9).Role)
}

func TestSessionStore_Reset(t *testing.T) {
	store := NewSessionStore()
	_, err := store.Upsert(3, func(s *domain.Session) {
		s.Role = domain.RoleBuyer
		s.State = domain.StateAwaitingOutcomeReport
		s.ActiveNumber = "+79991234567"
	})
	require.NoError(t, err)

	sess := store.Reset(3)
	assert.Equal(t, domain.NewSession(3), sess)
	assert.Equal(t, domain.NewSession(3), store.Get(3))
}
