package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGrant(t *testing.T) {
	t.Run("requires user ID", func(t *testing.T) {
		_, err := NewGrant("", uuid.New())
		require.Error(t, err)
	})

	t.Run("requires consent type ID", func(t *testing.T) {
		_, err := NewGrant("user-1", uuid.Nil)
		require.Error(t, err)
	})

	t.Run("starts revoked", func(t *testing.T) {
		grant, err := NewGrant("user-1", uuid.New())
		require.NoError(t, err)
		assert.False(t, grant.Access)
		assert.Nil(t, grant.GrantedAt)
	})
}

func TestToggle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("flip to granted sets timestamps", func(t *testing.T) {
		grant, err := NewGrant("user-1", uuid.New())
		require.NoError(t, err)

		updated, entry := grant.Toggle(now, "user-1", ReasonInitialCreation)

		assert.True(t, updated.Access)
		require.NotNil(t, updated.GrantedAt)
		assert.Equal(t, now, *updated.GrantedAt)
		assert.Nil(t, updated.RevokedAt)
		assert.Nil(t, updated.ExpiresAt)

		assert.Equal(t, ActionGranted, entry.Action)
		require.NotNil(t, entry.PreviousValue)
		assert.False(t, *entry.PreviousValue)
		assert.True(t, entry.NewValue)
		assert.Equal(t, grant.ID, entry.GrantID)
	})

	t.Run("flip to granted computes expiry from duration", func(t *testing.T) {
		grant, err := NewGrant("user-1", uuid.New())
		require.NoError(t, err)
		days := 30
		grant.DurationDays = &days

		updated, _ := grant.Toggle(now, "user-1", ReasonUserToggle)

		require.NotNil(t, updated.ExpiresAt)
		assert.Equal(t, now.Add(30*24*time.Hour), *updated.ExpiresAt)
	})

	t.Run("flip to revoked sets revokedAt", func(t *testing.T) {
		grant, err := NewGrant("user-1", uuid.New())
		require.NoError(t, err)
		granted, _ := grant.Toggle(now, "user-1", ReasonInitialCreation)

		later := now.Add(time.Hour)
		revoked, entry := granted.Toggle(later, "user-1", ReasonUserToggle)

		assert.False(t, revoked.Access)
		require.NotNil(t, revoked.RevokedAt)
		assert.Equal(t, later, *revoked.RevokedAt)

		assert.Equal(t, ActionRevoked, entry.Action)
		require.NotNil(t, entry.PreviousValue)
		assert.True(t, *entry.PreviousValue)
		assert.False(t, entry.NewValue)
	})

	t.Run("N toggles alternate actions and chain previous/new values", func(t *testing.T) {
		grant, err := NewGrant("user-1", uuid.New())
		require.NoError(t, err)

		current := *grant
		var entries []HistoryEntry
		for i := 0; i < 6; i++ {
			next, entry := current.Toggle(now.Add(time.Duration(i)*time.Minute), "user-1", ReasonUserToggle)
			entries = append(entries, entry)
			current = next
		}

		require.Len(t, entries, 6)
		for i, entry := range entries {
			wantNew := i%2 == 0 // first toggle grants
			assert.Equal(t, wantNew, entry.NewValue, "entry %d", i)
			require.NotNil(t, entry.PreviousValue)
			assert.Equal(t, !wantNew, *entry.PreviousValue, "entry %d", i)
			if wantNew {
				assert.Equal(t, ActionGranted, entry.Action)
			} else {
				assert.Equal(t, ActionRevoked, entry.Action)
			}
		}
	})
}

func TestExpire(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	grant, err := NewGrant("user-1", uuid.New())
	require.NoError(t, err)
	granted, _ := grant.Toggle(now.Add(-48*time.Hour), "user-1", ReasonInitialCreation)

	expired, entry := granted.Expire(now)

	assert.False(t, expired.Access)
	require.NotNil(t, expired.RevokedAt)
	assert.Equal(t, ActionExpired, entry.Action)
	require.NotNil(t, entry.PreviousValue)
	assert.True(t, *entry.PreviousValue)
	assert.False(t, entry.NewValue)
	assert.Equal(t, ReasonExpirySweep, entry.Reason)
}

func TestGrantStatusHelpers(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("expired grant is not active", func(t *testing.T) {
		past := now.Add(-time.Hour)
		grant := Grant{Access: true, ExpiresAt: &past}
		assert.True(t, grant.IsExpired(now))
		assert.False(t, grant.IsActive(now))
	})

	t.Run("days until expiry", func(t *testing.T) {
		in5 := now.Add(5 * 24 * time.Hour)
		grant := Grant{Access: true, ExpiresAt: &in5}
		assert.Equal(t, 5, grant.DaysUntilExpiry(now))

		assert.Equal(t, -1, Grant{}.DaysUntilExpiry(now))

		past := now.Add(-time.Hour)
		assert.Equal(t, 0, Grant{ExpiresAt: &past}.DaysUntilExpiry(now))
	})
}
