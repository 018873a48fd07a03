package auth

import (
	"testing"
	"time"

	"github.com/postdesk/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityCanMutate(t *testing.T) {
	author := Identity{UserID: 7, Role: db.RoleAuthor}
	admin := Identity{UserID: 1, Role: "admin"}

	assert.True(t, author.CanMutate(7))
	assert.False(t, author.CanMutate(8))
	assert.True(t, admin.CanMutate(8))
	assert.False(t, Identity{}.CanMutate(0))
}

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)

	token, err := m.Issue(Identity{UserID: 42, Role: db.RoleAdmin})
	require.NoError(t, err)

	id, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id.UserID)
	assert.True(t, id.IsAdmin())
}

func TestTokenRejectsWrongSecretAndExpiry(t *testing.T) {
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewTokenManager("secret", time.Minute)
	m.now = func() time.Time { return issued }

	token, err := m.Issue(Identity{UserID: 1, Role: db.RoleAuthor})
	require.NoError(t, err)

	other := NewTokenManager("other", time.Minute)
	other.now = m.now
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	m.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", token)

	_, ok = BearerToken("Basic xyz")
	assert.False(t, ok)
	_, ok = BearerToken("")
	assert.False(t, ok)
}
