package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/shopfront/internal/model"
)

func TestVaultEmptyIsUnauthenticated(t *testing.T) {
	v := NewVault(keyring.NewArrayKeyring(nil))

	s, err := v.Load()
	require.NoError(t, err)
	assert.False(t, s.Authenticated())
	assert.Empty(t, v.Token())
}

func TestVaultSaveLoadClear(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)
	v := NewVault(ring)

	want := model.Session{
		User:  model.User{ID: "u1", Name: "Ada", Email: "ada@example.com", Role: model.RoleSeller},
		Token: "tok-123",
	}
	require.NoError(t, v.Save(want))

	// A fresh vault over the same ring reads what was persisted.
	got, err := NewVault(ring).Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "tok-123", v.Token())

	require.NoError(t, v.Clear())
	assert.Empty(t, v.Token())

	got, err = NewVault(ring).Load()
	require.NoError(t, err)
	assert.False(t, got.Authenticated())
}

func TestVaultClearTwice(t *testing.T) {
	v := NewVault(keyring.NewArrayKeyring(nil))
	require.NoError(t, v.Clear())
	require.NoError(t, v.Clear())
}
