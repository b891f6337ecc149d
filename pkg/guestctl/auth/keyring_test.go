package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	store := NewKeyringStore("guest")
	assert.Equal(t, "keychain:guestctl/guest", store.Location())

	_, err := store.Load()
	require.ErrorIs(t, err, ErrNoCredential)

	cred := &Credential{AccessToken: "kc-token", ExpiresIn: 300, ExpiresAt: 1_800_000_000, TokenType: "Bearer"}
	require.NoError(t, store.Save(cred))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, cred, loaded)

	other, err := NewKeyringStore("staging").Load()
	require.ErrorIs(t, err, ErrNoCredential)
	assert.Nil(t, other)

	require.NoError(t, store.Delete())
	require.NoError(t, store.Delete())
	_, err = store.Load()
	require.ErrorIs(t, err, ErrNoCredential)
}

func TestKeyringStoreMalformed(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keyring.Set(KeyringService, "broken", "garbage"))

	_, err := NewKeyringStore("broken").Load()
	require.ErrorIs(t, err, ErrMalformedStore)
}
