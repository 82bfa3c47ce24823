package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useArrayKeyring(t *testing.T) {
	t.Helper()
	ring := keyring.NewArrayKeyring(nil)
	prev := open
	open = func() (keyring.Keyring, error) { return ring, nil }
	t.Cleanup(func() { open = prev })
}

func TestSetGetDelete(t *testing.T) {
	useArrayKeyring(t)

	require.NoError(t, Set("directory-password", "s3cret"))
	got, err := Get("directory-password")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	require.NoError(t, Delete("directory-password"))
	_, err = Get("directory-password")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorContains(t, err, `getting credential "directory-password"`)
}

// strictRing reports missing keys on Remove like the platform backends.
type strictRing struct{ *keyring.ArrayKeyring }

func (r strictRing) Remove(key string) error {
	if _, err := r.Get(key); err != nil {
		return err
	}
	return r.ArrayKeyring.Remove(key)
}

func TestDeleteMissingKey(t *testing.T) {
	ring := strictRing{keyring.NewArrayKeyring(nil)}
	prev := open
	open = func() (keyring.Keyring, error) { return ring, nil }
	t.Cleanup(func() { open = prev })

	assert.NoError(t, Delete("never-stored"))

	require.NoError(t, Set("directory-password", "s3cret"))
	item, err := ring.Get("directory-password")
	require.NoError(t, err)
	assert.Equal(t, "listarchive directory-password", item.Label)
	require.NoError(t, Delete("directory-password"))
}

func TestOpenFailure(t *testing.T) {
	prev := open
	open = func() (keyring.Keyring, error) { return nil, errors.New("no backend") }
	t.Cleanup(func() { open = prev })

	_, err := Get("directory-password")
	assert.EqualError(t, err, "no backend")
	_, err = Resolve("", "directory-password")
	assert.Error(t, err)
	got, err := Resolve("inline", "directory-password")
	require.NoError(t, err)
	assert.Equal(t, "inline", got)
}

func TestResolve(t *testing.T) {
	useArrayKeyring(t)

	got, err := Resolve("inline", "directory-password")
	require.NoError(t, err)
	assert.Equal(t, "inline", got)

	got, err = Resolve("", "directory-password")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, Set("directory-password", "stored"))
	got, err = Resolve("", "directory-password")
	require.NoError(t, err)
	assert.Equal(t, "stored", got)
}
