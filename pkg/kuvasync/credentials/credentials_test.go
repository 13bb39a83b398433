package credentials

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/gallery"
)

func TestStore_SetGetDelete(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring(nil))

	_, err := s.Get(DefaultKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(DefaultKey, "pw"))
	got, err := s.Get(DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, "pw", got)

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultKey}, keys)

	require.NoError(t, s.Delete(DefaultKey))
	assert.ErrorIs(t, s.Delete(DefaultKey), ErrNotFound)
}

func TestResolver_Order(t *testing.T) {
	folder := gallery.Folder{ID: "7", Path: "/secret/", Protected: true}
	store := NewStore(keyring.NewArrayKeyring(nil))
	env := map[string]string{}
	r := &Resolver{
		Env:    DefaultEnv,
		Store:  store,
		Getenv: func(k string) string { return env[k] },
	}

	_, ok := r.Password(folder)
	assert.False(t, ok)
	assert.False(t, r.Available())

	require.NoError(t, store.Set(DefaultKey, "fallback"))
	pw, ok := r.Password(folder)
	require.True(t, ok)
	assert.Equal(t, "fallback", pw)

	require.NoError(t, store.Set(FolderKey("7"), "specific"))
	pw, _ = r.Password(folder)
	assert.Equal(t, "specific", pw)

	env[DefaultEnv] = "from-env"
	pw, _ = r.Password(folder)
	assert.Equal(t, "from-env", pw)
	assert.True(t, r.Available())
}

func TestResolver_EnvOnly(t *testing.T) {
	r := &Resolver{Env: "PW", Getenv: func(string) string { return "" }}
	_, ok := r.Password(gallery.Folder{ID: "1"})
	assert.False(t, ok)
}

func TestOpen_UsesKeyringConfig(t *testing.T) {
	orig := openKeyringFunc
	t.Cleanup(func() { openKeyringFunc = orig })

	var got keyring.Config
	openKeyringFunc = func(cfg keyring.Config) (keyring.Keyring, error) {
		got = cfg
		return keyring.NewArrayKeyring(nil), nil
	}

	s, err := Open("")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, DefaultService, got.ServiceName)

	openKeyringFunc = func(keyring.Config) (keyring.Keyring, error) {
		return nil, errors.New("no backend")
	}
	_, err = Open("x")
	assert.Error(t, err)
}
