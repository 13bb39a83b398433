// Package credentials supplies folder passwords from the environment and
// the OS keyring.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
	"github.com/adrg/xdg"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/gallery"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/logging"
)

// DefaultEnv is the environment variable holding the gallery password.
const DefaultEnv = "KUVATFI_PASSWORD"

// DefaultService is the keyring service name.
const DefaultService = "kuvasync"

// DefaultKey is the keyring entry used for every protected folder that has
// no entry of its own.
const DefaultKey = "default"

// ErrNotFound is returned when no password is stored under a key.
var ErrNotFound = errors.New("password not found")

// FolderKey returns the keyring key of a folder-specific password.
func FolderKey(id gallery.FolderID) string {
	return "folder:" + string(id)
}

// Store keeps passwords in a keyring.
type Store struct {
	ring keyring.Keyring
}

var openKeyringFunc = keyring.Open

// Open opens the keyring for service. The file backend, used where no OS
// keyring exists, prompts for its passphrase on the terminal.
func Open(service string) (*Store, error) {
	if service == "" {
		service = DefaultService
	}
	ring, err := openKeyringFunc(keyring.Config{
		ServiceName:      service,
		FileDir:          filepath.Join(xdg.DataHome, "kuvasync", "keyring"),
		FilePasswordFunc: keyring.TerminalPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return &Store{ring: ring}, nil
}

// NewStore wraps an already opened keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Set stores password under key.
func (s *Store) Set(key, password string) error {
	if err := s.ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(password),
		Label:       "kuvasync " + key,
		Description: "gallery folder password",
	}); err != nil {
		return fmt.Errorf("store password: %w", err)
	}
	return nil
}

// Get returns the password stored under key.
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(item.Data), nil
}

// Delete removes the password stored under key.
func (s *Store) Delete(key string) error {
	if _, err := s.ring.Get(key); errors.Is(err, keyring.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err := s.ring.Remove(key); err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) || os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete password: %w", err)
	}
	return nil
}

// Keys lists the stored keys.
func (s *Store) Keys() ([]string, error) {
	keys, err := s.ring.Keys()
	if err != nil {
		return nil, fmt.Errorf("list keyring: %w", err)
	}
	return keys, nil
}

// Resolver looks up folder passwords. The environment variable wins; the
// keyring is consulted for a folder-specific entry and then the default
// entry.
type Resolver struct {
	// Env names the environment variable. Empty disables it.
	Env string

	// Store is optional.
	Store *Store

	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Password implements mirror.PasswordSource.
func (r *Resolver) Password(folder gallery.Folder) (string, bool) {
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if r.Env != "" {
		if pw := getenv(r.Env); pw != "" {
			return pw, true
		}
	}
	if r.Store == nil {
		return "", false
	}

	log := logging.Get("credentials")
	for _, key := range []string{FolderKey(folder.ID), DefaultKey} {
		pw, err := r.Store.Get(key)
		switch {
		case err == nil:
			return pw, true
		case errors.Is(err, ErrNotFound):
		default:
			log.Warn("keyring lookup failed", "key", key, "error", err)
		}
	}
	return "", false
}

// Available reports whether any password source is configured, so callers
// can warn once before a run.
func (r *Resolver) Available() bool {
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if r.Env != "" && getenv(r.Env) != "" {
		return true
	}
	if r.Store == nil {
		return false
	}
	keys, err := r.Store.Keys()
	return err == nil && len(keys) > 0
}
