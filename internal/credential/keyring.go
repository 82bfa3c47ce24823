// Package credential keeps secrets, such as the list directory password,
// in the system keyring.
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "listarchive"

// ErrNotFound is returned by Get when no secret is stored under a key.
var ErrNotFound = keyring.ErrKeyNotFound

// open is replaced in tests.
var open = openKeyring

// openKeyring opens the platform keyring, falling back to an encrypted
// file under the user config directory.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/" + serviceName + "/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt(serviceName + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// withRing opens the keyring and runs fn on it, wrapping fn's error with
// the operation and key.
func withRing(op, key string, fn func(keyring.Keyring) error) error {
	ring, err := open()
	if err != nil {
		return err
	}
	if err := fn(ring); err != nil {
		return fmt.Errorf("%s credential %q: %w", op, key, err)
	}
	return nil
}

// Get returns the secret stored under key, or an error wrapping
// ErrNotFound.
func Get(key string) (string, error) {
	var secret string
	err := withRing("getting", key, func(ring keyring.Keyring) error {
		item, err := ring.Get(key)
		secret = string(item.Data)
		return err
	})
	return secret, err
}

// Set stores value under key, replacing any previous secret.
func Set(key, value string) error {
	return withRing("setting", key, func(ring keyring.Keyring) error {
		return ring.Set(keyring.Item{
			Key:         key,
			Data:        []byte(value),
			Label:       serviceName + " " + key,
			Description: "listarchive credential",
		})
	})
}

// Delete removes the secret stored under key. Deleting a missing key is
// not an error.
func Delete(key string) error {
	return withRing("deleting", key, func(ring keyring.Keyring) error {
		if err := ring.Remove(key); !errors.Is(err, keyring.ErrKeyNotFound) {
			return err
		}
		return nil
	})
}

// Resolve returns value when it is set, else the secret stored under key.
// An empty key with an empty value resolves to "".
func Resolve(value, key string) (string, error) {
	if value != "" || key == "" {
		return value, nil
	}
	secret, err := Get(key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return secret, err
}
