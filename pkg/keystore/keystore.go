// Package keystore defines a small secret-storage capability used by the
// mobile central driver simulator to persist its provisioned device key
// material between runs. Grounded on the hex-key-file convention the
// teacher uses for NFC key material, generalized to a labeled
// Load/Store/Erase interface so a real mobile OS keychain can be
// substituted later without touching caller code.
package keystore

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// KeyStore loads, persists, and erases opaque secrets by label.
type KeyStore interface {
	Load(label string) ([]byte, error)
	Store(label string, secret []byte) error
	Erase(label string) error
}

// FileStore is a KeyStore backed by one hex-encoded file per label in a
// directory, matching this codebase's existing .hex key file convention.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(label string) string {
	return filepath.Join(f.dir, label+".hex")
}

func (f *FileStore) Load(label string) ([]byte, error) {
	content, err := os.ReadFile(f.path(label))
	if err != nil {
		return nil, err
	}
	line := strings.TrimSpace(string(content))
	secret, err := hex.DecodeString(line)
	if err != nil {
		return nil, fmt.Errorf("keystore %q: invalid hex: %w", label, err)
	}
	return secret, nil
}

func (f *FileStore) Store(label string, secret []byte) error {
	line := hex.EncodeToString(secret) + "\n"
	return os.WriteFile(f.path(label), []byte(line), 0o600)
}

func (f *FileStore) Erase(label string) error {
	err := os.Remove(f.path(label))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
