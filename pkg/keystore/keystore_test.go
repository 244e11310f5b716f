package keystore

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")
	fs, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	secret := []byte{0xde, 0xad, 0xbe, 0xef}
	if err := fs.Store("device-key", secret); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, err := fs.Load("device-key")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, secret) {
		t.Fatalf("expected %x, got %x", secret, got)
	}
}

func TestFileStoreEraseIsIdempotent(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := fs.Erase("never-stored"); err != nil {
		t.Fatalf("Erase on missing label should not error, got %v", err)
	}
}

func TestFileStoreLoadMissingReturnsError(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := fs.Load("missing"); err == nil {
		t.Fatal("expected error loading missing label")
	}
}
