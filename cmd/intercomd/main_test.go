package main

import (
	"encoding/hex"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/barnettlynn/doorlink/internal/backendclient"
	"github.com/barnettlynn/doorlink/internal/cacherefresh"
	"github.com/barnettlynn/doorlink/pkg/doorproto"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func hexRecord(credentialID, revocationRef byte) backendclient.CredentialRecord {
	var id, ref [16]byte
	id[0], ref[0] = credentialID, revocationRef
	return backendclient.CredentialRecord{
		CredentialID:  hex.EncodeToString(id[:]),
		DevicePubKey:  "04" + strings.Repeat("ab", 64),
		DoorID:        "front-door",
		NotBefore:     time.Unix(1_700_000_000, 0).Unix(),
		NotAfter:      time.Unix(1_700_003_600, 0).Unix(),
		GracePeriod:   60,
		RevocationRef: hex.EncodeToString(ref[:]),
		Signature:     strings.Repeat("cd", 64),
	}
}

func TestReloadHandlerDispatchesReload(t *testing.T) {
	credStore := doorproto.NewCredentialStore()
	defer credStore.Close()
	engine := doorproto.NewPeripheralEngine(doorproto.EngineConfig{CredentialStore: credStore})
	h := reloadHandler{engine: engine, logger: discardLogger()}

	rec := hexRecord(0x07, 0x09)
	h.OnReload(cacherefresh.Notification{Type: "reload", AllowlistEntries: []backendclient.CredentialRecord{rec}})

	var id [16]byte
	id[0] = 0x07
	if _, ok := credStore.Get(id); !ok {
		t.Fatal("expected reload notification to populate the allowlist cache")
	}
}

func TestReloadHandlerDispatchesReloadReplacesExistingEntries(t *testing.T) {
	credStore := doorproto.NewCredentialStore()
	defer credStore.Close()
	engine := doorproto.NewPeripheralEngine(doorproto.EngineConfig{CredentialStore: credStore})
	h := reloadHandler{engine: engine, logger: discardLogger()}

	h.OnReload(cacherefresh.Notification{Type: "reload", AllowlistEntries: []backendclient.CredentialRecord{hexRecord(0x01, 0x01)}})
	h.OnReload(cacherefresh.Notification{Type: "reload", AllowlistEntries: []backendclient.CredentialRecord{hexRecord(0x02, 0x02)}})

	var old [16]byte
	old[0] = 0x01
	if _, ok := credStore.Get(old); ok {
		t.Fatal("expected a fresh reload to replace the prior allowlist contents")
	}
	var fresh [16]byte
	fresh[0] = 0x02
	if _, ok := credStore.Get(fresh); !ok {
		t.Fatal("expected the latest reload's entry to be present")
	}
}

func TestReloadHandlerDispatchesRevoke(t *testing.T) {
	credStore := doorproto.NewCredentialStore()
	defer credStore.Close()
	engine := doorproto.NewPeripheralEngine(doorproto.EngineConfig{CredentialStore: credStore})
	h := reloadHandler{engine: engine, logger: discardLogger()}

	rec := hexRecord(0x07, 0x09)
	c, err := credentialAFromRecord(rec)
	if err != nil {
		t.Fatalf("credentialAFromRecord: %v", err)
	}
	credStore.Put(c, time.Unix(1_700_000_100, 0))

	h.OnReload(cacherefresh.Notification{Type: "revoke", CredentialID: rec.CredentialID, Revoked: true})

	if !credStore.IsRevoked(c.RevocationRef) {
		t.Fatal("expected revoke notification to mark the credential's RevocationRef revoked")
	}
	if _, ok := credStore.Get(c.CredentialID); ok {
		t.Fatal("expected revoke notification to evict the credential from the allowlist cache")
	}
}

func TestReloadHandlerIgnoresUnrecognizedType(t *testing.T) {
	credStore := doorproto.NewCredentialStore()
	defer credStore.Close()
	engine := doorproto.NewPeripheralEngine(doorproto.EngineConfig{CredentialStore: credStore})
	h := reloadHandler{engine: engine, logger: discardLogger()}

	// Must not panic on an unknown notification type.
	h.OnReload(cacherefresh.Notification{Type: "mystery"})
}
