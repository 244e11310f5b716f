package doorproto

import (
	"testing"
	"time"
)

func testCredential(idByte byte) CredentialA {
	c := CredentialA{DoorID: "front-door", GracePeriod: time.Minute}
	c.CredentialID[0] = idByte
	c.DevicePubKey[0] = 0x04
	c.NotBefore = time.Unix(1_700_000_000, 0)
	c.NotAfter = time.Unix(1_700_003_600, 0)
	return c
}

func TestCredentialStorePutGet(t *testing.T) {
	s := NewCredentialStore()
	defer s.Close()

	c := testCredential(0x01)
	now := time.Unix(1_700_000_100, 0)
	s.Put(c, now)

	got, ok := s.Get(c.CredentialID)
	if !ok {
		t.Fatal("expected credential to be found after Put")
	}
	if got.DoorID != c.DoorID {
		t.Fatalf("got DoorID %q, want %q", got.DoorID, c.DoorID)
	}

	var missing [16]byte
	missing[0] = 0xFF
	if _, ok := s.Get(missing); ok {
		t.Fatal("expected lookup of an unknown credential id to miss")
	}
}

func TestCredentialStoreReloadAllowlistIsAtomicReplace(t *testing.T) {
	s := NewCredentialStore()
	defer s.Close()

	now := time.Unix(1_700_000_100, 0)
	old := testCredential(0x01)
	s.Put(old, now)

	fresh := testCredential(0x02)
	s.ReloadAllowlist([]CredentialA{fresh}, now)

	if _, ok := s.Get(old.CredentialID); ok {
		t.Fatal("expected the pre-reload credential to be gone after ReloadAllowlist")
	}
	if _, ok := s.Get(fresh.CredentialID); !ok {
		t.Fatal("expected the reloaded credential to be present")
	}
}

func TestCredentialStoreEvict(t *testing.T) {
	s := NewCredentialStore()
	defer s.Close()

	c := testCredential(0x01)
	now := time.Unix(1_700_000_100, 0)
	s.Put(c, now)

	if _, ok := s.Get(c.CredentialID); !ok {
		t.Fatal("expected credential to be found after Put")
	}
	s.Evict(c.CredentialID)
	if _, ok := s.Get(c.CredentialID); ok {
		t.Fatal("expected credential to be gone after Evict")
	}
}

func TestCredentialStoreRevocation(t *testing.T) {
	s := NewCredentialStore()
	defer s.Close()

	var ref [16]byte
	ref[0] = 0x42
	if s.IsRevoked(ref) {
		t.Fatal("expected not revoked before SetRevoked")
	}
	s.SetRevoked(ref, true)
	if !s.IsRevoked(ref) {
		t.Fatal("expected revoked after SetRevoked(true)")
	}
	s.SetRevoked(ref, false)
	if s.IsRevoked(ref) {
		t.Fatal("expected not revoked after SetRevoked(false)")
	}
}
