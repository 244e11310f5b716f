package doorproto

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"
)

func signCredential(t *testing.T, priv ed25519.PrivateKey, c CredentialA) CredentialA {
	t.Helper()
	sig := ed25519.Sign(priv, c.CanonicalBytes())
	copy(c.Signature[:], sig)
	return c
}

func baseCredential() CredentialA {
	c := CredentialA{DoorID: "front-door", GracePeriod: 5 * time.Minute}
	c.CredentialID[0] = 0xAA
	c.DevicePubKey[0] = 0x04
	for i := 1; i < 65; i++ {
		c.DevicePubKey[i] = byte(i)
	}
	c.RevocationRef[0] = 0xBB
	c.NotBefore = time.Unix(1_700_000_000, 0).UTC()
	c.NotAfter = time.Unix(1_700_003_600, 0).UTC()
	return c
}

func TestCredentialARoundTrip(t *testing.T) {
	c := baseCredential()
	raw := EncodeCredentialA(c)
	got, err := DecodeCredentialA(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.CredentialID != c.CredentialID || got.DevicePubKey != c.DevicePubKey ||
		got.DoorID != c.DoorID || !got.NotBefore.Equal(c.NotBefore) || !got.NotAfter.Equal(c.NotAfter) ||
		got.GracePeriod != c.GracePeriod || got.RevocationRef != c.RevocationRef {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, c)
	}
}

func TestDecodeCredentialARejectsTruncated(t *testing.T) {
	c := baseCredential()
	raw := EncodeCredentialA(c)
	if _, err := DecodeCredentialA(raw[:len(raw)-1]); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestCredentialVerifierHappyPath(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	c := signCredential(t, priv, baseCredential())
	now := time.Unix(1_700_000_100, 0).UTC()
	v := &CredentialVerifier{
		SignerPub:   pub,
		DoorAliases: map[string]bool{"front-door": true},
		Now:         func() time.Time { return now },
	}
	grant, err := v.Verify(EncodeCredentialA(c), c.DevicePubKey[:])
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if grant.DoorID != "front-door" || grant.CredentialID != c.CredentialID {
		t.Fatalf("unexpected grant: %+v", grant)
	}
}

func TestCredentialVerifierRejectsBadSignature(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	c := signCredential(t, priv, baseCredential())
	c.DoorID = "tampered-after-signing"
	v := &CredentialVerifier{SignerPub: pub, Now: func() time.Time { return time.Unix(1_700_000_100, 0) }}
	if _, err := v.Verify(EncodeCredentialA(c), c.DevicePubKey[:]); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestCredentialVerifierNotYetValid(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	c := signCredential(t, priv, baseCredential())
	v := &CredentialVerifier{SignerPub: pub, Now: func() time.Time { return time.Unix(1_699_999_000, 0) }}
	if _, err := v.Verify(EncodeCredentialA(c), c.DevicePubKey[:]); !errors.Is(err, ErrNotYetValid) {
		t.Fatalf("expected ErrNotYetValid, got %v", err)
	}
}

func TestCredentialVerifierExpiredBeyondGrace(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	c := signCredential(t, priv, baseCredential())
	afterGrace := c.NotAfter.Add(c.GracePeriod).Add(time.Second)
	v := &CredentialVerifier{SignerPub: pub, Now: func() time.Time { return afterGrace }}
	if _, err := v.Verify(EncodeCredentialA(c), c.DevicePubKey[:]); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestCredentialVerifierWithinGraceStillAccepted(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	c := signCredential(t, priv, baseCredential())
	withinGrace := c.NotAfter.Add(c.GracePeriod / 2)
	v := &CredentialVerifier{
		SignerPub:   pub,
		DoorAliases: map[string]bool{"front-door": true},
		Now:         func() time.Time { return withinGrace },
	}
	if _, err := v.Verify(EncodeCredentialA(c), c.DevicePubKey[:]); err != nil {
		t.Fatalf("expected grace-period credential to verify, got %v", err)
	}
}

func TestCredentialVerifierWrongDoor(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	c := signCredential(t, priv, baseCredential())
	v := &CredentialVerifier{
		SignerPub:   pub,
		DoorAliases: map[string]bool{"back-door": true},
		Now:         func() time.Time { return time.Unix(1_700_000_100, 0) },
	}
	if _, err := v.Verify(EncodeCredentialA(c), c.DevicePubKey[:]); !errors.Is(err, ErrWrongDoor) {
		t.Fatalf("expected ErrWrongDoor, got %v", err)
	}
}

func TestCredentialVerifierRejectsMismatchedSessionBinding(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	c := signCredential(t, priv, baseCredential())
	otherPubM := make([]byte, 65)
	otherPubM[0] = 0x04
	otherPubM[1] = 0xFF // differs from c.DevicePubKey
	v := &CredentialVerifier{
		SignerPub:   pub,
		DoorAliases: map[string]bool{"front-door": true},
		Now:         func() time.Time { return time.Unix(1_700_000_100, 0) },
	}
	if _, err := v.Verify(EncodeCredentialA(c), otherPubM); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed on session-binding mismatch, got %v", err)
	}
}

func TestCredentialVerifierAllowsNilSessionBindingForSymmetricVariant(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	c := signCredential(t, priv, baseCredential())
	v := &CredentialVerifier{
		SignerPub:   pub,
		DoorAliases: map[string]bool{"front-door": true},
		Now:         func() time.Time { return time.Unix(1_700_000_100, 0) },
	}
	if _, err := v.Verify(EncodeCredentialA(c), nil); err != nil {
		t.Fatalf("expected nil sessionPubM to skip binding check, got %v", err)
	}
}

type fakeRevocation struct{ revoked map[[16]byte]bool }

func (f fakeRevocation) IsRevoked(ref [16]byte) bool { return f.revoked[ref] }

func TestCredentialVerifierRevoked(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	c := signCredential(t, priv, baseCredential())
	v := &CredentialVerifier{
		SignerPub:   pub,
		DoorAliases: map[string]bool{"front-door": true},
		Revocation:  fakeRevocation{revoked: map[[16]byte]bool{c.RevocationRef: true}},
		Now:         func() time.Time { return time.Unix(1_700_000_100, 0) },
	}
	if _, err := v.Verify(EncodeCredentialA(c), c.DevicePubKey[:]); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked, got %v", err)
	}
}

type fakeAllowlist struct{ present map[[16]byte]CredentialA }

func (f fakeAllowlist) Get(id [16]byte) (CredentialA, bool) {
	c, ok := f.present[id]
	return c, ok
}

func TestCredentialVerifierRejectsCredentialNotInAllowlist(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	c := signCredential(t, priv, baseCredential())
	v := &CredentialVerifier{
		SignerPub:   pub,
		DoorAliases: map[string]bool{"front-door": true},
		Allowlist:   fakeAllowlist{present: map[[16]byte]CredentialA{}},
		Now:         func() time.Time { return time.Unix(1_700_000_100, 0) },
	}
	if _, err := v.Verify(EncodeCredentialA(c), c.DevicePubKey[:]); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}
}

func TestCredentialVerifierAcceptsCredentialInAllowlist(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	c := signCredential(t, priv, baseCredential())
	v := &CredentialVerifier{
		SignerPub:   pub,
		DoorAliases: map[string]bool{"front-door": true},
		Allowlist:   fakeAllowlist{present: map[[16]byte]CredentialA{c.CredentialID: c}},
		Now:         func() time.Time { return time.Unix(1_700_000_100, 0) },
	}
	if _, err := v.Verify(EncodeCredentialA(c), c.DevicePubKey[:]); err != nil {
		t.Fatalf("expected allowlisted credential to verify, got %v", err)
	}
}

type fakePermission struct{ allow bool }

func (f fakePermission) Allowed(CredentialA) bool { return f.allow }

func TestCredentialVerifierPermissionDenied(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	c := signCredential(t, priv, baseCredential())
	v := &CredentialVerifier{
		SignerPub:   pub,
		DoorAliases: map[string]bool{"front-door": true},
		Permission:  fakePermission{allow: false},
		Now:         func() time.Time { return time.Unix(1_700_000_100, 0) },
	}
	if _, err := v.Verify(EncodeCredentialA(c), c.DevicePubKey[:]); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestCredentialBRoundTrip(t *testing.T) {
	var c CredentialB
	c.Length = CredentialBSize
	c.Identifier = 7
	for i := range c.DeviceUID {
		c.DeviceUID[i] = byte(i + 1)
	}
	for i := range c.Token {
		c.Token[i] = byte(i)
	}
	for i := range c.Value {
		c.Value[i] = byte(i % 256)
	}
	raw := EncodeCredentialB(c)
	if len(raw) != CredentialBSize {
		t.Fatalf("encoded length = %d, want %d", len(raw), CredentialBSize)
	}
	got, err := DecodeCredentialB(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Length != c.Length || got.Identifier != c.Identifier || got.DeviceUID != c.DeviceUID ||
		got.Token != c.Token || !bytes.Equal(got.Value[:], c.Value[:]) {
		t.Fatalf("round trip mismatch")
	}
}

func TestDecodeCredentialBRejectsWrongSize(t *testing.T) {
	if _, err := DecodeCredentialB(make([]byte, CredentialBSize-1)); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}
