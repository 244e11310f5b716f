package doorproto

import (
	"crypto/ed25519"
	"encoding/binary"
	"time"
)

// CredentialA is the Variant-A self-contained backend-issued token (spec
// §3). The canonical signing bytes (see CanonicalBytes) are a fixed-width,
// big-endian encoding with one length-prefixed variable field — an Open
// Question in spec §9 this repository resolves explicitly, see DESIGN.md.
type CredentialA struct {
	CredentialID  [16]byte
	DevicePubKey  [65]byte // uncompressed P-256 point, must start 0x04
	DoorID        string
	NotBefore     time.Time
	NotAfter      time.Time
	GracePeriod   time.Duration
	RevocationRef [16]byte
	Signature     [64]byte // Ed25519 detached signature by the issuing authority
}

// CanonicalBytes returns the exact byte sequence the issuing authority signs
// and the verifier re-derives: CredentialID(16) | DevicePubKey(65) |
// len(DoorID)(2 BE) + DoorID | NotBefore unix seconds (8 BE) | NotAfter unix
// seconds (8 BE) | GracePeriod seconds (8 BE) | RevocationRef(16).
func (c CredentialA) CanonicalBytes() []byte {
	doorID := []byte(c.DoorID)
	out := make([]byte, 0, 16+65+2+len(doorID)+8+8+8+16)
	out = append(out, c.CredentialID[:]...)
	out = append(out, c.DevicePubKey[:]...)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(doorID)))
	out = append(out, lenBuf[:]...)
	out = append(out, doorID...)
	out = appendInt64BE(out, c.NotBefore.Unix())
	out = appendInt64BE(out, c.NotAfter.Unix())
	out = appendInt64BE(out, int64(c.GracePeriod/time.Second))
	out = append(out, c.RevocationRef[:]...)
	return out
}

func appendInt64BE(out []byte, v int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return append(out, b[:]...)
}

// EncodeCredentialA serializes a credential record (canonical bytes plus the
// trailing signature) for transport inside an AuthFrame's encrypted payload.
func EncodeCredentialA(c CredentialA) []byte {
	return append(c.CanonicalBytes(), c.Signature[:]...)
}

// DecodeCredentialA parses a serialized credential record. Structural
// failures map to ErrInvalidCredential per spec §4.5 step 1.
func DecodeCredentialA(b []byte) (CredentialA, error) {
	var c CredentialA
	const fixedMin = 16 + 65 + 2 + 8 + 8 + 8 + 16 + 64
	if len(b) < fixedMin {
		return c, wrap(ErrInvalidCredential, nil)
	}
	off := 0
	copy(c.CredentialID[:], b[off:off+16])
	off += 16
	copy(c.DevicePubKey[:], b[off:off+65])
	off += 65
	doorLen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if off+doorLen+8+8+8+16+64 != len(b) {
		return c, wrap(ErrInvalidCredential, nil)
	}
	c.DoorID = string(b[off : off+doorLen])
	off += doorLen
	c.NotBefore = time.Unix(int64(binary.BigEndian.Uint64(b[off:off+8])), 0).UTC()
	off += 8
	c.NotAfter = time.Unix(int64(binary.BigEndian.Uint64(b[off:off+8])), 0).UTC()
	off += 8
	c.GracePeriod = time.Duration(int64(binary.BigEndian.Uint64(b[off:off+8]))) * time.Second
	off += 8
	copy(c.RevocationRef[:], b[off:off+16])
	off += 16
	copy(c.Signature[:], b[off:off+64])
	return c, nil
}

// RevocationChecker reports whether a revocation reference has been revoked.
type RevocationChecker interface {
	IsRevoked(ref [16]byte) bool
}

// PermissionChecker reports whether a credential's bound action (unlock) is
// permitted, beyond mere validity (spec §4.5 step 8).
type PermissionChecker interface {
	Allowed(c CredentialA) bool
}

// AllowlistChecker reports whether a credential ID is present in the
// peripheral's cached allowlist (spec §3, §6). *CredentialStore implements
// this directly.
type AllowlistChecker interface {
	Get(id [16]byte) (CredentialA, bool)
}

// Grant is the credential verifier's success output (spec §4.5).
type Grant struct {
	CredentialID [16]byte
	DoorID       string
	GrantedAt    time.Time
}

// CredentialVerifier implements the 8-step validation pipeline of spec §4.5,
// short-circuiting on the first failure.
type CredentialVerifier struct {
	SignerPub   ed25519.PublicKey
	DoorAliases map[string]bool // the intercom's configured ID plus aliases
	Allowlist   AllowlistChecker
	Revocation  RevocationChecker
	Permission  PermissionChecker
	Now         func() time.Time
}

func (v *CredentialVerifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// Verify runs the credential pipeline against the session's authenticated
// PubM, so a credential minted for a different device key can never be
// replayed onto another session (spec §4.5 step 6, §8 credential-binding
// invariant).
func (v *CredentialVerifier) Verify(raw []byte, sessionPubM []byte) (Grant, error) {
	c, err := DecodeCredentialA(raw)
	if err != nil {
		return Grant{}, err
	}

	if !ed25519Verify(v.SignerPub, c.CanonicalBytes(), c.Signature[:]) {
		return Grant{}, wrap(ErrAuthFailed, nil)
	}

	now := v.now()
	if now.Before(c.NotBefore) {
		return Grant{}, wrap(ErrNotYetValid, nil)
	}
	if now.After(c.NotAfter.Add(c.GracePeriod)) {
		return Grant{}, wrap(ErrExpired, nil)
	}

	if v.DoorAliases != nil && !v.DoorAliases[c.DoorID] {
		return Grant{}, wrap(ErrWrongDoor, nil)
	}

	if v.Allowlist != nil {
		if _, ok := v.Allowlist.Get(c.CredentialID); !ok {
			return Grant{}, wrap(ErrUnknownDevice, nil)
		}
	}

	// sessionPubM is nil for variants with no per-session ECDH public key to
	// bind against (e.g. SymmetricDemo, where authenticity instead rests on
	// the AES-CMAC frame MAC and this signature).
	if sessionPubM != nil && (len(sessionPubM) != 65 || string(c.DevicePubKey[:]) != string(sessionPubM)) {
		return Grant{}, wrap(ErrAuthFailed, nil)
	}

	if v.Revocation != nil && v.Revocation.IsRevoked(c.RevocationRef) {
		return Grant{}, wrap(ErrRevoked, nil)
	}

	if v.Permission != nil && !v.Permission.Allowed(c) {
		return Grant{}, wrap(ErrPermissionDenied, nil)
	}

	return Grant{CredentialID: c.CredentialID, DoorID: c.DoorID, GrantedAt: now}, nil
}

// CredentialB is the Variant-B 372-byte provisioned structure: length(2) |
// identifier(2) | device_uid(8) | token(32) | value(330, encrypted w/ KCD).
type CredentialB struct {
	Length     uint16
	Identifier uint16
	DeviceUID  [8]byte
	Token      [32]byte
	Value      [330]byte // ciphertext, encrypted under KCD
}

const CredentialBSize = 2 + 2 + 8 + 32 + 330 // 374; Length/Identifier are self-describing header fields

// EncodeCredentialB serializes a CredentialB to its fixed 374-byte wire form.
func EncodeCredentialB(c CredentialB) []byte {
	out := make([]byte, 0, CredentialBSize)
	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], c.Length)
	out = append(out, u16[:]...)
	binary.BigEndian.PutUint16(u16[:], c.Identifier)
	out = append(out, u16[:]...)
	out = append(out, c.DeviceUID[:]...)
	out = append(out, c.Token[:]...)
	out = append(out, c.Value[:]...)
	return out
}

// DecodeCredentialB parses the fixed 374-byte CredentialB wire form.
func DecodeCredentialB(b []byte) (CredentialB, error) {
	var c CredentialB
	if len(b) != CredentialBSize {
		return c, wrap(ErrInvalidCredential, nil)
	}
	c.Length = binary.BigEndian.Uint16(b[0:2])
	c.Identifier = binary.BigEndian.Uint16(b[2:4])
	copy(c.DeviceUID[:], b[4:12])
	copy(c.Token[:], b[12:44])
	copy(c.Value[:], b[44:374])
	return c, nil
}
