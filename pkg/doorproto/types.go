package doorproto

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"time"
)

// Phase is a peripheral session's position in the authentication state
// machine (spec §3).
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseNonceIssued
	PhaseAwaitAuth
	PhaseAuthenticatedOrReject
	PhaseCredentialAccepted
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseNonceIssued:
		return "NonceIssued"
	case PhaseAwaitAuth:
		return "AwaitAuth"
	case PhaseAuthenticatedOrReject:
		return "AuthenticatedOrReject"
	case PhaseCredentialAccepted:
		return "CredentialAccepted"
	case PhaseDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Direction distinguishes the two sequence-number streams a session tracks.
type Direction int

const (
	DirMobileToIntercom Direction = iota
	DirIntercomToMobile
)

// DoorState is the 1-byte door-state code carried in a Variant-A response
// body (spec §6).
type DoorState byte

const (
	DoorStateUnknown  DoorState = 0x00
	DoorStateLocked   DoorState = 0x01
	DoorStateUnlocked DoorState = 0x02
	DoorStateAjar     DoorState = 0x03
	DoorStateForced   DoorState = 0x04
)

// NonceLifetime is the hard bound on how long an issued Challenge nonce may
// be outstanding before it is invalidated (spec §4.3).
const NonceLifetime = 30 * time.Second

// ActuatorTimeout bounds the door-strike actuation suspension point (spec §5).
const ActuatorTimeout = 2 * time.Second

// Variant is the tagged sum of supported protocol variants (spec §9's
// re-architecture note: a tagged sum dispatched by a single handler rather
// than ad hoc polymorphism).
type Variant interface {
	variantName() string
}

// EcdhGcm is Variant A: per-session ECDH P-256 + HKDF-SHA-256 + AES-256-GCM,
// bound to a backend-signed credential.
type EcdhGcm struct {
	PrivI     *ecdh.PrivateKey  // intercom's long-lived P-256 private key
	PubI      *ecdh.PublicKey   // intercom's long-lived P-256 public key
	SignerPub ed25519.PublicKey // issuing authority's public key
}

func (EcdhGcm) variantName() string { return "EcdhGcm" }

// DiversifiedKeyProvider resolves the per-device symmetric key DK used by
// DiversifiedCbc, independent of whether the reader stores a master key or
// a table of pre-provisioned diversified keys (spec §9 open question).
type DiversifiedKeyProvider interface {
	DeviceKey(duid []byte) ([16]byte, error)
}

// DiversifiedCbc is Variant B: a pre-provisioned AES-128 device key (DK) used
// in a two-round AES-ECB/CBC challenge-response.
type DiversifiedCbc struct {
	Keys DiversifiedKeyProvider
}

func (DiversifiedCbc) variantName() string { return "DiversifiedCbc" }

// SymmetricDemo is the simpler single-round variant: DK is derived from a
// master key and the mobile's DeviceID via HKDF-SHA-256.
type SymmetricDemo struct {
	Master [16]byte
}

func (SymmetricDemo) variantName() string { return "SymmetricDemo" }
