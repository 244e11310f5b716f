// Package doorproto implements the cryptographic BLE protocol engine for a
// door-unlock intercom peripheral: frame codec, crypto primitives adapter,
// per-connection session manager, challenge engine, credential verifier, and
// error/status mapping. The package is transport-agnostic above ATT — it
// never imports a BLE stack, it only encodes/decodes the byte strings a GATT
// characteristic write or notify would carry.
//
// Three protocol variants share this engine:
//
//   - EcdhGcm: per-session ECDH (P-256) + HKDF-SHA-256 + AES-256-GCM, bound
//     to a backend-signed credential.
//   - DiversifiedCbc: a pre-provisioned or master-derived AES-128 device key
//     used in a two-round AES-ECB/CBC challenge-response.
//   - SymmetricDemo: a simpler single-round HKDF-derived device key variant.
package doorproto
