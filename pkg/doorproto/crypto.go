package doorproto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// randomBytes draws n bytes from the OS CSPRNG (spec §4.2).
func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, wrap(ErrInternal, err)
	}
	return b, nil
}

// ecdhP256 computes the shared secret for peripheral-side key agreement.
// pubMBytes is the 65-byte uncompressed point sent over the wire; it is
// rejected before any curve arithmetic if the leading byte is not 0x04
// (spec §4.1 edge case).
func ecdhP256(priv *ecdh.PrivateKey, pubMBytes []byte) ([]byte, error) {
	if len(pubMBytes) == 0 || pubMBytes[0] != 0x04 {
		return nil, wrap(ErrInvalidPoint, nil)
	}
	peerPub, err := ecdh.P256().NewPublicKey(pubMBytes)
	if err != nil {
		return nil, wrap(ErrInvalidPoint, err)
	}
	secret, err := priv.ECDH(peerPub)
	if err != nil {
		return nil, wrap(ErrInvalidPoint, err)
	}
	return secret, nil
}

// hkdfSHA256 derives length bytes from ikm using HKDF-SHA-256 with the given
// salt and info (spec §4.2).
func hkdfSHA256(ikm, salt, info []byte, length int) ([]byte, error) {
	r := hkdf.New(sha256.New, ikm, salt, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, wrap(ErrInternal, err)
	}
	return out, nil
}

// aesGCMEncrypt seals data with AES-256-GCM under key/nonce12/aad.
func aesGCMEncrypt(key, nonce12, aad, data []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce12, data, aad), nil
}

// aesGCMDecrypt opens an AES-256-GCM sealed message. Failure is always
// reported as TagInvalid regardless of the underlying reason, so that no
// distinguishing information about ciphertext/key/nonce/AAD leaks through
// the error (spec §8 AEAD authenticity invariant).
func aesGCMDecrypt(key, nonce12, aad, sealed []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	out, err := aead.Open(nil, nonce12, sealed, aad)
	if err != nil {
		return nil, wrap(ErrTagInvalid, nil)
	}
	return out, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, wrap(ErrInternal, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, wrap(ErrInternal, err)
	}
	return aead, nil
}

// paddingScheme selects the block-padding convention for AES-CBC, since the
// two symmetric variants use different ones (spec §4.2).
type paddingScheme int

const (
	paddingPKCS7 paddingScheme = iota
	paddingISO9797M2
)

func pad(scheme paddingScheme, data []byte) []byte {
	switch scheme {
	case paddingISO9797M2:
		padLen := 16 - (len(data) % 16)
		out := make([]byte, len(data)+padLen)
		copy(out, data)
		out[len(data)] = 0x80
		return out
	default: // PKCS#7
		padLen := 16 - (len(data) % 16)
		out := make([]byte, len(data)+padLen)
		copy(out, data)
		for i := len(data); i < len(out); i++ {
			out[i] = byte(padLen)
		}
		return out
	}
}

func unpad(scheme paddingScheme, data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%16 != 0 {
		return nil, wrap(ErrNotBlockAligned, nil)
	}
	switch scheme {
	case paddingISO9797M2:
		idx := len(data) - 1
		for idx >= 0 && data[idx] == 0x00 {
			idx--
		}
		if idx < 0 || data[idx] != 0x80 {
			return nil, wrap(ErrBadPadding, nil)
		}
		return data[:idx], nil
	default: // PKCS#7
		padLen := int(data[len(data)-1])
		if padLen == 0 || padLen > 16 || padLen > len(data) {
			return nil, wrap(ErrBadPadding, nil)
		}
		for _, b := range data[len(data)-padLen:] {
			if int(b) != padLen {
				return nil, wrap(ErrBadPadding, nil)
			}
		}
		return data[:len(data)-padLen], nil
	}
}

// aesCBCEncrypt pads data (per scheme) and encrypts it with AES-CBC.
func aesCBCEncrypt(scheme paddingScheme, key, iv16, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, wrap(ErrInternal, err)
	}
	padded := pad(scheme, data)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv16).CryptBlocks(out, padded)
	return out, nil
}

// aesCBCDecrypt decrypts an AES-CBC ciphertext and removes padding (per
// scheme).
func aesCBCDecrypt(scheme paddingScheme, key, iv16, data []byte) ([]byte, error) {
	if len(data)%16 != 0 {
		return nil, wrap(ErrNotBlockAligned, nil)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, wrap(ErrInternal, err)
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv16).CryptBlocks(out, data)
	return unpad(scheme, out)
}

// aesCBCDecryptRaw decrypts a block-aligned AES-CBC ciphertext without
// removing any padding, for payloads that are already exactly block-sized
// (the Variant-B RndA||RotL8(RndB) challenge block).
func aesCBCDecryptRaw(key, iv16, data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%16 != 0 {
		return nil, wrap(ErrNotBlockAligned, nil)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, wrap(ErrInternal, err)
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv16).CryptBlocks(out, data)
	return out, nil
}

// aesCBCEncryptRaw encrypts block-aligned plaintext without adding padding.
func aesCBCEncryptRaw(key, iv16, data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%16 != 0 {
		return nil, wrap(ErrNotBlockAligned, nil)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, wrap(ErrInternal, err)
	}
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv16).CryptBlocks(out, data)
	return out, nil
}

// aesECBEncryptBlock encrypts a single 16-byte block in ECB mode, used for
// the Variant-B challenge response AES(K, nonce) (spec §4.4).
func aesECBEncryptBlock(key []byte, blockIn []byte) ([16]byte, error) {
	var out [16]byte
	if len(blockIn) != 16 {
		return out, wrap(ErrNotBlockAligned, nil)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return out, wrap(ErrInternal, err)
	}
	block.Encrypt(out[:], blockIn)
	return out, nil
}

// aesECBDecryptBlock decrypts a single 16-byte ECB block, the mobile-side
// counterpart of aesECBEncryptBlock used to recover RndB/RndA from the
// intercom's challenge replies (spec §4.4).
func aesECBDecryptBlock(key []byte, blockIn []byte) ([]byte, error) {
	if len(blockIn) != 16 {
		return nil, wrap(ErrNotBlockAligned, nil)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, wrap(ErrInternal, err)
	}
	out := make([]byte, 16)
	block.Decrypt(out, blockIn)
	return out, nil
}

// ivMarker distinguishes the command direction (mobile -> intercom) from the
// response direction (intercom -> mobile) when deriving a Variant-B CBC IV,
// the same role the 0xA5,0x5A / 0x5A,0xA5 markers play in the teacher's own
// ECB-encrypt(Kenc, marker||TI||ctr||0s) IV construction.
type ivMarker [2]byte

var (
	ivMarkerM2I = ivMarker{0xA5, 0x5A}
	ivMarkerI2M = ivMarker{0x5A, 0xA5}
)

// deriveIVB derives the per-frame CBC IV for Variant B's encrypted legs as
// ECB-encrypt(key, marker || duid[:4] || seq || zero-pad-to-16), so every
// frame gets its own IV rather than ever reusing a static all-zero block; an
// `ivreset` (which restarts the per-direction Seq counters) therefore also
// resynchronizes the IV onto a fresh, deterministic value (spec §3 ivreset).
func deriveIVB(key [16]byte, marker ivMarker, duid []byte, seq byte) ([16]byte, error) {
	var block [16]byte
	block[0], block[1] = marker[0], marker[1]
	copy(block[2:6], padOrTrimUID(duid)[:4])
	block[6] = seq
	return aesECBEncryptBlock(key[:], block[:])
}

// ed25519Verify verifies a credential's detached Ed25519 backend signature.
func ed25519Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}
