package doorproto

import (
	"bytes"
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
)

func TestECDHP256Symmetric(t *testing.T) {
	privA, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate A: %v", err)
	}
	privB, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate B: %v", err)
	}
	secretA, err := ecdhP256(privA, privB.PublicKey().Bytes())
	if err != nil {
		t.Fatalf("ecdh A: %v", err)
	}
	secretB, err := ecdhP256(privB, privA.PublicKey().Bytes())
	if err != nil {
		t.Fatalf("ecdh B: %v", err)
	}
	if !bytes.Equal(secretA, secretB) {
		t.Fatal("ECDH shared secrets do not match")
	}
}

func TestECDHP256RejectsBadLeadingByte(t *testing.T) {
	priv, _ := ecdh.P256().GenerateKey(rand.Reader)
	bad := make([]byte, 65)
	bad[0] = 0x02
	if _, err := ecdhP256(priv, bad); !errors.Is(err, ErrInvalidPoint) {
		t.Fatalf("expected ErrInvalidPoint, got %v", err)
	}
}

func TestHKDFDeterministic(t *testing.T) {
	ikm := []byte("shared-secret")
	salt := []byte("salt")
	out1, err := hkdfSHA256(ikm, salt, []byte("m2i"), 32)
	if err != nil {
		t.Fatalf("hkdf: %v", err)
	}
	out2, err := hkdfSHA256(ikm, salt, []byte("m2i"), 32)
	if err != nil {
		t.Fatalf("hkdf: %v", err)
	}
	if !bytes.Equal(out1, out2) {
		t.Fatal("HKDF output not deterministic for identical inputs")
	}
	out3, _ := hkdfSHA256(ikm, salt, []byte("i2m"), 32)
	if bytes.Equal(out1, out3) {
		t.Fatal("different info strings must derive different keys")
	}
}

func TestAESGCMRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	nonce := bytes.Repeat([]byte{0x01}, 12)
	aad := []byte("aad")
	plain := []byte("unlock the door")
	sealed, err := aesGCMEncrypt(key, nonce, aad, plain)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := aesGCMDecrypt(key, nonce, aad, sealed)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("round trip mismatch: got %q", got)
	}
}

func TestAESGCMTamperAlwaysReportsTagInvalid(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	nonce := bytes.Repeat([]byte{0x01}, 12)
	sealed, err := aesGCMEncrypt(key, nonce, nil, []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	cases := map[string][]byte{
		"tampered ciphertext": append([]byte(nil), func() []byte {
			c := append([]byte(nil), sealed...)
			c[0] ^= 0xFF
			return c
		}()...),
		"wrong key": sealed,
		"truncated": sealed[:len(sealed)-1],
	}
	for name, ct := range cases {
		k := key
		if name == "wrong key" {
			k = bytes.Repeat([]byte{0x99}, 32)
		}
		if _, err := aesGCMDecrypt(k, nonce, nil, ct); !errors.Is(err, ErrTagInvalid) {
			t.Fatalf("%s: expected ErrTagInvalid, got %v", name, err)
		}
	}
}

func TestAESCBCPKCS7RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, 16)
	iv := bytes.Repeat([]byte{0x22}, 16)
	for _, n := range []int{0, 1, 15, 16, 17, 33} {
		plain := bytes.Repeat([]byte{0xAB}, n)
		ct, err := aesCBCEncrypt(paddingPKCS7, key, iv, plain)
		if err != nil {
			t.Fatalf("len %d: encrypt: %v", n, err)
		}
		got, err := aesCBCDecrypt(paddingPKCS7, key, iv, ct)
		if err != nil {
			t.Fatalf("len %d: decrypt: %v", n, err)
		}
		if !bytes.Equal(got, plain) {
			t.Fatalf("len %d: round trip mismatch", n)
		}
	}
}

func TestAESCBCISO9797M2RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, 16)
	iv := bytes.Repeat([]byte{0x22}, 16)
	for _, n := range []int{0, 1, 15, 16, 30} {
		plain := bytes.Repeat([]byte{0xCD}, n)
		ct, err := aesCBCEncrypt(paddingISO9797M2, key, iv, plain)
		if err != nil {
			t.Fatalf("len %d: encrypt: %v", n, err)
		}
		got, err := aesCBCDecrypt(paddingISO9797M2, key, iv, ct)
		if err != nil {
			t.Fatalf("len %d: decrypt: %v", n, err)
		}
		if !bytes.Equal(got, plain) {
			t.Fatalf("len %d: round trip mismatch", n)
		}
	}
}

func TestUnpadRejectsBadPadding(t *testing.T) {
	if _, err := unpad(paddingPKCS7, bytes.Repeat([]byte{0x00}, 16)); !errors.Is(err, ErrBadPadding) {
		t.Fatalf("PKCS7: expected ErrBadPadding, got %v", err)
	}
	if _, err := unpad(paddingISO9797M2, bytes.Repeat([]byte{0x00}, 16)); !errors.Is(err, ErrBadPadding) {
		t.Fatalf("ISO9797-M2: expected ErrBadPadding, got %v", err)
	}
	if _, err := unpad(paddingPKCS7, make([]byte, 15)); !errors.Is(err, ErrNotBlockAligned) {
		t.Fatalf("expected ErrNotBlockAligned for non-block-aligned input, got %v", err)
	}
}

func TestAESCBCRawRequiresBlockAlignment(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, 16)
	iv := bytes.Repeat([]byte{0x22}, 16)
	if _, err := aesCBCEncryptRaw(key, iv, make([]byte, 15)); !errors.Is(err, ErrNotBlockAligned) {
		t.Fatalf("expected ErrNotBlockAligned, got %v", err)
	}
	if _, err := aesCBCDecryptRaw(key, iv, make([]byte, 17)); !errors.Is(err, ErrNotBlockAligned) {
		t.Fatalf("expected ErrNotBlockAligned, got %v", err)
	}
}

func TestAESCBCRawRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x33}, 16)
	iv := bytes.Repeat([]byte{0x44}, 16)
	plain := bytes.Repeat([]byte{0x55}, 32)
	ct, err := aesCBCEncryptRaw(key, iv, plain)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := aesCBCDecryptRaw(key, iv, ct)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatal("raw CBC round trip mismatch")
	}
}

func TestAESECBRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x66}, 16)
	block := bytes.Repeat([]byte{0x77}, 16)
	enc, err := aesECBEncryptBlock(key, block)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	dec, err := aesECBDecryptBlock(key, enc[:])
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(dec, block) {
		t.Fatal("ECB round trip mismatch")
	}
}

func TestAESECBRejectsShortBlock(t *testing.T) {
	key := bytes.Repeat([]byte{0x66}, 16)
	if _, err := aesECBEncryptBlock(key, make([]byte, 15)); !errors.Is(err, ErrNotBlockAligned) {
		t.Fatalf("expected ErrNotBlockAligned, got %v", err)
	}
}

func TestEd25519VerifyRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	msg := []byte("credential bytes")
	sig := ed25519.Sign(priv, msg)
	if !ed25519Verify(pub, msg, sig) {
		t.Fatal("expected valid signature to verify")
	}
	tampered := append([]byte(nil), msg...)
	tampered[0] ^= 0xFF
	if ed25519Verify(pub, tampered, sig) {
		t.Fatal("tampered message must not verify")
	}
}
