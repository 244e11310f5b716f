package doorproto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

// RFC 4493 section 4 test vectors: AES-128 key, variable-length messages.
func TestAESCMACRFC4493Vectors(t *testing.T) {
	key, err := hex.DecodeString("2b7e151628aed2a6abf7158809cf4f3c")
	if err != nil {
		t.Fatalf("decode key: %v", err)
	}
	fullMsg, err := hex.DecodeString(
		"6bc1bee22e409f96e93d7e117393172a" +
			"ae2d8a571e03ac9c9eb76fac45af8e51" +
			"30c81c46a35ce411e5fbc1191a0a52ef" +
			"f69f2445df4f9b17ad2b417be66c3710")
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}

	cases := []struct {
		name string
		msg  []byte
		want string
	}{
		{"Mlen = 0", nil, "bb1d6929e95937287fa37d129b756746"},
		{"Mlen = 128", fullMsg[:16], "070a16b46b4d4144f79bdd9dd04a287c"},
		{"Mlen = 320", fullMsg[:40], "dfa66747de9ae63030ca32611497c827"},
		{"Mlen = 512", fullMsg[:64], "51f0bebf7e3b9d92fc49741779363cfe"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := aesCMAC(key, tc.msg)
			if err != nil {
				t.Fatalf("aesCMAC: %v", err)
			}
			want, err := hex.DecodeString(tc.want)
			if err != nil {
				t.Fatalf("decode want: %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Fatalf("got %x, want %x", got, want)
			}
		})
	}
}

func TestTruncateOddBytes(t *testing.T) {
	full := make([]byte, 16)
	for i := range full {
		full[i] = byte(i)
	}
	got := truncateOddBytes(full)
	want := []byte{1, 3, 5, 7, 9, 11, 13, 15}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDiversifyKeyDeterministicAndUIDSensitive(t *testing.T) {
	var master [16]byte
	for i := range master {
		master[i] = byte(i + 1)
	}
	uidA := []byte{0x04, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
	uidB := []byte{0x04, 0x11, 0x22, 0x33, 0x44, 0x55, 0x67}

	dk1, err := DiversifyDeviceKey(master, uidA)
	if err != nil {
		t.Fatalf("diversify: %v", err)
	}
	dk2, err := DiversifyDeviceKey(master, uidA)
	if err != nil {
		t.Fatalf("diversify: %v", err)
	}
	if dk1 != dk2 {
		t.Fatal("diversified key must be deterministic for the same master+uid")
	}

	dk3, err := DiversifyDeviceKey(master, uidB)
	if err != nil {
		t.Fatalf("diversify: %v", err)
	}
	if dk1 == dk3 {
		t.Fatal("different UIDs must diversify to different device keys")
	}
}
