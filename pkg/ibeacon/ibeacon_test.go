package ibeacon

import (
	"testing"

	"github.com/google/uuid"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	b := DataBlock{
		ProximityUUID: uuid.MustParse("a1b2c3d4-e5f6-4789-a012-3456789abcde"),
		Major:         100,
		Minor:         7,
		TxPower:       -59,
	}
	encoded := Encode(b)
	if len(encoded) != 25 {
		t.Fatalf("expected 25-byte encoding, got %d", len(encoded))
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if decoded != b {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, b)
	}
}

func TestDecodeRejectsWrongCompanyID(t *testing.T) {
	b := DataBlock{ProximityUUID: uuid.New(), Major: 1, Minor: 1, TxPower: -50}
	encoded := Encode(b)
	encoded[0] ^= 0xFF
	if _, err := Decode(encoded); err == nil {
		t.Fatal("expected error for wrong company id")
	}
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	if _, err := Decode([]byte{0x4C, 0x00, 0x02, 0x15}); err == nil {
		t.Fatal("expected error for short payload")
	}
}
