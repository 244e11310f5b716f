package doorproto

import "encoding/binary"

// Frame size bounds (spec §3, §4.1).
const (
	AuthFrameMin = 94
	AuthFrameMax = 512
	RespFrameMax = 256
	FrameBValMax = 400
)

// Variant-B Start byte values (spec §3).
const (
	FrameBStartPlain     byte = 0x81 // Value is cleartext TLV
	FrameBStartEncrypted byte = 0xC1 // Value is AES-CBC encrypted under DK
)

// AuthFrame is the Variant-A inbound frame: Version(1) | PubM(65) |
// Nonce_M(12) | Ciphertext(var) | Tag(16), 94..512 bytes total.
type AuthFrame struct {
	Version    byte
	PubM       [65]byte
	NonceM     [12]byte
	Ciphertext []byte
	Tag        [16]byte
}

// EncodeAuthFrame serializes an AuthFrame to wire bytes, enforcing the
// [94,512] size bound from spec §4.1.
func EncodeAuthFrame(f AuthFrame) ([]byte, error) {
	total := 1 + 65 + 12 + len(f.Ciphertext) + 16
	if total < AuthFrameMin || total > AuthFrameMax {
		return nil, wrap(ErrMalformedFrame, nil)
	}
	out := make([]byte, 0, total)
	out = append(out, f.Version)
	out = append(out, f.PubM[:]...)
	out = append(out, f.NonceM[:]...)
	out = append(out, f.Ciphertext...)
	out = append(out, f.Tag[:]...)
	return out, nil
}

// DecodeAuthFrame parses a Variant-A Auth characteristic write. It rejects
// PubM before any crypto runs if the leading byte is not 0x04 (uncompressed
// point indicator, spec §4.1).
func DecodeAuthFrame(b []byte) (AuthFrame, error) {
	var f AuthFrame
	if len(b) < AuthFrameMin || len(b) > AuthFrameMax {
		return f, wrap(ErrMalformedFrame, nil)
	}
	f.Version = b[0]
	copy(f.PubM[:], b[1:66])
	if f.PubM[0] != 0x04 {
		return f, wrap(ErrInvalidPoint, nil)
	}
	copy(f.NonceM[:], b[66:78])
	cipherLen := len(b) - 78 - 16
	if cipherLen < 0 {
		return f, wrap(ErrMalformedFrame, nil)
	}
	f.Ciphertext = append([]byte(nil), b[78:78+cipherLen]...)
	copy(f.Tag[:], b[78+cipherLen:])
	return f, nil
}

// ResponseFrame is the Variant-A outbound frame: Nonce_I(12) |
// Ciphertext(var) | Tag(16), at most 256 bytes. Its plaintext body is
// Status(1) | DoorState(1) | Extended(var).
type ResponseFrame struct {
	NonceI     [12]byte
	Ciphertext []byte
	Tag        [16]byte
}

// EncodeResponseFrame serializes a ResponseFrame, enforcing the 256-byte cap.
func EncodeResponseFrame(f ResponseFrame) ([]byte, error) {
	total := 12 + len(f.Ciphertext) + 16
	if total > RespFrameMax {
		return nil, wrap(ErrMtuExceeded, nil)
	}
	out := make([]byte, 0, total)
	out = append(out, f.NonceI[:]...)
	out = append(out, f.Ciphertext...)
	out = append(out, f.Tag[:]...)
	return out, nil
}

// DecodeResponseFrame parses a Variant-A Response/Indicate payload (mobile
// side).
func DecodeResponseFrame(b []byte) (ResponseFrame, error) {
	var f ResponseFrame
	if len(b) < 28 || len(b) > RespFrameMax {
		return f, wrap(ErrMalformedFrame, nil)
	}
	copy(f.NonceI[:], b[:12])
	cipherLen := len(b) - 12 - 16
	f.Ciphertext = append([]byte(nil), b[12:12+cipherLen]...)
	copy(f.Tag[:], b[12+cipherLen:])
	return f, nil
}

// ResponseBody is the decrypted plaintext body of a Variant-A response.
type ResponseBody struct {
	Status    StatusCode
	DoorState DoorState
	Extended  []byte
}

func EncodeResponseBody(b ResponseBody) []byte {
	out := make([]byte, 2+len(b.Extended))
	out[0] = byte(b.Status)
	out[1] = byte(b.DoorState)
	copy(out[2:], b.Extended)
	return out
}

func DecodeResponseBody(b []byte) (ResponseBody, error) {
	if len(b) < 2 {
		return ResponseBody{}, wrap(ErrMalformedFrame, nil)
	}
	return ResponseBody{
		Status:    StatusCode(b[0]),
		DoorState: DoorState(b[1]),
		Extended:  append([]byte(nil), b[2:]...),
	}, nil
}

// FrameB is the Variant-B wire frame: Start(1) | Tag(1) | Length(2, BE) |
// Seq(1) | Value(<=400). Length covers Tag..end-of-Value.
type FrameB struct {
	Start byte
	Tag   byte
	Seq   byte
	Value []byte
}

// EncodeFrameB serializes a FrameB. start must be FrameBStartPlain or
// FrameBStartEncrypted (spec §4.1).
func EncodeFrameB(f FrameB) ([]byte, error) {
	if f.Start != FrameBStartPlain && f.Start != FrameBStartEncrypted {
		return nil, wrap(ErrMalformedFrame, nil)
	}
	if len(f.Value) > FrameBValMax {
		return nil, wrap(ErrMtuExceeded, nil)
	}
	length := 2 + len(f.Value) // Tag(1) + Seq(1) + Value
	out := make([]byte, 0, 4+length)
	out = append(out, f.Start)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(length))
	// Tag is emitted before Length per the header layout in spec §3, but the
	// Length field's value only covers Tag..end-of-Value, so we still place
	// Tag ahead of Length on the wire as documented.
	out = append(out, f.Tag)
	out = append(out, lenBuf[:]...)
	out = append(out, f.Seq)
	out = append(out, f.Value...)
	return out, nil
}

// DecodeFrameB parses a Variant-B wire frame, validating Start, declared
// Length against the actual buffer, and the Value size cap.
func DecodeFrameB(b []byte) (FrameB, error) {
	var f FrameB
	if len(b) < 5 {
		return f, wrap(ErrMalformedFrame, nil)
	}
	f.Start = b[0]
	if f.Start != FrameBStartPlain && f.Start != FrameBStartEncrypted {
		return f, wrap(ErrMalformedFrame, nil)
	}
	f.Tag = b[1]
	length := binary.BigEndian.Uint16(b[2:4])
	if int(length) < 2 {
		return f, wrap(ErrMalformedFrame, nil)
	}
	wantTotal := 3 + int(length) // Start(1) + Length(2) + Tag..end-of-Value
	if wantTotal > len(b) {
		return f, wrap(ErrMtuExceeded, nil)
	}
	if wantTotal != len(b) {
		return f, wrap(ErrMalformedFrame, nil)
	}
	f.Seq = b[4]
	valueLen := int(length) - 2
	if valueLen > FrameBValMax {
		return f, wrap(ErrMtuExceeded, nil)
	}
	f.Value = append([]byte(nil), b[5:5+valueLen]...)
	return f, nil
}

// TLV is a single Type-Length-Value element used inside Symmetric-Key
// variant frame bodies (spec §3).
type TLV struct {
	Type  byte
	Value []byte
}

func EncodeTLV(t TLV) []byte {
	out := make([]byte, 0, 2+len(t.Value))
	out = append(out, t.Type)
	out = append(out, byte(len(t.Value)))
	out = append(out, t.Value...)
	return out
}

func DecodeTLV(b []byte) (TLV, []byte, error) {
	if len(b) < 2 {
		return TLV{}, nil, wrap(ErrMalformedFrame, nil)
	}
	l := int(b[1])
	if 2+l > len(b) {
		return TLV{}, nil, wrap(ErrMtuExceeded, nil)
	}
	return TLV{Type: b[0], Value: append([]byte(nil), b[2:2+l]...)}, b[2+l:], nil
}

// NextSeq advances a sequence counter, wrapping at 255 (spec §4.1).
func NextSeq(prev byte) byte { return byte((int(prev) + 1) % 256) }

// SeqOK reports whether seq is the expected successor of prev ("prev+1 mod
// 256"), per the receiver-side discipline in spec §4.1/§4.4.
func SeqOK(prev, seq byte) bool { return seq == NextSeq(prev) }
