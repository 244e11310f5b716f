package doorproto

import (
	"context"
	"time"
)

// TLV types used by the Symmetric-Key demo variant's single-round frame
// body (spec §3, §4.4 simplified path).
const (
	TLVDeviceID   byte = 0x10
	TLVNonce      byte = 0x11
	TLVCiphertext byte = 0x12
	TLVMAC        byte = 0x13
)

// handleAuthSym implements the Symmetric-Key demo variant: a single round
// trip where DK is derived per-device via HKDF from a shared master key, the
// credential travels AES-CBC-encrypted under DK, and authenticity is an
// AES-CMAC over the ciphertext rather than an AEAD tag (spec §4.4, simple
// path).
func (e *PeripheralEngine) handleAuthSym(ctx context.Context, s *Session, raw []byte) ([]byte, error) {
	v, ok := e.variant.(SymmetricDemo)
	if !ok {
		return nil, wrap(ErrInternal, nil)
	}
	if s.phase() != PhaseNonceIssued {
		s.teardown()
		return nil, wrap(ErrInvalidState, nil)
	}
	nc, ok := s.currentNonce(time.Now())
	if !ok {
		s.teardown()
		return nil, wrap(ErrChallengeExpired, nil)
	}

	deviceID, nonceM, ciphertext, mac, err := decodeSymFrame(raw)
	if err != nil {
		return nil, err
	}

	if !e.rateLimiter.Check(deviceID) {
		e.rateLimiter.Record(deviceID)
		return nil, wrap(ErrRateLimited, nil)
	}
	e.rateLimiter.Record(deviceID)

	dk, err := hkdfSHA256(v.Master[:], deviceID, []byte("doorlink-sym-dk"), 16)
	if err != nil {
		return nil, err
	}

	s.setPhase(PhaseAwaitAuth)

	wantMAC, err := aesCMAC(dk, append(append([]byte{}, nc[:]...), append(nonceM, ciphertext...)...))
	if err != nil {
		return nil, err
	}
	if !constantTimeEqual(truncateOddBytes(wantMAC), mac) {
		s.invalidateNonce()
		s.setPhase(PhaseAuthenticatedOrReject)
		return e.encodeSymFailure(s, dk, wrap(ErrAuthFailed, nil))
	}

	var iv [16]byte
	copy(iv[:12], nonceM)
	plain, err := aesCBCDecrypt(paddingPKCS7, dk, iv[:], ciphertext)
	if err != nil {
		s.invalidateNonce()
		s.setPhase(PhaseAuthenticatedOrReject)
		return e.encodeSymFailure(s, dk, err)
	}

	grant, err := e.credentialVerifier.Verify(plain, nil)
	if err != nil {
		s.invalidateNonce()
		s.setPhase(PhaseAuthenticatedOrReject)
		return e.encodeSymFailure(s, dk, err)
	}

	state, actErr := actuateWithTimeout(ctx, e.actuator)
	s.invalidateNonce()
	if actErr != nil {
		s.setPhase(PhaseDone)
		return e.encodeSymFailure(s, dk, actErr)
	}
	s.setPhase(PhaseDone)
	if e.metrics != nil {
		e.metrics.UnlockGranted(grant.DoorID)
	}
	return e.encodeSymResponse(s, dk, ResponseBody{Status: StatusSuccess, DoorState: state})
}

func (e *PeripheralEngine) encodeSymFailure(s *Session, dk []byte, cause error) ([]byte, error) {
	out, err := e.encodeSymResponse(s, dk, ResponseBody{Status: StatusFor(cause), DoorState: DoorStateUnknown})
	if err != nil {
		return nil, err
	}
	return out, cause
}

func (e *PeripheralEngine) encodeSymResponse(s *Session, dk []byte, body ResponseBody) ([]byte, error) {
	nonceI, err := randomBytes(12)
	if err != nil {
		return nil, err
	}
	var iv [16]byte
	copy(iv[:12], nonceI)
	plain := EncodeResponseBody(body)
	ciphertext, err := aesCBCEncrypt(paddingPKCS7, dk, iv[:], plain)
	if err != nil {
		return nil, err
	}
	mac, err := aesCMAC(dk, append(append([]byte{}, nonceI...), ciphertext...))
	if err != nil {
		return nil, err
	}

	out := EncodeTLV(TLV{Type: TLVNonce, Value: nonceI})
	out = append(out, EncodeTLV(TLV{Type: TLVCiphertext, Value: ciphertext})...)
	out = append(out, EncodeTLV(TLV{Type: TLVMAC, Value: truncateOddBytes(mac)})...)
	return s.checkMTU(out)
}

// decodeSymFrame reads the four TLVs making up a Symmetric-Key auth write:
// DeviceID, Nonce_M, Ciphertext, and a trailing MAC.
func decodeSymFrame(b []byte) (deviceID, nonceM, ciphertext, mac []byte, err error) {
	rest := b
	var tlv TLV
	for len(rest) > 0 {
		tlv, rest, err = DecodeTLV(rest)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		switch tlv.Type {
		case TLVDeviceID:
			deviceID = tlv.Value
		case TLVNonce:
			nonceM = tlv.Value
		case TLVCiphertext:
			ciphertext = tlv.Value
		case TLVMAC:
			mac = tlv.Value
		}
	}
	if deviceID == nil || nonceM == nil || ciphertext == nil || mac == nil {
		return nil, nil, nil, nil, wrap(ErrMalformedFrame, nil)
	}
	return deviceID, nonceM, ciphertext, mac, nil
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
