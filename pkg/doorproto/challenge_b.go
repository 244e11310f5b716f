package doorproto

import (
	"context"
)

// Variant-B FrameB Tag values (spec §3, §4.4). The exchange mirrors an
// NTAG424 DNA-style EV2First mutual authentication: two challenge-response
// rounds bootstrap a session key from a diversified device key, after which
// an encrypted credential unlocks the door.
const (
	TagAuthFirst       byte = 0x01 // mobile -> intercom: DUID
	TagAuthFirstResp   byte = 0x02 // intercom -> mobile: E(DK, RndB)
	TagAuthSecond      byte = 0x03 // mobile -> intercom: E(DK, RndA || RotL8(RndB))
	TagAuthSecondResp  byte = 0x04 // intercom -> mobile: E(DK, RotL8(RndA))
	TagCredential      byte = 0x05 // mobile -> intercom: E(SK, CredentialB)
	TagCredentialResp  byte = 0x06 // intercom -> mobile: status
	TagReset           byte = 0x07 // either direction: reset sequence counters
)

func rotLeft8(b [16]byte) [16]byte {
	var out [16]byte
	copy(out[:15], b[1:])
	out[15] = b[0]
	return out
}

// handleFrameB dispatches one inbound Variant-B frame through the
// mutual-authentication state machine (spec §4.4).
func (e *PeripheralEngine) handleFrameB(ctx context.Context, s *Session, raw []byte) ([]byte, error) {
	v, ok := e.variant.(DiversifiedCbc)
	if !ok {
		return nil, wrap(ErrInternal, nil)
	}

	f, err := DecodeFrameB(raw)
	if err != nil {
		return nil, err
	}

	if f.Tag == TagReset {
		s.resetSeq()
		return EncodeFrameB(FrameB{Start: FrameBStartPlain, Tag: TagReset, Seq: f.Seq, Value: nil})
	}

	if err := s.checkSeq(DirMobileToIntercom, f.Seq); err != nil {
		s.teardown()
		return nil, err
	}

	switch f.Tag {
	case TagAuthFirst:
		return e.handleAuthFirstB(s, v, f)
	case TagAuthSecond:
		return e.handleAuthSecondB(s, v, f)
	case TagCredential:
		return e.handleCredentialB(ctx, s, f)
	default:
		s.teardown()
		return nil, wrap(ErrMalformedFrame, nil)
	}
}

func (e *PeripheralEngine) handleAuthFirstB(s *Session, v DiversifiedCbc, f FrameB) ([]byte, error) {
	if s.phase() != PhaseNonceIssued {
		s.teardown()
		return nil, wrap(ErrInvalidState, nil)
	}
	tlv, _, err := DecodeTLV(f.Value)
	if err != nil {
		return nil, err
	}
	duid := tlv.Value

	if !e.rateLimiter.Check(duid) {
		e.rateLimiter.Record(duid)
		return nil, wrap(ErrRateLimited, nil)
	}
	e.rateLimiter.Record(duid)

	dk, err := v.Keys.DeviceKey(duid)
	if err != nil {
		s.teardown()
		return nil, wrap(ErrUnknownDevice, err)
	}
	s.DUID = append([]byte(nil), duid...)
	s.Keys.DK = dk

	rb, err := randomBytes(16)
	if err != nil {
		return nil, err
	}
	copy(s.pendingRb[:], rb)
	s.pendingRbSet = true

	enc, err := aesECBEncryptBlock(dk[:], rb)
	if err != nil {
		return nil, err
	}
	s.setPhase(PhaseAwaitAuth)
	return EncodeFrameB(FrameB{Start: FrameBStartPlain, Tag: TagAuthFirstResp, Seq: NextSeq(f.Seq), Value: enc[:]})
}

func (e *PeripheralEngine) handleAuthSecondB(s *Session, v DiversifiedCbc, f FrameB) ([]byte, error) {
	if s.phase() != PhaseAwaitAuth || !s.pendingRbSet {
		s.teardown()
		return nil, wrap(ErrInvalidState, nil)
	}
	if len(f.Value) != 32 {
		s.teardown()
		return nil, wrap(ErrMalformedFrame, nil)
	}

	iv, err := deriveIVB(s.Keys.DK, ivMarkerM2I, s.DUID, f.Seq)
	if err != nil {
		s.teardown()
		return nil, err
	}
	plain, err := aesCBCDecryptRaw(s.Keys.DK[:], iv[:], f.Value)
	if err != nil {
		s.teardown()
		return nil, wrap(ErrAuthFailed, err)
	}
	var rndA, rbGotRotated [16]byte
	copy(rndA[:], plain[:16])
	copy(rbGotRotated[:], plain[16:32])

	wantRotated := rotLeft8(s.pendingRb)
	if rbGotRotated != wantRotated {
		s.teardown()
		return nil, wrap(ErrAuthFailed, nil)
	}

	sv := make([]byte, 0, 32)
	sv = append(sv, rndA[:]...)
	sv = append(sv, s.pendingRb[:]...)
	sk, err := aesCMAC(s.Keys.DK[:], sv)
	if err != nil {
		return nil, err
	}
	dk := s.Keys.DK
	copy(s.Keys.DK[:], sk[:16])
	s.pendingRbSet = false

	rndARotated := rotLeft8(rndA)
	enc, err := aesECBEncryptBlock(dk[:], rndARotated[:])
	if err != nil {
		return nil, err
	}
	s.setPhase(PhaseAuthenticatedOrReject)
	return EncodeFrameB(FrameB{Start: FrameBStartPlain, Tag: TagAuthSecondResp, Seq: NextSeq(f.Seq), Value: enc[:]})
}

func (e *PeripheralEngine) handleCredentialB(ctx context.Context, s *Session, f FrameB) ([]byte, error) {
	if s.phase() != PhaseAuthenticatedOrReject {
		s.teardown()
		return nil, wrap(ErrInvalidState, nil)
	}
	iv, err := deriveIVB(s.Keys.DK, ivMarkerM2I, s.DUID, f.Seq)
	if err != nil {
		s.teardown()
		return nil, err
	}
	plain, err := aesCBCDecrypt(paddingISO9797M2, s.Keys.DK[:], iv[:], f.Value)
	if err != nil {
		return e.respondCredentialB(s, f.Seq, wrap(ErrAuthFailed, err))
	}
	cred, err := DecodeCredentialB(plain)
	if err != nil {
		return e.respondCredentialB(s, f.Seq, err)
	}
	if string(cred.DeviceUID[:]) != string(padOrTrimUID(s.DUID)) {
		return e.respondCredentialB(s, f.Seq, wrap(ErrAuthFailed, nil))
	}
	if e.diversifiedAllowlist != nil && !e.diversifiedAllowlist.Allowed(cred) {
		return e.respondCredentialB(s, f.Seq, wrap(ErrPermissionDenied, nil))
	}

	state, actErr := actuateWithTimeout(ctx, e.actuator)
	s.invalidateNonce()
	if actErr != nil {
		return e.respondCredentialB(s, f.Seq, actErr)
	}
	s.setPhase(PhaseDone)
	body := ResponseBody{Status: StatusSuccess, DoorState: state}
	return e.encodeResponseB(s, f.Seq, body)
}

func (e *PeripheralEngine) respondCredentialB(s *Session, seq byte, cause error) ([]byte, error) {
	s.invalidateNonce()
	s.setPhase(PhaseAuthenticatedOrReject)
	body := ResponseBody{Status: StatusFor(cause), DoorState: DoorStateUnknown}
	out, encErr := e.encodeResponseB(s, seq, body)
	if encErr != nil {
		return nil, encErr
	}
	return out, cause
}

func (e *PeripheralEngine) encodeResponseB(s *Session, seq byte, body ResponseBody) ([]byte, error) {
	respSeq := NextSeq(seq)
	iv, err := deriveIVB(s.Keys.DK, ivMarkerI2M, s.DUID, respSeq)
	if err != nil {
		return nil, err
	}
	enc, err := aesCBCEncrypt(paddingISO9797M2, s.Keys.DK[:], iv[:], EncodeResponseBody(body))
	if err != nil {
		return nil, err
	}
	out, err := EncodeFrameB(FrameB{Start: FrameBStartEncrypted, Tag: TagCredentialResp, Seq: respSeq, Value: enc})
	if err != nil {
		return nil, err
	}
	return s.checkMTU(out)
}

// padOrTrimUID fits a variable-length session DUID into the fixed 8-byte
// DeviceUID field for comparison against the wire-level credential.
func padOrTrimUID(duid []byte) []byte {
	out := make([]byte, 8)
	copy(out, duid)
	return out
}

// DiversifiedAllowlist authorizes a decoded Variant-B credential beyond mere
// decryption/binding success (mirrors PermissionChecker for Variant A).
type DiversifiedAllowlist interface {
	Allowed(c CredentialB) bool
}
