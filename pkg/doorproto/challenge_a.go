package doorproto

import (
	"context"
	"time"
)

// handleAuthA implements the Variant-A (ECDH + AES-GCM) authentication round
// trip, spec §4.4.
func (e *PeripheralEngine) handleAuthA(ctx context.Context, s *Session, raw []byte) ([]byte, error) {
	v, ok := e.variant.(EcdhGcm)
	if !ok {
		return nil, wrap(ErrInternal, nil)
	}

	// 1. Preconditions: phase must be NonceIssued with a live nonce.
	if s.phase() != PhaseNonceIssued {
		s.teardown()
		return nil, wrap(ErrInvalidState, nil)
	}
	nc, ok := s.currentNonce(time.Now())
	if !ok {
		s.teardown()
		return nil, wrap(ErrChallengeExpired, nil)
	}

	// 2. Decode, extracting PubM; DecodeAuthFrame already rejects an
	// invalid point before any ECDH runs.
	frame, err := DecodeAuthFrame(raw)
	if err != nil {
		// Pre-crypto rejection: nonce is preserved (spec §4.4 step 3 note).
		return nil, err
	}

	// 3. Rate-limit check, before any expensive crypto.
	if !e.rateLimiter.Check(frame.PubM[:]) {
		e.rateLimiter.Record(frame.PubM[:])
		return nil, wrap(ErrRateLimited, nil)
	}

	s.PeerPubKey = append([]byte(nil), frame.PubM[:]...)
	s.setPhase(PhaseAwaitAuth)

	grant, keys, respErr := e.authenticateAndVerifyA(v, s, nc, frame)
	e.rateLimiter.Record(frame.PubM[:])

	if respErr != nil {
		s.invalidateNonce()
		s.setPhase(PhaseAuthenticatedOrReject)
		if keys == nil {
			// No session keys derived (e.g. InvalidPoint can't happen here
			// since DecodeAuthFrame already filtered it; a GCM tag failure
			// still yields K_i2m since keys derive before decryption).
			return nil, respErr
		}
		out, encErr := e.encodeFailureA(s, *keys, respErr)
		if encErr != nil {
			return nil, encErr
		}
		return out, respErr
	}

	// Success: actuate, invalidate nonce, respond.
	state, actErr := actuateWithTimeout(ctx, e.actuator)
	s.invalidateNonce()
	s.setPhase(PhaseCredentialAccepted)
	if actErr != nil {
		out, encErr := e.encodeFailureA(s, *keys, actErr)
		if encErr != nil {
			return nil, encErr
		}
		s.setPhase(PhaseDone)
		return out, actErr
	}

	s.setPhase(PhaseDone)
	if e.metrics != nil {
		e.metrics.UnlockGranted(grant.DoorID)
	}
	return e.encodeSuccessA(s, *keys, state)
}

// authenticateAndVerifyA performs steps 4-8: ECDH, HKDF, AEAD decrypt,
// credential verify. keys is non-nil once derivation succeeds, even if a
// later step (decrypt/verify) fails, since the failure response must still
// be encrypted under K_i2m.
func (e *PeripheralEngine) authenticateAndVerifyA(v EcdhGcm, s *Session, nc [16]byte, frame AuthFrame) (Grant, *SessionKeys, error) {
	shared, err := ecdhP256(v.PrivI, frame.PubM[:])
	if err != nil {
		return Grant{}, nil, err
	}

	kM2I, err := hkdfSHA256(shared, nc[:], []byte("m2i-enc"), 32)
	if err != nil {
		return Grant{}, nil, err
	}
	kI2M, err := hkdfSHA256(shared, nc[:], []byte("i2m-enc"), 32)
	if err != nil {
		return Grant{}, nil, err
	}
	var keys SessionKeys
	copy(keys.M2I[:], kM2I)
	copy(keys.I2M[:], kI2M)
	keys.set = true
	s.Keys = keys

	aad := []byte{frame.Version}
	sealed := append(append([]byte{}, frame.Ciphertext...), frame.Tag[:]...)
	plain, err := aesGCMDecrypt(keys.M2I[:], frame.NonceM[:], aad, sealed)
	if err != nil {
		return Grant{}, &keys, err
	}

	grant, err := e.credentialVerifier.Verify(plain, frame.PubM[:])
	if err != nil {
		return Grant{}, &keys, err
	}
	return grant, &keys, nil
}

func (e *PeripheralEngine) encodeSuccessA(s *Session, keys SessionKeys, state DoorState) ([]byte, error) {
	return e.encodeResponseA(s, keys, ResponseBody{Status: StatusSuccess, DoorState: state})
}

func (e *PeripheralEngine) encodeFailureA(s *Session, keys SessionKeys, cause error) ([]byte, error) {
	return e.encodeResponseA(s, keys, ResponseBody{Status: StatusFor(cause), DoorState: DoorStateUnknown})
}

func (e *PeripheralEngine) encodeResponseA(s *Session, keys SessionKeys, body ResponseBody) ([]byte, error) {
	nonceI, err := randomBytes(12)
	if err != nil {
		return nil, err
	}
	var f ResponseFrame
	copy(f.NonceI[:], nonceI)
	sealed, err := aesGCMEncrypt(keys.I2M[:], f.NonceI[:], nil, EncodeResponseBody(body))
	if err != nil {
		return nil, err
	}
	f.Ciphertext = sealed[:len(sealed)-16]
	copy(f.Tag[:], sealed[len(sealed)-16:])
	out, err := EncodeResponseFrame(f)
	if err != nil {
		return nil, err
	}
	return s.checkMTU(out)
}
