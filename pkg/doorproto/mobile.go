package doorproto

import (
	"crypto/ecdh"
)

// This file holds the mobile-side (central) counterpart of each variant's
// handshake math. It lives in the same package as the peripheral handlers
// because both sides derive the identical session keys from the identical
// primitives (spec §4.2-§4.4) — duplicating that arithmetic behind a second
// package boundary would only invite the two sides to drift apart.

// MobileAuthA builds the Variant-A AuthFrame a central sends after reading
// the Challenge nonce, and returns the session keys needed to decrypt the
// intercom's ResponseFrame. devicePriv is the device's own persistent P-256
// key, the same one the backend bound into the credential's DevicePubKey
// field (spec §4.5 step 6 requires the two to match bit-for-bit).
func MobileAuthA(devicePriv *ecdh.PrivateKey, pubI *ecdh.PublicKey, nonce [16]byte, credential []byte) ([]byte, SessionKeys, error) {
	priv := devicePriv
	shared, err := priv.ECDH(pubI)
	if err != nil {
		return nil, SessionKeys{}, wrap(ErrInvalidPoint, err)
	}
	kM2I, err := hkdfSHA256(shared, nonce[:], []byte("m2i-enc"), 32)
	if err != nil {
		return nil, SessionKeys{}, err
	}
	kI2M, err := hkdfSHA256(shared, nonce[:], []byte("i2m-enc"), 32)
	if err != nil {
		return nil, SessionKeys{}, err
	}
	var keys SessionKeys
	copy(keys.M2I[:], kM2I)
	copy(keys.I2M[:], kI2M)
	keys.set = true

	nonceM, err := randomBytes(12)
	if err != nil {
		return nil, SessionKeys{}, err
	}
	var f AuthFrame
	f.Version = 1
	copy(f.PubM[:], priv.PublicKey().Bytes())
	copy(f.NonceM[:], nonceM)
	sealed, err := aesGCMEncrypt(keys.M2I[:], f.NonceM[:], []byte{f.Version}, credential)
	if err != nil {
		return nil, SessionKeys{}, err
	}
	f.Ciphertext = sealed[:len(sealed)-16]
	copy(f.Tag[:], sealed[len(sealed)-16:])
	raw, err := EncodeAuthFrame(f)
	if err != nil {
		return nil, SessionKeys{}, err
	}
	return raw, keys, nil
}

// MobileDecryptResponseA decrypts a Variant-A ResponseFrame under the
// session's I2M key.
func MobileDecryptResponseA(keys SessionKeys, raw []byte) (ResponseBody, error) {
	f, err := DecodeResponseFrame(raw)
	if err != nil {
		return ResponseBody{}, err
	}
	sealed := append(append([]byte{}, f.Ciphertext...), f.Tag[:]...)
	plain, err := aesGCMDecrypt(keys.I2M[:], f.NonceI[:], nil, sealed)
	if err != nil {
		return ResponseBody{}, err
	}
	return DecodeResponseBody(plain)
}

// MobileAuthFirstB builds the Variant-B AuthFirst frame carrying the
// device's UID.
func MobileAuthFirstB(duid []byte, seq byte) ([]byte, error) {
	tlv := EncodeTLV(TLV{Type: TLVDeviceID, Value: duid})
	return EncodeFrameB(FrameB{Start: FrameBStartPlain, Tag: TagAuthFirst, Seq: seq, Value: tlv})
}

// MobileHandleAuthFirstRespB decrypts the intercom's RndB and produces the
// AuthSecond frame plus the still-provisional session key material needed
// to finish the handshake in MobileHandleAuthSecondRespB. firstSeq is the
// Seq the mobile itself put on the AuthFirst frame; the session's per-
// direction sequence discipline (spec §4.1, §4.4) tracks the mobile-to-
// intercom stream on its own, so AuthSecond's Seq must be derived from that
// stream's own last value, not from whatever Seq the intercom's reply used.
// duid is the same device UID sent on the AuthFirst frame, needed to derive
// this frame's IV identically to the peripheral side.
func MobileHandleAuthFirstRespB(dk [16]byte, duid []byte, firstSeq byte, raw []byte) (rndA, rndB [16]byte, authSecond []byte, err error) {
	f, derr := DecodeFrameB(raw)
	if derr != nil {
		return rndA, rndB, nil, derr
	}
	if f.Tag != TagAuthFirstResp || len(f.Value) != 16 {
		return rndA, rndB, nil, wrap(ErrMalformedFrame, nil)
	}
	plain, derr := aesECBDecryptBlock(dk[:], f.Value)
	if derr != nil {
		return rndA, rndB, nil, derr
	}
	copy(rndB[:], plain)
	a, rerr := randomBytes(16)
	if rerr != nil {
		return rndA, rndB, nil, rerr
	}
	copy(rndA[:], a)

	rotated := rotLeft8(rndB)
	payload := append(append([]byte{}, rndA[:]...), rotated[:]...)
	secondSeq := NextSeq(firstSeq)
	iv, iverr := deriveIVB(dk, ivMarkerM2I, duid, secondSeq)
	if iverr != nil {
		return rndA, rndB, nil, iverr
	}
	enc, eerr := aesCBCEncryptRaw(dk[:], iv[:], payload)
	if eerr != nil {
		return rndA, rndB, nil, eerr
	}
	out, eerr := EncodeFrameB(FrameB{Start: FrameBStartPlain, Tag: TagAuthSecond, Seq: secondSeq, Value: enc})
	return rndA, rndB, out, eerr
}

// MobileHandleAuthSecondRespB verifies the intercom's mutual-confirmation
// reply and derives the session key SK = AES-CMAC(DK, RndA||RndB)[:16].
func MobileHandleAuthSecondRespB(dk [16]byte, rndA, rndB [16]byte, raw []byte) (sk [16]byte, err error) {
	f, derr := DecodeFrameB(raw)
	if derr != nil {
		return sk, derr
	}
	if f.Tag != TagAuthSecondResp || len(f.Value) != 16 {
		return sk, wrap(ErrMalformedFrame, nil)
	}
	plain, derr := aesECBDecryptBlock(dk[:], f.Value)
	if derr != nil {
		return sk, derr
	}
	var got [16]byte
	copy(got[:], plain)
	if got != rotLeft8(rndA) {
		return sk, wrap(ErrAuthFailed, nil)
	}
	sv := append(append([]byte{}, rndA[:]...), rndB[:]...)
	mac, merr := aesCMAC(dk[:], sv)
	if merr != nil {
		return sk, merr
	}
	copy(sk[:], mac[:16])
	return sk, nil
}

// MobileCredentialB encrypts a CredentialB under the derived session key for
// the final unlock-request leg. duid is the device UID from the handshake,
// needed to derive this frame's IV identically to the peripheral side.
func MobileCredentialB(sk [16]byte, seq byte, cred CredentialB, duid []byte) ([]byte, error) {
	iv, err := deriveIVB(sk, ivMarkerM2I, duid, seq)
	if err != nil {
		return nil, err
	}
	enc, err := aesCBCEncrypt(paddingISO9797M2, sk[:], iv[:], EncodeCredentialB(cred))
	if err != nil {
		return nil, err
	}
	return EncodeFrameB(FrameB{Start: FrameBStartEncrypted, Tag: TagCredential, Seq: seq, Value: enc})
}

// MobileDecodeCredentialRespB decrypts the final status response. duid is
// the device UID from the handshake, needed to derive the intercom's
// response IV identically to the peripheral side.
func MobileDecodeCredentialRespB(sk [16]byte, raw []byte, duid []byte) (ResponseBody, error) {
	f, err := DecodeFrameB(raw)
	if err != nil {
		return ResponseBody{}, err
	}
	iv, err := deriveIVB(sk, ivMarkerI2M, duid, f.Seq)
	if err != nil {
		return ResponseBody{}, err
	}
	plain, err := aesCBCDecrypt(paddingISO9797M2, sk[:], iv[:], f.Value)
	if err != nil {
		return ResponseBody{}, err
	}
	return DecodeResponseBody(plain)
}

// MobileAuthSym builds the SymmetricDemo single-round frame.
func MobileAuthSym(master [16]byte, deviceID []byte, sessionNonce [16]byte, credential []byte) ([]byte, error) {
	dk, err := hkdfSHA256(master[:], deviceID, []byte("doorlink-sym-dk"), 16)
	if err != nil {
		return nil, err
	}
	var dk16 [16]byte
	copy(dk16[:], dk)

	nonceM, err := randomBytes(16)
	if err != nil {
		return nil, err
	}
	var iv [16]byte
	copy(iv[:12], nonceM)
	ciphertext, err := aesCBCEncrypt(paddingPKCS7, dk16[:], iv[:], credential)
	if err != nil {
		return nil, err
	}
	macInput := append(append(append([]byte{}, sessionNonce[:]...), nonceM...), ciphertext...)
	mac, err := aesCMAC(dk16[:], macInput)
	if err != nil {
		return nil, err
	}
	macTrunc := truncateOddBytes(mac)

	out := append([]byte{}, EncodeTLV(TLV{Type: TLVDeviceID, Value: deviceID})...)
	out = append(out, EncodeTLV(TLV{Type: TLVNonce, Value: nonceM})...)
	out = append(out, EncodeTLV(TLV{Type: TLVCiphertext, Value: ciphertext})...)
	out = append(out, EncodeTLV(TLV{Type: TLVMAC, Value: macTrunc})...)
	return out, nil
}

// MobileDecodeSymResponse verifies and decrypts the SymmetricDemo variant's
// response TLVs, the mobile-side counterpart of encodeSymResponse.
func MobileDecodeSymResponse(master [16]byte, deviceID []byte, raw []byte) (ResponseBody, error) {
	dk, err := hkdfSHA256(master[:], deviceID, []byte("doorlink-sym-dk"), 16)
	if err != nil {
		return ResponseBody{}, err
	}

	rest := raw
	var nonceI, ciphertext, mac []byte
	for len(rest) > 0 {
		var tlv TLV
		tlv, rest, err = DecodeTLV(rest)
		if err != nil {
			return ResponseBody{}, err
		}
		switch tlv.Type {
		case TLVNonce:
			nonceI = tlv.Value
		case TLVCiphertext:
			ciphertext = tlv.Value
		case TLVMAC:
			mac = tlv.Value
		}
	}
	if nonceI == nil || ciphertext == nil || mac == nil {
		return ResponseBody{}, wrap(ErrMalformedFrame, nil)
	}

	wantMAC, err := aesCMAC(dk, append(append([]byte{}, nonceI...), ciphertext...))
	if err != nil {
		return ResponseBody{}, err
	}
	if !constantTimeEqual(truncateOddBytes(wantMAC), mac) {
		return ResponseBody{}, wrap(ErrTagInvalid, nil)
	}

	var iv [16]byte
	copy(iv[:12], nonceI)
	plain, err := aesCBCDecrypt(paddingPKCS7, dk, iv[:], ciphertext)
	if err != nil {
		return ResponseBody{}, err
	}
	return DecodeResponseBody(plain)
}
