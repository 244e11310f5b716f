package doorproto

import "fmt"

// ErrorKind groups the protocol's error taxonomy (spec §7).
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindCrypto    ErrorKind = "crypto"
	KindPolicy    ErrorKind = "policy"
	KindRuntime   ErrorKind = "runtime"
)

// ProtoError is a typed protocol failure. Two ProtoErrors compare equal
// under errors.Is when Kind and Code match, regardless of Cause — callers
// should compare against the sentinel values below, e.g.
// errors.Is(err, ErrTagInvalid).
type ProtoError struct {
	Kind  ErrorKind
	Code  string
	Cause error
}

func (e *ProtoError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Cause)
	}
	return e.Code
}

func (e *ProtoError) Unwrap() error { return e.Cause }

func (e *ProtoError) Is(target error) bool {
	t, ok := target.(*ProtoError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

func wrap(sentinel *ProtoError, cause error) *ProtoError {
	return &ProtoError{Kind: sentinel.Kind, Code: sentinel.Code, Cause: cause}
}

// Transport errors.
var (
	ErrMalformedFrame    = &ProtoError{Kind: KindTransport, Code: "MalformedFrame"}
	ErrMtuExceeded       = &ProtoError{Kind: KindTransport, Code: "MtuExceeded"}
	ErrSequenceViolation = &ProtoError{Kind: KindTransport, Code: "SequenceViolation"}
	ErrInvalidState      = &ProtoError{Kind: KindTransport, Code: "InvalidState"}
)

// Crypto errors.
var (
	ErrInvalidPoint     = &ProtoError{Kind: KindCrypto, Code: "InvalidPoint"}
	ErrTagInvalid       = &ProtoError{Kind: KindCrypto, Code: "TagInvalid"}
	ErrBadPadding       = &ProtoError{Kind: KindCrypto, Code: "BadPadding"}
	ErrNotBlockAligned  = &ProtoError{Kind: KindCrypto, Code: "NotBlockAligned"}
	ErrSignatureInvalid = &ProtoError{Kind: KindCrypto, Code: "SignatureInvalid"}
)

// Policy errors (credential verifier, spec §4.5).
var (
	ErrExpired          = &ProtoError{Kind: KindPolicy, Code: "Expired"}
	ErrNotYetValid      = &ProtoError{Kind: KindPolicy, Code: "NotYetValid"}
	ErrRevoked          = &ProtoError{Kind: KindPolicy, Code: "Revoked"}
	ErrWrongDoor        = &ProtoError{Kind: KindPolicy, Code: "WrongDoor"}
	ErrPermissionDenied = &ProtoError{Kind: KindPolicy, Code: "PermissionDenied"}
	ErrRateLimited      = &ProtoError{Kind: KindPolicy, Code: "RateLimited"}
	ErrUnknownDevice    = &ProtoError{Kind: KindPolicy, Code: "UnknownDevice"}
	ErrAuthFailed       = &ProtoError{Kind: KindPolicy, Code: "AuthFailed"}
	ErrInvalidCredential = &ProtoError{Kind: KindPolicy, Code: "InvalidCredential"}
)

// Runtime errors.
var (
	ErrChallengeExpired = &ProtoError{Kind: KindRuntime, Code: "ChallengeExpired"}
	ErrBusy             = &ProtoError{Kind: KindRuntime, Code: "Busy"}
	ErrActuatorFault    = &ProtoError{Kind: KindRuntime, Code: "Jammed"}
	ErrInternal         = &ProtoError{Kind: KindRuntime, Code: "Internal"}
)
