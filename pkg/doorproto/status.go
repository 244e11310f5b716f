package doorproto

import "errors"

// StatusCode is the 1-byte response status enumerated in spec §6.
type StatusCode byte

const (
	StatusSuccess          StatusCode = 0x00
	StatusAuthFailed       StatusCode = 0x01
	StatusExpired          StatusCode = 0x02
	StatusNotYetValid      StatusCode = 0x03
	StatusRevoked          StatusCode = 0x04
	StatusWrongDoor        StatusCode = 0x05
	StatusPermissionDenied StatusCode = 0x06
	StatusRateLimited      StatusCode = 0x07
	StatusJammed           StatusCode = 0x08
	StatusInternalError    StatusCode = 0x09
	StatusChallengeExpired StatusCode = 0x0A
)

// StatusFor maps an internal error to its 1-byte wire status code (spec §7:
// "transport errors never expose which credential field failed" — every
// policy failure collapses to its specific code, every crypto failure that
// reaches the response layer collapses to AuthFailed).
func StatusFor(err error) StatusCode {
	if err == nil {
		return StatusSuccess
	}
	switch {
	case errors.Is(err, ErrExpired):
		return StatusExpired
	case errors.Is(err, ErrNotYetValid):
		return StatusNotYetValid
	case errors.Is(err, ErrRevoked):
		return StatusRevoked
	case errors.Is(err, ErrWrongDoor):
		return StatusWrongDoor
	case errors.Is(err, ErrPermissionDenied):
		return StatusPermissionDenied
	case errors.Is(err, ErrRateLimited):
		return StatusRateLimited
	case errors.Is(err, ErrActuatorFault):
		return StatusJammed
	case errors.Is(err, ErrChallengeExpired):
		return StatusChallengeExpired
	case errors.Is(err, ErrAuthFailed),
		errors.Is(err, ErrInvalidPoint),
		errors.Is(err, ErrTagInvalid),
		errors.Is(err, ErrSignatureInvalid),
		errors.Is(err, ErrBadPadding),
		errors.Is(err, ErrNotBlockAligned),
		errors.Is(err, ErrUnknownDevice),
		errors.Is(err, ErrInvalidCredential):
		return StatusAuthFailed
	default:
		return StatusInternalError
	}
}
