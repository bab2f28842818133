package jwtutil

import "errors"

// Verification failures. All of them map to an authentication failure (401)
// at the request boundary; malformed tokens are never a server error.
var (
	ErrTokenInvalid   = errors.New("token invalid or expired")
	ErrTokenRevoked   = errors.New("token has been revoked")
	ErrWrongTokenKind = errors.New("wrong token kind")
)

// IsAuthError reports whether err is one of the verification failures above.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrTokenInvalid) ||
		errors.Is(err, ErrTokenRevoked) ||
		errors.Is(err, ErrWrongTokenKind)
}
