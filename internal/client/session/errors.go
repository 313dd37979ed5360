package session

import "errors"

var (
	// ErrSessionExpired means there is no refresh token left to exchange.
	ErrSessionExpired = errors.New("session expired")
	// ErrDisposed is returned by operations on a disposed manager.
	ErrDisposed = errors.New("session manager disposed")
	// ErrInvalidResetCode matches a verification code the backend rejected.
	ErrInvalidResetCode = errors.New("invalid reset code")
)

const msgInvalidCode = "Invalid verification code."

// CodeRejectedError carries the backend's explanation for a rejected reset
// code. It matches ErrInvalidResetCode.
type CodeRejectedError struct {
	Message string
}

func (e *CodeRejectedError) Error() string {
	if e.Message == "" {
		return msgInvalidCode
	}
	return e.Message
}

func (e *CodeRejectedError) Is(target error) bool { return target == ErrInvalidResetCode }
