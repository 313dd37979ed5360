package models

import "time"

// ResetCode is the pending password-reset code of one email address.
type ResetCode struct {
	Email   string
	Code    string
	Expires time.Time
}
