package services

import (
	"errors"

	"github.com/partfinder/partfinder/internal/common"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrAccountNotFound    = errors.New("no account for email")
	ErrInvalidResetCode   = errors.New("invalid or expired reset code")

	// ErrRefreshTokenExpired covers unknown, reused and expired refresh tokens.
	ErrRefreshTokenExpired = common.ErrRefreshTokenExpired
)
