package authapi

import (
	"context"
	"net/http"
)

// Client is the set of backend calls the session manager and the CLI make.
type Client interface {
	Login(ctx context.Context, email, password string) (*TokenResponse, error)
	Register(ctx context.Context, username, email, password string) (*TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
	SendResetCode(ctx context.Context, email string) (string, error)
	VerifyResetCode(ctx context.Context, email, code string) (*VerifyResult, error)
	ResetPassword(ctx context.Context, email, code, newPassword string) (string, error)
	Me(ctx context.Context, header http.Header) (*User, error)
}

const (
	pathLogin      = "/api/v1/users/login"
	pathRegister   = "/api/v1/users/register"
	pathRefresh    = "/api/v1/users/refresh"
	pathSendCode   = "/api/v1/users/forgot-password/send-code"
	pathVerifyCode = "/api/v1/users/forgot-password/verify-code"
	pathResetPass  = "/api/v1/users/forgot-password/reset-password"
	pathMe         = "/api/v1/users/me"
)

// Messages used when the backend gives nothing better.
const (
	MsgLoginFailed    = "Login failed."
	MsgSignupFailed   = "Signup failed."
	MsgRefreshExpired = "Refresh token expired. Please log in again."
	MsgSendCodeFailed = "Failed to send code."
	MsgVerifyFailed   = "Failed to verify code."
	MsgResetFailed    = "Failed to reset password."
	MsgProfileFailed  = "Failed to load profile."
)
