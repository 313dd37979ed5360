package httpapi

import "github.com/partfinder/partfinder/internal/server/services"

// TokenTypeBearer is the token_type of every token response.
const TokenTypeBearer = "bearer"

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type sendCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// The code is not format-checked here so a malformed code is reported as
// {valid: false} rather than a validation failure.
type verifyCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
}

func newTokenResponse(p *services.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:      p.AccessToken,
		TokenType:        TokenTypeBearer,
		ExpiresIn:        int64(p.ExpiresIn.Seconds()),
		RefreshToken:     p.RefreshToken,
		RefreshExpiresIn: int64(p.RefreshExpiresIn.Seconds()),
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

type verifyResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}
