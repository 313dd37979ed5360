package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/partfinder/partfinder/internal/logging"
	"github.com/partfinder/partfinder/internal/server/models"
	"github.com/partfinder/partfinder/internal/server/services"
)

// Response messages.
const (
	MsgInvalidCredentials = "Invalid email or password."
	MsgEmailTaken         = "An account with this email already exists."
	MsgRefreshExpired     = "Refresh token expired. Please log in again."
	MsgAccountNotFound    = "No account found for this email."
	MsgInvalidResetCode   = "Invalid or expired reset code."
	MsgCodeSent           = "Verification code sent to your email."
	MsgCodeVerified       = "Code verified."
	MsgPasswordReset      = "Password has been reset. Please log in with your new password."
	MsgInvalidBody        = "Request body must be a JSON object."
	MsgNotAuthenticated   = "Not authenticated."
	MsgTokenExpired       = "Token expired."
	MsgInvalidToken       = "Could not validate credentials."
	MsgInternal           = "Internal server error."
)

const maxBodyBytes = 1 << 20

// UserService is the business logic the handlers drive.
type UserService interface {
	Register(ctx context.Context, username, email, password string) (*services.TokenPair, error)
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	SendResetCode(ctx context.Context, email string) error
	VerifyResetCode(ctx context.Context, email, code string) (bool, error)
	ResetPassword(ctx context.Context, email, code, newPassword string) error
	Profile(ctx context.Context, userID string) (*models.User, error)
	UserIDFromAccessToken(token string) (string, error)
}

type handler struct {
	users  UserService
	logger logging.Logger
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	pair, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(pair))
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	pair, err := h.users.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTokenResponse(pair))
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}
	pair, err := h.users.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(pair))
}

func (h *handler) sendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.users.SendResetCode(r.Context(), req.Email); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: MsgCodeSent})
}

func (h *handler) verifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	ok, err := h.users.VerifyResetCode(r.Context(), req.Email, req.Code)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, verifyResponse{Valid: false, Message: MsgInvalidResetCode})
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Valid: true, Message: MsgCodeVerified})
}

func (h *handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.users.ResetPassword(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: MsgPasswordReset})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	user, err := h.users.Profile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			writeError(w, http.StatusUnauthorized, MsgInvalidToken)
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{ID: user.ID, Username: user.Username, Email: user.Email})
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// decode reads a JSON body into dst and validates it. On failure it writes
// a 422 response and returns false.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, MsgInvalidBody)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return false
	}
	return true
}

func (h *handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, MsgInvalidCredentials)
	case errors.Is(err, services.ErrEmailTaken):
		writeError(w, http.StatusConflict, MsgEmailTaken)
	case errors.Is(err, services.ErrRefreshTokenExpired):
		writeError(w, http.StatusUnauthorized, MsgRefreshExpired)
	case errors.Is(err, services.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, MsgAccountNotFound)
	case errors.Is(err, services.ErrInvalidResetCode):
		writeError(w, http.StatusBadRequest, MsgInvalidResetCode)
	default:
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, MsgInternal)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
