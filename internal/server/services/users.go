// Package services contains the business logic of the development auth
// backend. UserService handles registration, login, refresh-token rotation
// and password recovery.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/partfinder/partfinder/internal/common"
	"github.com/partfinder/partfinder/internal/logging"
	"github.com/partfinder/partfinder/internal/server/auth"
	"github.com/partfinder/partfinder/internal/server/config"
	"github.com/partfinder/partfinder/internal/server/models"
	"github.com/partfinder/partfinder/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

// Demo account seeded by SeedDemoUser.
const (
	DemoUsername = "demo"
	DemoEmail    = "demo@partfinder.com"
	DemoPassword = "Password123"
)

// passwordHashCost is the bcrypt cost of new password hashes.
var passwordHashCost = bcrypt.DefaultCost

// TokenPair is what a successful login, registration or refresh returns.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	ExpiresIn        time.Duration
	RefreshExpiresIn time.Duration
}

// UserService provides authentication-related operations:
// - Register and Login: create or verify users and mint tokens
// - RefreshToken: rotate refresh tokens and mint new access tokens
// - SendResetCode, VerifyResetCode, ResetPassword: password recovery
type UserService struct {
	repomanager                  repomanager.RepositoryManager
	logger                       logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	resetCodeValidityDuration    time.Duration
	now                          func() time.Time
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *UserService {
	return &UserService{
		repomanager:                  m,
		logger:                       logger.With("module", "users"),
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		resetCodeValidityDuration:    cfg.ResetCodeValidityDuration,
		now:                          time.Now,
	}
}

// NormalizeEmail makes emails compare case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and signs it in.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*TokenPair, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     strings.TrimSpace(username),
		Email:        NormalizeEmail(email),
		PasswordHash: hash,
	}

	var pair *TokenPair
	err = s.repomanager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		if _, err := r.Users.Create(ctx, user); err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return ErrEmailTaken
			}
			return fmt.Errorf("error creating user: %w", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, r, user.ID)
		return genErr
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return pair, nil
}

// Login verifies the password and, on success, returns a new TokenPair.
func (s *UserService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	r := s.repomanager.Repos()
	user, err := r.Users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}
	if !checkPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.generateTokenPair(ctx, r, user.ID)
}

// RefreshToken consumes refreshToken and returns a fresh TokenPair. Unknown,
// already used and expired tokens yield ErrRefreshTokenExpired.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var pair *TokenPair
	err := s.repomanager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		token, err := r.RefreshTokens.Consume(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return ErrRefreshTokenExpired
			}
			return fmt.Errorf("error consuming refresh token: %w", err)
		}
		if !token.Expires.After(s.now()) {
			return ErrRefreshTokenExpired
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, r, token.UserID)
		return genErr
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// SendResetCode issues a new reset code for email, replacing any earlier one.
// The code is delivered through the log.
func (s *UserService) SendResetCode(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	r := s.repomanager.Repos()

	if _, err := r.Users.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("error searching user: %w", err)
	}

	code, err := common.MakeNumericCode(common.ResetCodeDigits)
	if err != nil {
		return err
	}
	rc := &models.ResetCode{Email: email, Code: code, Expires: s.now().Add(s.resetCodeValidityDuration)}
	if err := r.ResetCodes.Save(ctx, rc); err != nil {
		return fmt.Errorf("error saving reset code: %w", err)
	}

	s.logger.Info(ctx, "password reset code issued", "email", email, "code", code, "expires_at", rc.Expires)
	return nil
}

// VerifyResetCode reports whether code is the pending, unexpired code of email.
func (s *UserService) VerifyResetCode(ctx context.Context, email, code string) (bool, error) {
	err := s.checkResetCode(ctx, s.repomanager.Repos(), NormalizeEmail(email), code)
	if errors.Is(err, ErrInvalidResetCode) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ResetPassword consumes the reset code, sets the new password and signs the
// account out everywhere by revoking its refresh tokens.
func (s *UserService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = NormalizeEmail(email)
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}

	var userID string
	err = s.repomanager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		if err := s.checkResetCode(ctx, r, email, code); err != nil {
			return err
		}
		user, err := r.Users.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return ErrAccountNotFound
			}
			return fmt.Errorf("error searching user: %w", err)
		}
		userID = user.ID
		if err := r.Users.UpdatePassword(ctx, user.ID, hash); err != nil {
			return fmt.Errorf("error updating password: %w", err)
		}
		if err := r.ResetCodes.Delete(ctx, email); err != nil {
			return fmt.Errorf("error deleting reset code: %w", err)
		}
		if err := r.RefreshTokens.DeleteForUser(ctx, user.ID); err != nil {
			return fmt.Errorf("error revoking refresh tokens: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "password reset", "user_id", userID)
	return nil
}

// Profile returns the account the access token was issued to.
func (s *UserService) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repomanager.Repos().Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	return user, nil
}

// UserIDFromAccessToken validates an access token issued by this service.
func (s *UserService) UserIDFromAccessToken(token string) (string, error) {
	return auth.GetUserIDFromToken(token, s.jwtSecret)
}

// SeedDemoUser creates the demo account unless it already exists.
func (s *UserService) SeedDemoUser(ctx context.Context) error {
	hash, err := hashPassword(DemoPassword)
	if err != nil {
		return err
	}
	user := &models.User{ID: uuid.NewString(), Username: DemoUsername, Email: DemoEmail, PasswordHash: hash}
	if _, err := s.repomanager.Repos().Users.Create(ctx, user); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil
		}
		return fmt.Errorf("error seeding demo user: %w", err)
	}
	s.logger.Info(ctx, "demo user seeded", "email", DemoEmail)
	return nil
}

// --- helpers below ---

func (s *UserService) checkResetCode(ctx context.Context, r repomanager.Repositories, email, code string) error {
	rc, err := r.ResetCodes.Find(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return ErrInvalidResetCode
		}
		return fmt.Errorf("error searching reset code: %w", err)
	}
	if !rc.Expires.After(s.now()) {
		return ErrInvalidResetCode
	}
	if subtle.ConstantTimeCompare([]byte(rc.Code), []byte(strings.TrimSpace(code))) != 1 {
		return ErrInvalidResetCode
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}

func (s *UserService) generateTokenPair(ctx context.Context, r repomanager.Repositories, userID string) (*TokenPair, error) {
	now := s.now()
	access, err := auth.GenerateToken(userID, s.jwtSecret, now, s.accessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("error generating access token: %w", err)
	}
	refresh, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, fmt.Errorf("error generating refresh token: %w", err)
	}
	if err := r.RefreshTokens.Create(ctx, userID, refresh, now.Add(s.refreshTokenValidityDuration)); err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		ExpiresIn:        s.accessTokenValidityDuration,
		RefreshExpiresIn: s.refreshTokenValidityDuration,
	}, nil
}
