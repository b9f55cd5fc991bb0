package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	iauth "github.com/intervia/intervia/internal/auth"
	"github.com/intervia/intervia/internal/models"
	"github.com/intervia/intervia/pkg/crypto"
	apperrors "github.com/intervia/intervia/pkg/errors"
	"github.com/intervia/intervia/pkg/mail"
)

const (
	defaultOTPLength = 6
	defaultOTPExpiry = 5 * time.Minute
)

// Failure modes surfaced to API consumers. Message strings are part of the
// client contract and must stay stable.
var (
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	ErrUserExists   = apperrors.New("USER_EXISTS", "User already exists", http.StatusConflict)
	ErrOTPNotFound  = apperrors.New("OTP_NOT_FOUND", "OTP not found", http.StatusNotFound)
	// ErrOTPInvalid covers both a wrong code and an expired one; callers cannot
	// tell the two apart.
	ErrOTPInvalid      = apperrors.New("OTP_INVALID", "Invalid OTP", http.StatusBadRequest)
	ErrEmailSendFailed = apperrors.New("EMAIL_SEND_FAILED", "Error sending email", http.StatusBadRequest)
)

// AuthOption customises the AuthService.
type AuthOption func(*AuthService)

// WithOTPExpiry overrides the signup code lifetime.
func WithOTPExpiry(d time.Duration) AuthOption {
	return func(s *AuthService) {
		if d > 0 {
			s.otpExpiry = d
		}
	}
}

// WithOTPLength overrides the number of digits in generated signup codes.
func WithOTPLength(n int) AuthOption {
	return func(s *AuthService) {
		if n > 0 {
			s.otpLength = n
		}
	}
}

// WithClock injects a custom time source.
func WithClock(clock func() time.Time) AuthOption {
	return func(s *AuthService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// AuthService orchestrates login, OTP-gated signup, and token refresh.
type AuthService struct {
	db        *gorm.DB
	jwt       *iauth.JWTService
	mailer    mail.Mailer
	otpExpiry time.Duration
	otpLength int
	now       func() time.Time
}

// NewAuthService constructs an AuthService with the provided collaborators.
// The mailer may be nil, in which case signup codes are stored but not delivered
// (useful in tests and local development).
func NewAuthService(db *gorm.DB, jwt *iauth.JWTService, mailer mail.Mailer, opts ...AuthOption) (*AuthService, error) {
	if db == nil {
		return nil, errors.New("auth service: db is required")
	}
	if jwt == nil {
		return nil, errors.New("auth service: jwt service is required")
	}

	service := &AuthService{
		db:        db,
		jwt:       jwt,
		mailer:    mailer,
		otpExpiry: defaultOTPExpiry,
		otpLength: defaultOTPLength,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// AuthResult carries the outcome of an operation that authenticates a user.
type AuthResult struct {
	Message      string
	Token        string
	RefreshToken string
	User         *models.User
}

// Login verifies an email/password pair and issues tokens on success.
// It has no side effects beyond token issuance.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, apperrors.ErrInternalServer.WithInternal(fmt.Errorf("auth service: find user: %w", err))
	}

	if !crypto.VerifyPassword(user.Password, password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	return s.issueTokens(&user, "Login successful")
}

// RequestSignupOTP issues (or refreshes) the signup verification code for an
// email address that does not yet have an account, and emails it to the user.
// The returned message distinguishes the create and resend paths.
func (s *AuthService) RequestSignupOTP(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", apperrors.NewBadRequest("email is required")
	}

	if err := s.ensureNoUser(ctx, email); err != nil {
		return "", err
	}

	code, err := crypto.GenerateOTP(s.otpLength)
	if err != nil {
		return "", apperrors.ErrInternalServer.WithInternal(fmt.Errorf("auth service: generate otp: %w", err))
	}

	expiresAt := s.now().Add(s.otpExpiry)

	var existing models.Otp
	err = s.db.WithContext(ctx).First(&existing, "email = ?", email).Error
	updated := err == nil
	switch {
	case updated:
		// Resend: refresh the row in place so only the newest code verifies.
		err = s.db.WithContext(ctx).Model(&existing).Updates(map[string]any{
			"code_hash":  otpHash(code),
			"expires_at": expiresAt,
		}).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = s.db.WithContext(ctx).Create(&models.Otp{
			Email:     email,
			CodeHash:  otpHash(code),
			ExpiresAt: expiresAt,
		}).Error
	}
	if err != nil {
		return "", apperrors.ErrInternalServer.WithInternal(fmt.Errorf("auth service: store otp: %w", err))
	}

	// A mail failure is reported to the caller, but the stored code stays in
	// place so a resend keeps working.
	if err := s.sendOTP(ctx, email, code); err != nil {
		return "", err
	}

	if updated {
		return "OTP updated successfully", nil
	}
	return "OTP sent successfully", nil
}

// VerifyOTPInput carries the fields submitted when completing a signup.
type VerifyOTPInput struct {
	Email    string
	OTP      string
	Password string
	Name     string
	ImgURL   string
}

// VerifyOTPAndRegister checks the submitted code and, on success, creates the
// account and consumes the code in a single transaction before issuing tokens.
func (s *AuthService) VerifyOTPAndRegister(ctx context.Context, input VerifyOTPInput) (*AuthResult, error) {
	email := strings.TrimSpace(input.Email)

	if err := s.ensureNoUser(ctx, email); err != nil {
		return nil, err
	}

	var pending models.Otp
	if err := s.db.WithContext(ctx).First(&pending, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOTPNotFound
		}
		return nil, apperrors.ErrInternalServer.WithInternal(fmt.Errorf("auth service: find otp: %w", err))
	}

	if otpHash(input.OTP) != pending.CodeHash || s.now().After(pending.ExpiresAt) {
		return nil, ErrOTPInvalid
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(fmt.Errorf("auth service: hash password: %w", err))
	}

	user := &models.User{
		Email:    email,
		Password: hashed,
		Name:     strings.TrimSpace(input.Name),
		ImgURL:   strings.TrimSpace(input.ImgURL),
	}

	// Account creation and code consumption succeed or fail together.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Otp{}, "id = ?", pending.ID).Error
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			// Lost the race against a concurrent verification for the same email.
			return nil, ErrUserExists
		}
		return nil, apperrors.ErrInternalServer.WithInternal(fmt.Errorf("auth service: create user: %w", err))
	}

	return s.issueTokens(user, "Signup successful")
}

// Refresh validates a refresh token and issues a fresh access token bound to
// the same user id.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.jwt.ValidateToken(strings.TrimSpace(refreshToken))
	if err != nil {
		return "", apperrors.ErrUnauthorized.WithInternal(err)
	}

	access, err := s.jwt.GenerateAccessToken(claims.UserID)
	if err != nil {
		return "", apperrors.ErrInternalServer.WithInternal(fmt.Errorf("auth service: issue access token: %w", err))
	}

	return access, nil
}

func (s *AuthService) ensureNoUser(ctx context.Context, email string) error {
	var user models.User
	err := s.db.WithContext(ctx).Select("id").First(&user, "email = ?", email).Error
	switch {
	case err == nil:
		return ErrUserExists
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return apperrors.ErrInternalServer.WithInternal(fmt.Errorf("auth service: find user: %w", err))
	}
}

func (s *AuthService) issueTokens(user *models.User, message string) (*AuthResult, error) {
	access, err := s.jwt.GenerateAccessToken(user.ID)
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(fmt.Errorf("auth service: issue access token: %w", err))
	}

	refresh, err := s.jwt.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(fmt.Errorf("auth service: issue refresh token: %w", err))
	}

	return &AuthResult{
		Message:      message,
		Token:        access,
		RefreshToken: refresh,
		User:         user,
	}, nil
}

func (s *AuthService) sendOTP(ctx context.Context, email, code string) error {
	if s.mailer == nil {
		return nil
	}

	message := mail.Message{
		To:      []string{email},
		Subject: "User Verification",
		Body:    mail.OTPVerificationBody(code, formatExpiry(s.otpExpiry)),
	}
	if err := s.mailer.Send(ctx, message); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		return ErrEmailSendFailed.WithInternal(err)
	}
	return nil
}

func formatExpiry(d time.Duration) string {
	minutes := int(d.Round(time.Minute) / time.Minute)
	if minutes <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

func otpHash(code string) string {
	digest := sha256.Sum256([]byte(code))
	return hex.EncodeToString(digest[:])
}
