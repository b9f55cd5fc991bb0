package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/intervia/intervia/internal/models"
	"github.com/intervia/intervia/pkg/crypto"
	apperrors "github.com/intervia/intervia/pkg/errors"
	"github.com/intervia/intervia/pkg/logger"
	"github.com/intervia/intervia/pkg/mail"
)

const (
	defaultResetExpiry     = 30 * time.Minute
	defaultResetTokenBytes = 32
)

// ErrResetTokenInvalid covers unknown, expired, and already-used reset tokens.
var ErrResetTokenInvalid = apperrors.New("RESET_TOKEN_INVALID", "Invalid or expired reset token", http.StatusBadRequest)

// ResetOption customises the PasswordResetService.
type ResetOption func(*PasswordResetService)

// WithResetExpiry overrides the reset token lifetime.
func WithResetExpiry(d time.Duration) ResetOption {
	return func(s *PasswordResetService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithResetClock injects a custom time source.
func WithResetClock(clock func() time.Time) ResetOption {
	return func(s *PasswordResetService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// PasswordResetService implements the forgot-password flow: emailed reset
// tokens that can be exchanged once for a new password.
type PasswordResetService struct {
	db          *gorm.DB
	mailer      mail.Mailer
	expiry      time.Duration
	tokenLength int
	now         func() time.Time
}

// NewPasswordResetService constructs a PasswordResetService.
func NewPasswordResetService(db *gorm.DB, mailer mail.Mailer, opts ...ResetOption) (*PasswordResetService, error) {
	if db == nil {
		return nil, errors.New("password reset service: db is required")
	}

	service := &PasswordResetService{
		db:          db,
		mailer:      mailer,
		expiry:      defaultResetExpiry,
		tokenLength: defaultResetTokenBytes,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Request issues a reset token for the given email when an account exists and
// emails it to the user. Unknown emails are deliberately indistinguishable from
// known ones in the response, so the endpoint cannot be used for enumeration.
func (s *PasswordResetService) Request(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperrors.NewBadRequest("email is required")
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithModule("auth").Debug("password reset requested for unknown email")
			return nil
		}
		return apperrors.ErrInternalServer.WithInternal(fmt.Errorf("password reset service: find user: %w", err))
	}

	token, err := crypto.GenerateToken(s.tokenLength)
	if err != nil {
		return apperrors.ErrInternalServer.WithInternal(fmt.Errorf("password reset service: generate token: %w", err))
	}

	record := models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: otpHash(token),
		ExpiresAt: s.now().Add(s.expiry),
	}

	// One live token per user: stale tokens are replaced, not accumulated.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.PasswordResetToken{}, "user_id = ?", user.ID).Error; err != nil {
			return err
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		return apperrors.ErrInternalServer.WithInternal(fmt.Errorf("password reset service: store token: %w", err))
	}

	if s.mailer != nil {
		message := mail.Message{
			To:      []string{email},
			Subject: "Password Reset",
			Body:    mail.PasswordResetBody(token, formatExpiry(s.expiry)),
		}
		if err := s.mailer.Send(ctx, message); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
			return ErrEmailSendFailed.WithInternal(err)
		}
	}

	return nil
}

// Reset exchanges a valid, unused, unexpired token for a new password. The
// password update and token consumption are one transaction.
func (s *PasswordResetService) Reset(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" || strings.TrimSpace(newPassword) == "" {
		return apperrors.NewBadRequest("token and password are required")
	}

	var record models.PasswordResetToken
	if err := s.db.WithContext(ctx).First(&record, "token_hash = ?", otpHash(token)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrResetTokenInvalid
		}
		return apperrors.ErrInternalServer.WithInternal(fmt.Errorf("password reset service: find token: %w", err))
	}

	now := s.now()
	if record.UsedAt != nil || now.After(record.ExpiresAt) {
		return ErrResetTokenInvalid
	}

	hashed, err := crypto.HashPassword(newPassword)
	if err != nil {
		return apperrors.ErrInternalServer.WithInternal(fmt.Errorf("password reset service: hash password: %w", err))
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.User{}).Where("id = ?", record.UserID).Update("password", hashed)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&record).Update("used_at", now).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrResetTokenInvalid
		}
		return apperrors.ErrInternalServer.WithInternal(fmt.Errorf("password reset service: apply reset: %w", err))
	}

	return nil
}
