package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/intervia/intervia/internal/models"
	"github.com/intervia/intervia/pkg/logger"
)

const (
	defaultOTPSpec   = "@every 10m"
	defaultTokenSpec = "@hourly"
)

// Cleaner runs the background sweeps that keep the auth tables small: expired
// signup codes and spent or expired password reset tokens.
type Cleaner struct {
	db   *gorm.DB
	cron *cron.Cron
	now  func() time.Time
	log  *zap.Logger

	otpSchedule   string
	tokenSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for expiry comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithOTPSchedule overrides the cron specification for the signup code sweep.
func WithOTPSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.otpSchedule = spec
		}
	}
}

// WithTokenSchedule overrides the cron specification for the reset token sweep.
func WithTokenSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.tokenSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(db *gorm.DB, opts ...Option) (*Cleaner, error) {
	if db == nil {
		return nil, errors.New("maintenance: db is required")
	}

	cleaner := &Cleaner{
		db:            db,
		now:           time.Now,
		otpSchedule:   defaultOTPSpec,
		tokenSchedule: defaultTokenSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner, nil
}

// Start registers the sweeps with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if _, err := c.cron.AddFunc(c.otpSchedule, func() {
		if _, err := CleanupOTPs(context.Background(), c.db, c.now()); err != nil {
			c.log.Warn("otp cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	if _, err := c.cron.AddFunc(c.tokenSchedule, func() {
		if _, err := CleanupResetTokens(context.Background(), c.db, c.now()); err != nil {
			c.log.Warn("reset token cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all sweeps sequentially. Used in tests and during shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if _, err := CleanupOTPs(ctx, c.db, c.now()); err != nil {
		errs = multierr.Append(errs, err)
	}

	if _, err := CleanupResetTokens(ctx, c.db, c.now()); err != nil {
		errs = multierr.Append(errs, err)
	}

	return errs
}

// CleanupOTPs removes signup verification codes that expired before now.
// Codes still inside their validity window are left alone so an in-flight
// signup is never interrupted.
func CleanupOTPs(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("cleanup otps: db is required")
	}

	result := db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&models.Otp{})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup otps: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CleanupResetTokens removes password reset tokens that expired or were used.
func CleanupResetTokens(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("cleanup reset tokens: db is required")
	}

	result := db.WithContext(ctx).
		Where("expires_at < ? OR used_at IS NOT NULL", now).
		Delete(&models.PasswordResetToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup reset tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}
