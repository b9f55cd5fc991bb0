package models

import "time"

// Otp holds the pending signup verification code for an email address.
// At most one live row exists per email; a resend updates the row in place.
// Only a SHA-256 digest of the code is stored.
type Otp struct {
	BaseModel

	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	CodeHash  string    `gorm:"not null" json:"-"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}
