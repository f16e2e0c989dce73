package models

import "time"

// MaxVerificationAttempts is the number of code checks a challenge allows.
const MaxVerificationAttempts = 3

// EmailVerification is a one-time-code challenge for an email address.
// The code itself is only ever stored as a bcrypt hash.
type EmailVerification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"size:255;not null;index" json:"email"`
	CodeHash  string    `gorm:"size:100;not null" json:"-"`
	Attempts  int       `gorm:"not null;default:0" json:"attempts"`
	Verified  bool      `gorm:"not null;default:false;index" json:"verified"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

func (v EmailVerification) Expired(now time.Time) bool { return !now.Before(v.ExpiresAt) }

func (v EmailVerification) Exhausted() bool { return v.Attempts >= MaxVerificationAttempts }

// Active reports whether the challenge can still be answered.
func (v EmailVerification) Active(now time.Time) bool {
	return !v.Verified && !v.Expired(now) && !v.Exhausted()
}
