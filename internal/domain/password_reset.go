package domain

import "time"

// PasswordResetToken is the single-use credential behind the
// forgot-password flow. Only the SHA-256 hash of the raw token is stored;
// a row with UsedAt set never redeems again.
type PasswordResetToken struct {
	ID         string `gorm:"primaryKey;size:36"`
	IdentityID string `gorm:"size:36;index;not null"`

	TokenHash string `gorm:"size:64;uniqueIndex;not null"`

	ExpiresAt time.Time `gorm:"index;not null"`
	UsedAt    *time.Time

	CreatedAt time.Time
}

func (PasswordResetToken) TableName() string { return "password_reset_tokens" }

func (t *PasswordResetToken) Used() bool { return t.UsedAt != nil }

func (t *PasswordResetToken) Expired(now time.Time) bool { return !t.ExpiresAt.After(now) }
