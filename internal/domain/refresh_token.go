package domain

import "time"

// RefreshToken tracks an issued refresh credential.
//
// Only the SHA-256 hash of the token's unique id is stored, never the raw
// token. Rotation revokes the current row and inserts a replacement; a row
// with RevokedAt set must never authorize a refresh again.
type RefreshToken struct {
	ID         string `gorm:"primaryKey;size:36"`
	IdentityID string `gorm:"size:36;index;not null"`

	TokenHash string `gorm:"size:64;uniqueIndex;not null"`

	ExpiresAt time.Time `gorm:"index;not null"`
	RevokedAt *time.Time

	UserAgent *string `gorm:"type:text"`
	IP        *string `gorm:"size:45"`

	CreatedAt time.Time
}

func (RefreshToken) TableName() string { return "refresh_tokens" }
