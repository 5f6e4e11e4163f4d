package domain

import "time"

// Session is a server-tracked activity record, independent of token validity.
// It is valid while now < ExpiresAt and the idle gap since LastActivityAt is
// under the configured timeout; every successful validation slides both
// forward.
type Session struct {
	ID         string `gorm:"primaryKey;size:36"`
	IdentityID string `gorm:"size:36;index;not null"`

	TokenHash string `gorm:"size:64;uniqueIndex;not null"`

	IP        *string `gorm:"size:45"`
	UserAgent *string `gorm:"type:text"`

	LastActivityAt time.Time `gorm:"not null"`
	ExpiresAt      time.Time `gorm:"index;not null"`

	CreatedAt time.Time
}

func (Session) TableName() string { return "sessions" }
