package domain

import "time"

type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleAnalyst     Role = "analyst"
	RoleClientAdmin Role = "client_admin"
	RoleAssessor    Role = "assessor"
)

// TenantScoped reports whether identities with this role belong to a single
// tenant. Super admins and analysts operate across tenants.
func (r Role) TenantScoped() bool {
	return r == RoleClientAdmin || r == RoleAssessor
}

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAnalyst, RoleClientAdmin, RoleAssessor:
		return true
	}
	return false
}

// Identity is an authenticated principal. PasswordHash is nil for SSO-only
// identities. Identities are never hard-deleted, only deactivated.
type Identity struct {
	ID           string  `json:"id" gorm:"primaryKey;size:36"`
	Email        string  `json:"email" gorm:"size:255;uniqueIndex;not null"`
	PasswordHash *string `json:"-" gorm:"size:255"`
	Name         string  `json:"name" gorm:"size:255"`
	Phone        string  `json:"phone,omitempty" gorm:"size:20"`

	Role     Role    `json:"role" gorm:"size:32;index;not null"`
	TenantID *string `json:"tenant_id,omitempty" gorm:"size:36;index"`

	Active   bool `json:"active" gorm:"not null;default:true"`
	Verified bool `json:"verified" gorm:"not null;default:false"`

	MFAEnabled     bool     `json:"mfa_enabled" gorm:"not null;default:false"`
	MFASecret      *string  `json:"-" gorm:"size:255"`
	MFABackupCodes []string `json:"-" gorm:"type:json;serializer:json"`

	FailedLoginAttempts int        `json:"-" gorm:"not null;default:0"`
	LockedUntil         *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`

	CreatedByInvitationID *string `json:"-" gorm:"size:36"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Identity) TableName() string { return "identities" }

// Locked reports whether the identity is inside an active lockout window.
func (i *Identity) Locked(now time.Time) bool {
	return i.LockedUntil != nil && i.LockedUntil.After(now)
}
