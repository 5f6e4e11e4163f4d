package domain

import "time"

// Invitation is a single-use, time-boxed onboarding token that pre-binds
// role, tenant and optional domain scope. Superseded invitations are
// force-expired rather than deleted so the audit trail stays intact.
type Invitation struct {
	ID    string `json:"id" gorm:"primaryKey;size:36"`
	Token string `json:"-" gorm:"size:128;uniqueIndex;not null"`

	Email    string  `json:"email" gorm:"size:255;index;not null"`
	Role     Role    `json:"role" gorm:"size:32;not null"`
	TenantID *string `json:"tenant_id,omitempty" gorm:"size:36"`

	// DomainIDs limits an assessor to specific assessment domains.
	DomainIDs []string `json:"domain_ids,omitempty" gorm:"type:json;serializer:json"`

	ExpiresAt time.Time  `json:"expires_at" gorm:"not null"`
	UsedAt    *time.Time `json:"used_at,omitempty"`

	InvitedBy *string `json:"invited_by,omitempty" gorm:"size:36"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Invitation) TableName() string { return "invitations" }

func (inv *Invitation) Expired(now time.Time) bool {
	return !inv.ExpiresAt.After(now)
}

func (inv *Invitation) Used() bool {
	return inv.UsedAt != nil
}
