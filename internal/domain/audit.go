package domain

import "time"

type AuditKind string

const (
	AuditLoginSuccess      AuditKind = "login_success"
	AuditLoginFailed       AuditKind = "login_failed"
	AuditAccountLocked     AuditKind = "account_locked"
	AuditLogout            AuditKind = "logout"
	AuditTokenRefreshed    AuditKind = "token_refreshed"
	AuditRefreshReplay     AuditKind = "refresh_replay"
	AuditMFAVerified       AuditKind = "mfa_verified"
	AuditMFAFailed         AuditKind = "mfa_failed"
	AuditMFAEnabled        AuditKind = "mfa_enabled"
	AuditMFADisabled       AuditKind = "mfa_disabled"
	AuditPasswordChanged   AuditKind = "password_changed"
	AuditResetRequested    AuditKind = "password_reset_requested"
	AuditPasswordReset     AuditKind = "password_reset"
	AuditRegistered        AuditKind = "registered"
	AuditInvitationCreated AuditKind = "invitation_created"
	AuditInvitationUsed    AuditKind = "invitation_used"
	AuditInvitationResent  AuditKind = "invitation_resent"
	AuditDelegationGranted AuditKind = "delegation_granted"
	AuditDelegationRevoked AuditKind = "delegation_revoked"
	AuditSessionRevoked    AuditKind = "session_revoked"
	AuditIdentityUpdated   AuditKind = "identity_updated"
)

// AuditEvent is an append-only record of a security-relevant outcome.
// Rows are never updated or deleted.
type AuditEvent struct {
	ID   string    `json:"id" gorm:"primaryKey;size:36"`
	Kind AuditKind `json:"kind" gorm:"size:48;index;not null"`

	IdentityID *string `json:"identity_id,omitempty" gorm:"size:36;index"`
	Email      *string `json:"email,omitempty" gorm:"size:255"`
	TenantID   *string `json:"tenant_id,omitempty" gorm:"size:36;index"`

	IP        string  `json:"ip" gorm:"size:45"`
	UserAgent *string `json:"user_agent,omitempty" gorm:"type:text"`

	Details map[string]any `json:"details,omitempty" gorm:"type:json;serializer:json"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (AuditEvent) TableName() string { return "audit_events" }
