package auth

import "assesshub/internal/domain"

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type VerifyMFARequest struct {
	MFAToken string `json:"mfa_token" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

type RegisterRequest struct {
	InvitationToken string `json:"invitation_token" binding:"required"`
	Password        string `json:"password" binding:"required"`
	Name            string `json:"name" binding:"required"`
	Phone           string `json:"phone"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
	All          bool   `json:"all"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

type EnableMFARequest struct {
	Secret string `json:"secret" binding:"required"`
	Code   string `json:"code" binding:"required"`
}

type DisableMFARequest struct {
	Code string `json:"code" binding:"required"`
}

// LoginResult is returned by Login and VerifyMFA. When MFARequired is set,
// only MFAToken is populated and the caller must complete the second
// factor.
type LoginResult struct {
	Identity *domain.Identity

	AccessToken  string
	RefreshToken string
	SessionToken string

	MFARequired bool
	MFAToken    string
}

type RegisterResult struct {
	Identity *domain.Identity

	// MFASetupRequired means the identity was created but the role mandates
	// MFA; no credentials are issued until enrollment completes.
	MFASetupRequired bool

	AccessToken  string
	RefreshToken string
	SessionToken string
}

type RefreshResult struct {
	AccessToken  string
	RefreshToken string
}

type MFASetup struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

type IdentityPublic struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	TenantID    *string  `json:"tenant_id,omitempty"`
	MFAEnabled  bool     `json:"mfa_enabled"`
	Permissions []string `json:"permissions"`
}
