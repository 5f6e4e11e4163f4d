package invitation

import "errors"

var (
	ErrNotFound         = errors.New("invitation not found")
	ErrExpired          = errors.New("invitation expired")
	ErrUsed             = errors.New("invitation already used")
	ErrEmailRegistered  = errors.New("email already registered")
	ErrRoleNotInvitable = errors.New("inviter cannot assign this role")
	ErrTenantRequired   = errors.New("tenant required for tenant-scoped role")
)
