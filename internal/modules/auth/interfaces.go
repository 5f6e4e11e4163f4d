package auth

import (
	"context"
	"time"

	"assesshub/internal/domain"
	"assesshub/internal/pkg/token"

	"gorm.io/gorm"
)

// IdentityRepositoryInterface — only the methods the orchestrator uses.
// DB exposes the handle for multi-table transactions (registration,
// refresh rotation).
type IdentityRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	RecordLoginFailure(ctx context.Context, id string, threshold int, lockUntil time.Time) error
	ResetLockout(ctx context.Context, id string, loginAt time.Time) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	SetMFA(ctx context.Context, id string, enabled bool, secret *string, backupCodes []string) error
	ConsumeBackupCode(ctx context.Context, id *domain.Identity, codeHash string) (bool, error)
	DB() *gorm.DB
}

// PasswordResetRepositoryInterface stores the one-shot reset credentials.
// Consume must be a compare-and-set so two concurrent redemptions of the
// same token cannot both succeed.
type PasswordResetRepositoryInterface interface {
	Create(ctx context.Context, t *domain.PasswordResetToken) error
	GetByHash(ctx context.Context, hash string) (*domain.PasswordResetToken, error)
	Consume(ctx context.Context, id string) (bool, error)
	InvalidatePendingForIdentity(ctx context.Context, identityID string) error
}

type RefreshTokenRepositoryInterface interface {
	Create(ctx context.Context, t *domain.RefreshToken) error
	RevokeByHash(ctx context.Context, hash string) (bool, error)
	RevokeAllForIdentity(ctx context.Context, identityID string) (int64, error)
}

type tokenIssuer interface {
	IssueAccess(p token.AccessParams) (string, error)
	IssueRefresh(identityID string) (signed string, jti string, err error)
	IssueMFAPending(identityID, email string) (string, error)
	Validate(tokenStr, expectedType string) (*token.Claims, error)
}

// SessionTracker is optional; when present, logins create a parallel
// session record and revoke-all logouts clear them.
type SessionTracker interface {
	Create(ctx context.Context, identityID, ip, userAgent string, requested *time.Duration) (string, *domain.Session, error)
	RevokeAll(ctx context.Context, identityID string, exceptID *string) (int64, error)
}

// AssignmentLister reads the domain assignments pre-bound at registration.
type AssignmentLister interface {
	ListByIdentity(ctx context.Context, identityID string) ([]domain.DomainAssignment, error)
}
