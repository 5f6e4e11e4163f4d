package invitation

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"assesshub/internal/audit"
	"assesshub/internal/domain"
	"assesshub/internal/notify"

	"gorm.io/gorm"
)

// InvitationRepositoryInterface — storage for invitations.
type InvitationRepositoryInterface interface {
	Create(ctx context.Context, inv *domain.Invitation) error
	GetByID(ctx context.Context, id string) (*domain.Invitation, error)
	GetByToken(ctx context.Context, token string) (*domain.Invitation, error)
	ExpirePendingForEmail(ctx context.Context, email string, now time.Time) error
	Reissue(ctx context.Context, id, newToken string, expiresAt time.Time) (bool, error)
	ListPending(ctx context.Context, tenantID *string, page, pageSize int) ([]domain.Invitation, int64, error)
}

type IdentityExistsChecker interface {
	ExistsActiveByEmail(ctx context.Context, email string) (bool, error)
}

// Service manages the invitation lifecycle: issue, validate, reissue, list.
// Consumption happens inside the registration transaction, owned by the
// auth orchestrator.
type Service struct {
	invitations InvitationRepositoryInterface
	identities  IdentityExistsChecker
	notifier    notify.EmailNotifier
	recorder    audit.Recorder
	table       *domain.PermissionTable
	ttl         time.Duration
}

func NewService(
	invitations InvitationRepositoryInterface,
	identities IdentityExistsChecker,
	notifier notify.EmailNotifier,
	recorder audit.Recorder,
	table *domain.PermissionTable,
	ttl time.Duration,
) *Service {
	return &Service{
		invitations: invitations,
		identities:  identities,
		notifier:    notifier,
		recorder:    recorder,
		table:       table,
		ttl:         ttl,
	}
}

type CreateParams struct {
	Email     string
	Role      domain.Role
	TenantID  *string
	DomainIDs []string

	InviterID   string
	InviterRole domain.Role
	IP          string
}

// Create issues a fresh invitation. Any other live invitation for the same
// email is force-expired first, so at most one is redeemable at a time.
func (s *Service) Create(ctx context.Context, p CreateParams) (*domain.Invitation, error) {
	if !s.table.CanInvite(p.InviterRole, p.Role) {
		return nil, ErrRoleNotInvitable
	}
	if p.Role.TenantScoped() && p.TenantID == nil {
		return nil, ErrTenantRequired
	}

	exists, err := s.identities.ExistsActiveByEmail(ctx, p.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailRegistered
	}

	now := time.Now().UTC()
	if err := s.invitations.ExpirePendingForEmail(ctx, p.Email, now); err != nil {
		return nil, err
	}

	tok, err := generateToken()
	if err != nil {
		return nil, err
	}

	inv := &domain.Invitation{
		Token:     tok,
		Email:     p.Email,
		Role:      p.Role,
		TenantID:  p.TenantID,
		DomainIDs: p.DomainIDs,
		ExpiresAt: now.Add(s.ttl),
		InvitedBy: &p.InviterID,
	}
	if err := s.invitations.Create(ctx, inv); err != nil {
		return nil, err
	}

	_ = s.notifier.NotifyEmail(ctx, inv.Email, "You have been invited",
		"An account has been prepared for you. Use your invitation link to register.")

	s.recorder.Record(ctx, audit.Event{
		Kind:       domain.AuditInvitationCreated,
		IdentityID: &p.InviterID,
		Email:      &inv.Email,
		TenantID:   inv.TenantID,
		IP:         p.IP,
		Details:    map[string]any{"role": inv.Role, "invitation_id": inv.ID},
	})
	return inv, nil
}

// Validate resolves a token without consuming it.
func (s *Service) Validate(ctx context.Context, token string) (*domain.Invitation, error) {
	inv, err := s.invitations.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if inv.Used() {
		return nil, ErrUsed
	}
	if inv.Expired(time.Now().UTC()) {
		return nil, ErrExpired
	}
	return inv, nil
}

// Resend replaces the token and expiry in place; the old token becomes
// permanently invalid. Only unused invitations can be reissued.
func (s *Service) Resend(ctx context.Context, id, byID string, ip string) (*domain.Invitation, error) {
	inv, err := s.invitations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if inv.Used() {
		return nil, ErrUsed
	}

	tok, err := generateToken()
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().UTC().Add(s.ttl)

	ok, err := s.invitations.Reissue(ctx, id, tok, expiresAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUsed
	}

	inv.Token = tok
	inv.ExpiresAt = expiresAt

	_ = s.notifier.NotifyEmail(ctx, inv.Email, "Your invitation was renewed",
		"A new invitation link has been issued for your registration.")

	s.recorder.Record(ctx, audit.Event{
		Kind:       domain.AuditInvitationResent,
		IdentityID: &byID,
		Email:      &inv.Email,
		TenantID:   inv.TenantID,
		IP:         ip,
		Details:    map[string]any{"invitation_id": inv.ID},
	})
	return inv, nil
}

// ListPending returns redeemable invitations, tenant-scoped when tenantID
// is set.
func (s *Service) ListPending(ctx context.Context, tenantID *string, page, pageSize int) ([]domain.Invitation, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 25
	}
	return s.invitations.ListPending(ctx, tenantID, page, pageSize)
}

func generateToken() (string, error) {
	buf := make([]byte, 64)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
