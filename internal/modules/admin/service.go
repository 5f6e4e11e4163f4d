package admin

import (
	"context"
	"errors"

	"assesshub/internal/audit"
	"assesshub/internal/domain"
)

var (
	ErrIdentityNotFound = errors.New("identity not found")
	ErrNotManageable    = errors.New("identity not manageable by caller")
	ErrInvalidRole      = errors.New("invalid role")
)

type IdentityRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	SetActive(ctx context.Context, id string, active bool) error
	SetRole(ctx context.Context, id string, role domain.Role) error
	List(ctx context.Context, tenantID *string, page, pageSize int) ([]domain.Identity, int64, error)
}

type SessionRevoker interface {
	RevokeAll(ctx context.Context, identityID string, exceptID *string) (int64, error)
}

type RefreshRevoker interface {
	RevokeAllForIdentity(ctx context.Context, identityID string) (int64, error)
}

// Service covers the administrative identity operations: listing, role
// changes, deactivation and forced credential revocation. Every mutation is
// gated on the caller outranking the target.
type Service struct {
	identities IdentityRepositoryInterface
	sessions   SessionRevoker
	refresh    RefreshRevoker
	table      *domain.PermissionTable
	recorder   audit.Recorder
}

func NewService(
	identities IdentityRepositoryInterface,
	sessions SessionRevoker,
	refresh RefreshRevoker,
	table *domain.PermissionTable,
	recorder audit.Recorder,
) *Service {
	return &Service{
		identities: identities,
		sessions:   sessions,
		refresh:    refresh,
		table:      table,
		recorder:   recorder,
	}
}

// Principal is the acting administrator, as decoded from the access token.
type Principal struct {
	ID       string
	Role     domain.Role
	TenantID *string
}

func (s *Service) ListIdentities(ctx context.Context, p Principal, tenantID *string, page, pageSize int) ([]domain.Identity, int64, error) {
	// Tenant-scoped admins only ever see their own tenant.
	if p.Role.TenantScoped() {
		tenantID = p.TenantID
	}
	return s.identities.List(ctx, tenantID, page, pageSize)
}

func (s *Service) SetRole(ctx context.Context, p Principal, targetID string, role domain.Role, ip string) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	target, err := s.manageable(ctx, p, targetID)
	if err != nil {
		return err
	}
	// The assigned role is capped at the caller's own rank, mirroring the
	// invite matrix: a client admin can make another client admin, never an
	// analyst.
	if !s.table.IsSenior(p.Role, role) && p.Role != role {
		return ErrNotManageable
	}

	if err := s.identities.SetRole(ctx, targetID, role); err != nil {
		return err
	}
	s.record(ctx, p, target, ip, map[string]any{"role": role})
	return nil
}

func (s *Service) SetActive(ctx context.Context, p Principal, targetID string, active bool, ip string) error {
	target, err := s.manageable(ctx, p, targetID)
	if err != nil {
		return err
	}

	if err := s.identities.SetActive(ctx, targetID, active); err != nil {
		return err
	}
	// Deactivation cuts every live credential immediately.
	if !active {
		_, _ = s.refresh.RevokeAllForIdentity(ctx, targetID)
		if s.sessions != nil {
			_, _ = s.sessions.RevokeAll(ctx, targetID, nil)
		}
	}
	s.record(ctx, p, target, ip, map[string]any{"active": active})
	return nil
}

// ForceLogout drops every refresh token and session of the target.
func (s *Service) ForceLogout(ctx context.Context, p Principal, targetID, ip string) error {
	target, err := s.manageable(ctx, p, targetID)
	if err != nil {
		return err
	}

	if _, err := s.refresh.RevokeAllForIdentity(ctx, targetID); err != nil {
		return err
	}
	if s.sessions != nil {
		if _, err := s.sessions.RevokeAll(ctx, targetID, nil); err != nil {
			return err
		}
	}

	s.recorder.Record(ctx, audit.Event{
		Kind:       domain.AuditSessionRevoked,
		IdentityID: &target.ID,
		Email:      &target.Email,
		TenantID:   target.TenantID,
		IP:         ip,
		Details:    map[string]any{"by": p.ID},
	})
	return nil
}

func (s *Service) manageable(ctx context.Context, p Principal, targetID string) (*domain.Identity, error) {
	target, err := s.identities.GetByID(ctx, targetID)
	if err != nil {
		return nil, ErrIdentityNotFound
	}
	if !s.table.CanManage(p.Role, target.Role) {
		return nil, ErrNotManageable
	}
	if !s.table.CheckTenantAccess(p.Role, p.TenantID, stringOrEmpty(target.TenantID)) {
		return nil, ErrNotManageable
	}
	return target, nil
}

func (s *Service) record(ctx context.Context, p Principal, target *domain.Identity, ip string, details map[string]any) {
	details["by"] = p.ID
	s.recorder.Record(ctx, audit.Event{
		Kind:       domain.AuditIdentityUpdated,
		IdentityID: &target.ID,
		Email:      &target.Email,
		TenantID:   target.TenantID,
		IP:         ip,
		Details:    details,
	})
}

func stringOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
