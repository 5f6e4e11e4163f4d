package delegation

import (
	"context"
	"errors"
	"fmt"

	"assesshub/internal/audit"
	"assesshub/internal/domain"
	"assesshub/internal/notify"

	"gorm.io/gorm"
)

type DelegationRepositoryInterface interface {
	Create(ctx context.Context, g *domain.DelegationGrant) error
	GetByID(ctx context.Context, id string) (*domain.DelegationGrant, error)
	Revoke(ctx context.Context, id string) (bool, error)
	ActiveGrantsFor(ctx context.Context, assessmentID, granteeID string) ([]domain.DelegationGrant, error)
	ListForAssessment(ctx context.Context, assessmentID string) ([]domain.DelegationGrant, error)
	ListForIdentity(ctx context.Context, identityID string) ([]domain.DelegationGrant, error)
}

type AssessmentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Assessment, error)
}

// Service records and evaluates delegation overrides: narrow, auditable
// grants that let one identity reach one assessment (or one of its domains)
// outside the normal role and tenant boundary.
type Service struct {
	grants      DelegationRepositoryInterface
	assessments AssessmentReader
	notifier    notify.Notifier
	recorder    audit.Recorder
	table       *domain.PermissionTable
}

func NewService(
	grants DelegationRepositoryInterface,
	assessments AssessmentReader,
	notifier notify.Notifier,
	recorder audit.Recorder,
	table *domain.PermissionTable,
) *Service {
	return &Service{
		grants:      grants,
		assessments: assessments,
		notifier:    notifier,
		recorder:    recorder,
		table:       table,
	}
}

type GrantParams struct {
	AssessmentID string
	DomainID     *string
	GranteeID    string
	Note         string

	GrantorID     string
	GrantorRole   domain.Role
	GrantorTenant *string
	IP            string
}

// Grant records an override and notifies the grantee. The grantor must hold
// a managing role and, when tenant-scoped, belong to the assessment's
// tenant.
func (s *Service) Grant(ctx context.Context, p GrantParams) (*domain.DelegationGrant, error) {
	if p.GrantorRole != domain.RoleSuperAdmin && p.GrantorRole != domain.RoleClientAdmin {
		return nil, ErrNotAuthorized
	}

	assessment, err := s.assessments.GetByID(ctx, p.AssessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssessmentNotFound
		}
		return nil, err
	}
	if !s.table.CheckTenantAccess(p.GrantorRole, p.GrantorTenant, assessment.TenantID) {
		return nil, ErrNotAuthorized
	}

	grant := &domain.DelegationGrant{
		AssessmentID: p.AssessmentID,
		DomainID:     p.DomainID,
		GranteeID:    p.GranteeID,
		GrantorID:    p.GrantorID,
		Status:       domain.DelegationActive,
		Note:         p.Note,
	}
	if err := s.grants.Create(ctx, grant); err != nil {
		return nil, err
	}

	scope := "the whole assessment"
	if p.DomainID != nil {
		scope = fmt.Sprintf("domain %s", *p.DomainID)
	}
	_ = s.notifier.Notify(ctx, p.GranteeID, "New assessment access",
		fmt.Sprintf("You have been granted access to %s of assessment %s.", scope, assessment.ID))

	s.recorder.Record(ctx, audit.Event{
		Kind:       domain.AuditDelegationGranted,
		IdentityID: &p.GrantorID,
		TenantID:   &assessment.TenantID,
		IP:         p.IP,
		Details: map[string]any{
			"grant_id":      grant.ID,
			"assessment_id": grant.AssessmentID,
			"domain_id":     grant.DomainID,
			"grantee_id":    grant.GranteeID,
		},
	})
	return grant, nil
}

// Revoke flips an active grant to revoked. Revocation is monotonic: an
// already-revoked or missing grant is an error, never a silent success.
func (s *Service) Revoke(ctx context.Context, grantID, byID, ip string) error {
	grant, err := s.grants.GetByID(ctx, grantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGrantNotFound
		}
		return err
	}

	ok, err := s.grants.Revoke(ctx, grantID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyRevoked
	}

	s.recorder.Record(ctx, audit.Event{
		Kind:       domain.AuditDelegationRevoked,
		IdentityID: &byID,
		IP:         ip,
		Details: map[string]any{
			"grant_id":      grant.ID,
			"assessment_id": grant.AssessmentID,
			"grantee_id":    grant.GranteeID,
		},
	})
	return nil
}

// CheckAccess answers the delegation tier of the authorization decision:
// senior tenant-agnostic roles bypass delegation entirely, the assessment's
// creator always has access, otherwise an active grant must cover the
// requested domain (a grant with no domain covers them all).
func (s *Service) CheckAccess(ctx context.Context, identity *domain.Identity, assessmentID string, domainID *string) (bool, error) {
	if identity.Role == domain.RoleSuperAdmin || identity.Role == domain.RoleAnalyst {
		return true, nil
	}

	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrAssessmentNotFound
		}
		return false, err
	}
	if assessment.CreatedBy == identity.ID {
		return true, nil
	}

	grants, err := s.grants.ActiveGrantsFor(ctx, assessmentID, identity.ID)
	if err != nil {
		return false, err
	}
	for i := range grants {
		if grants[i].Covers(domainID) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) ListForAssessment(ctx context.Context, assessmentID string) ([]domain.DelegationGrant, error) {
	return s.grants.ListForAssessment(ctx, assessmentID)
}

func (s *Service) ListForIdentity(ctx context.Context, identityID string) ([]domain.DelegationGrant, error) {
	return s.grants.ListForIdentity(ctx, identityID)
}
