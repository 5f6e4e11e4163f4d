package repository

import (
	"context"
	"time"

	"assesshub/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DelegationRepository struct {
	db *gorm.DB
}

func NewDelegationRepository(db *gorm.DB) *DelegationRepository {
	return &DelegationRepository{db: db}
}

func (r *DelegationRepository) Create(ctx context.Context, g *domain.DelegationGrant) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(g).Error
}

func (r *DelegationRepository) GetByID(ctx context.Context, id string) (*domain.DelegationGrant, error) {
	var g domain.DelegationGrant
	if err := r.db.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// Revoke flips status once. An already-revoked or missing grant yields
// false; grants are never un-revoked.
func (r *DelegationRepository) Revoke(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.DelegationGrant{}).
		Where("id = ? AND status = ?", id, domain.DelegationActive).
		Updates(map[string]any{
			"status":     domain.DelegationRevoked,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}

// ActiveGrantsFor returns the grantee's active grants on one assessment.
func (r *DelegationRepository) ActiveGrantsFor(ctx context.Context, assessmentID, granteeID string) ([]domain.DelegationGrant, error) {
	var grants []domain.DelegationGrant
	err := r.db.WithContext(ctx).
		Where("assessment_id = ? AND grantee_id = ? AND status = ?", assessmentID, granteeID, domain.DelegationActive).
		Find(&grants).Error
	return grants, err
}

func (r *DelegationRepository) ListForAssessment(ctx context.Context, assessmentID string) ([]domain.DelegationGrant, error) {
	var grants []domain.DelegationGrant
	err := r.db.WithContext(ctx).
		Where("assessment_id = ? AND status = ?", assessmentID, domain.DelegationActive).
		Order("created_at DESC").
		Find(&grants).Error
	return grants, err
}

func (r *DelegationRepository) ListForIdentity(ctx context.Context, identityID string) ([]domain.DelegationGrant, error) {
	var grants []domain.DelegationGrant
	err := r.db.WithContext(ctx).
		Where("grantee_id = ? AND status = ?", identityID, domain.DelegationActive).
		Order("created_at DESC").
		Find(&grants).Error
	return grants, err
}
