package repository

import (
	"context"

	"assesshub/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AssignmentRepository struct {
	db *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) Create(ctx context.Context, a *domain.DomainAssignment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AssignmentRepository) ListByIdentity(ctx context.Context, identityID string) ([]domain.DomainAssignment, error) {
	var items []domain.DomainAssignment
	err := r.db.WithContext(ctx).
		Where("identity_id = ?", identityID).
		Find(&items).Error
	return items, err
}
