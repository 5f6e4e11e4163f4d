package repository

import (
	"context"

	"assesshub/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AssessmentRepository struct {
	db *gorm.DB
}

func NewAssessmentRepository(db *gorm.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

func (r *AssessmentRepository) Create(ctx context.Context, a *domain.Assessment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AssessmentRepository) GetByID(ctx context.Context, id string) (*domain.Assessment, error) {
	var a domain.Assessment
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}
