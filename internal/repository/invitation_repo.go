package repository

import (
	"context"
	"time"

	"assesshub/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InvitationRepository struct {
	db *gorm.DB
}

func NewInvitationRepository(db *gorm.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

func (r *InvitationRepository) Create(ctx context.Context, inv *domain.Invitation) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.Email = normalizeEmail(inv.Email)
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *InvitationRepository) GetByID(ctx context.Context, id string) (*domain.Invitation, error) {
	var inv domain.Invitation
	if err := r.db.WithContext(ctx).First(&inv, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvitationRepository) GetByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	var inv domain.Invitation
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// MarkUsed sets used_at once; an already-used invitation yields false.
func (r *InvitationRepository) MarkUsed(ctx context.Context, id string, usedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Invitation{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", usedAt)
	return res.RowsAffected > 0, res.Error
}

// ExpirePendingForEmail force-expires any unused invitation for the email.
// Rows stay in place for the audit trail; at most one live invitation per
// email exists at a time.
func (r *InvitationRepository) ExpirePendingForEmail(ctx context.Context, email string, now time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Invitation{}).
		Where("email = ? AND used_at IS NULL AND expires_at > ?", normalizeEmail(email), now).
		Update("expires_at", now).Error
}

// Reissue swaps in a fresh token and expiry for an unused invitation. The
// old token becomes permanently invalid.
func (r *InvitationRepository) Reissue(ctx context.Context, id, newToken string, expiresAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Invitation{}).
		Where("id = ? AND used_at IS NULL", id).
		Updates(map[string]any{
			"token":      newToken,
			"expires_at": expiresAt,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *InvitationRepository) ListPending(ctx context.Context, tenantID *string, page, pageSize int) ([]domain.Invitation, int64, error) {
	now := time.Now().UTC()
	q := r.db.WithContext(ctx).Model(&domain.Invitation{}).
		Where("used_at IS NULL AND expires_at > ?", now)
	if tenantID != nil {
		q = q.Where("tenant_id = ?", *tenantID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []domain.Invitation
	err := q.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}

func (r *InvitationRepository) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	res := r.db.WithContext(ctx).
		Where("expires_at < ? AND used_at IS NULL", cutoff).
		Delete(&domain.Invitation{})
	return res.RowsAffected, res.Error
}
