package repository

import (
	"context"
	"time"

	"assesshub/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PasswordResetRepository stores reset tokens. Consumption is a
// compare-and-set on used_at, the same discipline as refresh token
// revocation.
type PasswordResetRepository struct {
	db *gorm.DB
}

func NewPasswordResetRepository(db *gorm.DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

func (r *PasswordResetRepository) Create(ctx context.Context, t *domain.PasswordResetToken) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *PasswordResetRepository) GetByHash(ctx context.Context, hash string) (*domain.PasswordResetToken, error) {
	var t domain.PasswordResetToken
	if err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// Consume marks the token used and reports whether this call won the race.
func (r *PasswordResetRepository) Consume(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.PasswordResetToken{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", time.Now().UTC())
	return res.RowsAffected > 0, res.Error
}

// InvalidatePendingForIdentity burns every unredeemed token of the
// identity, so at most one reset token is live at a time.
func (r *PasswordResetRepository) InvalidatePendingForIdentity(ctx context.Context, identityID string) error {
	return r.db.WithContext(ctx).Model(&domain.PasswordResetToken{}).
		Where("identity_id = ? AND used_at IS NULL", identityID).
		Update("used_at", time.Now().UTC()).Error
}

func (r *PasswordResetRepository) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Where("expires_at < ? OR used_at < ?", now, now.Add(-retention)).
		Delete(&domain.PasswordResetToken{})
	return res.RowsAffected, res.Error
}
