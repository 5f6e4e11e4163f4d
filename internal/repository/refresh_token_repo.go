package repository

import (
	"context"
	"time"

	"assesshub/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RefreshTokenRepository stores refresh token records. Only hashes of token
// ids are persisted; revocation is a compare-and-set on revoked_at.
type RefreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *RefreshTokenRepository) GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	if err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// Revoke marks the record revoked and reports whether this call won the
// race; a record already revoked yields false.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", time.Now().UTC())
	return res.RowsAffected > 0, res.Error
}

func (r *RefreshTokenRepository) RevokeByHash(ctx context.Context, hash string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hash).
		Update("revoked_at", time.Now().UTC())
	return res.RowsAffected > 0, res.Error
}

func (r *RefreshTokenRepository) RevokeAllForIdentity(ctx context.Context, identityID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("identity_id = ? AND revoked_at IS NULL", identityID).
		Update("revoked_at", time.Now().UTC())
	return res.RowsAffected, res.Error
}

// DeleteExpired removes records past expiry or revoked longer than the
// retention window ago.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Where("expires_at < ? OR revoked_at < ?", now, now.Add(-retention)).
		Delete(&domain.RefreshToken{})
	return res.RowsAffected, res.Error
}
