package repository

import (
	"context"
	"strings"
	"time"

	"assesshub/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type IdentityRepository struct {
	db *gorm.DB
}

func NewIdentityRepository(db *gorm.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) DB() *gorm.DB { return r.db }

func (r *IdentityRepository) Create(ctx context.Context, id *domain.Identity) error {
	if id.ID == "" {
		id.ID = uuid.NewString()
	}
	id.Email = normalizeEmail(id.Email)
	return r.db.WithContext(ctx).Create(id).Error
}

func (r *IdentityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	var m domain.Identity
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	var m domain.Identity
	err := r.db.WithContext(ctx).
		Where("email = ?", normalizeEmail(email)).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *IdentityRepository) ExistsActiveByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Identity{}).
		Where("email = ? AND active = ?", normalizeEmail(email), true).
		Count(&count).Error
	return count > 0, err
}

func (r *IdentityRepository) Update(ctx context.Context, id *domain.Identity) error {
	return r.db.WithContext(ctx).Save(id).Error
}

// RecordLoginFailure bumps the failed-attempt counter and arms the lockout
// window in a single conditional UPDATE, so two concurrent failures cannot
// both observe threshold-1 and neither trigger the lock.
func (r *IdentityRepository) RecordLoginFailure(ctx context.Context, id string, threshold int, lockUntil time.Time) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE identities
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE WHEN failed_login_attempts + 1 >= ? THEN ? ELSE locked_until END
		WHERE id = ?`,
		threshold, lockUntil, id,
	).Error
}

// ResetLockout clears the guard state after a successful authentication and
// stamps the login time.
func (r *IdentityRepository) ResetLockout(ctx context.Context, id string, loginAt time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Identity{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"failed_login_attempts": 0,
			"locked_until":          nil,
			"last_login_at":         loginAt,
		}).Error
}

func (r *IdentityRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.db.WithContext(ctx).Model(&domain.Identity{}).
		Where("id = ?", id).
		Update("password_hash", hash).Error
}

func (r *IdentityRepository) SetMFA(ctx context.Context, id string, enabled bool, secret *string, backupCodes []string) error {
	return r.db.WithContext(ctx).Model(&domain.Identity{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"mfa_enabled":      enabled,
			"mfa_secret":       secret,
			"mfa_backup_codes": backupCodes,
		}).Error
}

// ConsumeBackupCode removes one matching backup code hash. Used codes never
// verify again.
func (r *IdentityRepository) ConsumeBackupCode(ctx context.Context, id *domain.Identity, codeHash string) (bool, error) {
	for idx, h := range id.MFABackupCodes {
		if h == codeHash {
			remaining := append(append([]string{}, id.MFABackupCodes[:idx]...), id.MFABackupCodes[idx+1:]...)
			err := r.db.WithContext(ctx).Model(&domain.Identity{}).
				Where("id = ?", id.ID).
				Update("mfa_backup_codes", remaining).Error
			if err != nil {
				return false, err
			}
			id.MFABackupCodes = remaining
			return true, nil
		}
	}
	return false, nil
}

func (r *IdentityRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.db.WithContext(ctx).Model(&domain.Identity{}).
		Where("id = ?", id).
		Update("active", active).Error
}

func (r *IdentityRepository) SetRole(ctx context.Context, id string, role domain.Role) error {
	return r.db.WithContext(ctx).Model(&domain.Identity{}).
		Where("id = ?", id).
		Update("role", role).Error
}

// List returns identities, tenant-scoped when tenantID is set.
func (r *IdentityRepository) List(ctx context.Context, tenantID *string, page, pageSize int) ([]domain.Identity, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Identity{})
	if tenantID != nil {
		q = q.Where("tenant_id = ?", *tenantID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []domain.Identity
	err := q.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
