package repository

import (
	"context"
	"time"

	"assesshub/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *SessionRepository) GetByHash(ctx context.Context, hash string) (*domain.Session, error) {
	var s domain.Session
	if err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// Touch advances the sliding window. Best-effort: a lost update only
// shortens the session.
func (r *SessionRepository) Touch(ctx context.Context, id string, lastActivity, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_activity_at": lastActivity,
			"expires_at":       expiresAt,
		}).Error
}

func (r *SessionRepository) ListByIdentity(ctx context.Context, identityID string, activeOnly bool) ([]domain.Session, error) {
	q := r.db.WithContext(ctx).Where("identity_id = ?", identityID)
	if activeOnly {
		q = q.Where("expires_at > ?", time.Now().UTC())
	}
	var sessions []domain.Session
	err := q.Order("last_activity_at DESC").Find(&sessions).Error
	return sessions, err
}

// Delete removes a session owned by identityID; the ownership predicate is
// part of the query so a caller can never revoke someone else's session.
func (r *SessionRepository) Delete(ctx context.Context, id, identityID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND identity_id = ?", id, identityID).
		Delete(&domain.Session{})
	return res.RowsAffected > 0, res.Error
}

func (r *SessionRepository) DeleteAllForIdentity(ctx context.Context, identityID string, exceptID *string) (int64, error) {
	q := r.db.WithContext(ctx).Where("identity_id = ?", identityID)
	if exceptID != nil {
		q = q.Where("id <> ?", *exceptID)
	}
	res := q.Delete(&domain.Session{})
	return res.RowsAffected, res.Error
}

func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", time.Now().UTC()).
		Delete(&domain.Session{})
	return res.RowsAffected, res.Error
}
