package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"assesshub/internal/domain"
	"assesshub/internal/pkg/token"

	"gorm.io/gorm"
)

var ErrSessionExpired = errors.New("session expired")

// SessionRepositoryInterface — only the methods the tracker uses.
type SessionRepositoryInterface interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByHash(ctx context.Context, hash string) (*domain.Session, error)
	Touch(ctx context.Context, id string, lastActivity, expiresAt time.Time) error
	ListByIdentity(ctx context.Context, identityID string, activeOnly bool) ([]domain.Session, error)
	Delete(ctx context.Context, id, identityID string) (bool, error)
	DeleteAllForIdentity(ctx context.Context, identityID string, exceptID *string) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// Service tracks live sessions with a sliding idle timeout. The activity
// cache is pluggable so a distributed cache can replace the in-process map
// without touching the tracker's logic.
type Service struct {
	sessions SessionRepositoryInterface
	cache    ActivityCache

	timeout    time.Duration
	minTimeout time.Duration
	maxTimeout time.Duration
}

func NewService(sessions SessionRepositoryInterface, cache ActivityCache, timeout, minTimeout, maxTimeout time.Duration) *Service {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Service{
		sessions:   sessions,
		cache:      cache,
		timeout:    timeout,
		minTimeout: minTimeout,
		maxTimeout: maxTimeout,
	}
}

// Create issues a new session. The raw token is returned once and only its
// hash is stored. A requested timeout is clamped into [min, max].
func (s *Service) Create(ctx context.Context, identityID, ip, userAgent string, requested *time.Duration) (string, *domain.Session, error) {
	raw, err := randomToken()
	if err != nil {
		return "", nil, err
	}

	timeout := s.clamp(requested)
	now := time.Now().UTC()

	sess := &domain.Session{
		IdentityID:     identityID,
		TokenHash:      token.HashTokenID(raw),
		IP:             nullableString(ip),
		UserAgent:      nullableString(userAgent),
		LastActivityAt: now,
		ExpiresAt:      now.Add(timeout),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return "", nil, err
	}
	s.cache.Set(sess.ID, now)
	return raw, sess, nil
}

// Validate checks the absolute expiry and the idle window. When extend is
// true a valid session slides forward: last activity moves to now and
// expiry is pushed out by the timeout. Cache updates are best-effort.
func (s *Service) Validate(ctx context.Context, rawToken string, extend bool) (*domain.Session, error) {
	sess, err := s.sessions.GetByHash(ctx, token.HashTokenID(rawToken))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}

	now := time.Now().UTC()
	if !sess.ExpiresAt.After(now) {
		return nil, ErrSessionExpired
	}

	lastActivity := sess.LastActivityAt
	if cached, ok := s.cache.Get(sess.ID); ok && cached.After(lastActivity) {
		lastActivity = cached
	}
	if now.Sub(lastActivity) > s.timeout {
		return nil, ErrSessionExpired
	}

	if extend {
		sess.LastActivityAt = now
		sess.ExpiresAt = now.Add(s.timeout)
		if err := s.sessions.Touch(ctx, sess.ID, sess.LastActivityAt, sess.ExpiresAt); err == nil {
			s.cache.Set(sess.ID, now)
		}
	}
	return sess, nil
}

func (s *Service) List(ctx context.Context, identityID string, activeOnly bool) ([]domain.Session, error) {
	return s.sessions.ListByIdentity(ctx, identityID, activeOnly)
}

// Revoke removes one session; the ownership check lives in the repository
// predicate.
func (s *Service) Revoke(ctx context.Context, sessionID, identityID string) (bool, error) {
	ok, err := s.sessions.Delete(ctx, sessionID, identityID)
	if ok {
		s.cache.Delete(sessionID)
	}
	return ok, err
}

// RevokeAll drops every session of the identity except the named one,
// clearing the matching cache entries so dead ids do not linger.
func (s *Service) RevokeAll(ctx context.Context, identityID string, exceptID *string) (int64, error) {
	if sessions, err := s.sessions.ListByIdentity(ctx, identityID, false); err == nil {
		for _, sess := range sessions {
			if exceptID != nil && sess.ID == *exceptID {
				continue
			}
			s.cache.Delete(sess.ID)
		}
	}
	return s.sessions.DeleteAllForIdentity(ctx, identityID, exceptID)
}

// SweepExpired garbage-collects stale rows. Cache entries idle past the
// timeout cannot extend any session, so they go with the same pass.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx)
	if err == nil {
		s.cache.PruneBefore(time.Now().UTC().Add(-s.timeout))
	}
	return n, err
}

func (s *Service) clamp(requested *time.Duration) time.Duration {
	timeout := s.timeout
	if requested != nil {
		timeout = *requested
	}
	if timeout < s.minTimeout {
		timeout = s.minTimeout
	}
	if timeout > s.maxTimeout {
		timeout = s.maxTimeout
	}
	return timeout
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
