package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"assesshub/internal/audit"
	"assesshub/internal/domain"
	"assesshub/internal/pkg/token"

	"gorm.io/gorm"
)

// resetMessagePrefix precedes the raw token in the delivery message. The
// token travels only through the delivery collaborator, never in an API
// response.
const resetMessagePrefix = "Use this token to choose a new password: "

// RequestPasswordReset issues a one-shot reset token and hands it to the
// delivery collaborator. The caller always gets a generic answer: an
// unknown or deactivated email produces no token and nothing
// distinguishable.
func (s *Service) RequestPasswordReset(ctx context.Context, email, ip, userAgent string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	identity, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.auditFailure(ctx, nil, &email, ip, userAgent, "reset_unknown_email")
			return nil
		}
		return err
	}
	if !identity.Active {
		s.auditFailure(ctx, &identity.ID, &identity.Email, ip, userAgent, "reset_deactivated")
		return nil
	}

	// At most one redeemable token per identity.
	if err := s.resets.InvalidatePendingForIdentity(ctx, identity.ID); err != nil {
		return err
	}

	raw, err := generateResetToken()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := s.resets.Create(ctx, &domain.PasswordResetToken{
		IdentityID: identity.ID,
		TokenHash:  token.HashTokenID(raw),
		ExpiresAt:  now.Add(s.cfg.ResetTTL),
	}); err != nil {
		return err
	}

	_ = s.notifier.Notify(ctx, identity.ID, "Password reset requested", resetMessagePrefix+raw)

	s.recorder.Record(ctx, audit.Event{
		Kind:       domain.AuditResetRequested,
		IdentityID: &identity.ID,
		Email:      &identity.Email,
		TenantID:   identity.TenantID,
		IP:         ip,
		UserAgent:  nullableString(userAgent),
	})
	return nil
}

// ResetPassword redeems a reset token. The token is consumed with a
// compare-and-set, the policy applies to the replacement password and
// every outstanding credential of the identity is revoked.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword, ip string) error {
	if ok, missing := s.policy.Validate(newPassword); !ok {
		return &PasswordPolicyError{Missing: missing}
	}

	rec, err := s.resets.GetByHash(ctx, token.HashTokenID(rawToken))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return token.ErrTokenInvalid
		}
		return err
	}
	if rec.Used() {
		return token.ErrTokenInvalid
	}
	if rec.Expired(time.Now().UTC()) {
		return token.ErrTokenExpired
	}

	identity, err := s.identities.GetByID(ctx, rec.IdentityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return token.ErrTokenInvalid
		}
		return err
	}
	if !identity.Active {
		return ErrAccountDeactivated
	}

	ok, err := s.resets.Consume(ctx, rec.ID)
	if err != nil {
		return err
	}
	if !ok {
		return token.ErrTokenInvalid
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.identities.UpdatePasswordHash(ctx, identity.ID, hash); err != nil {
		return err
	}

	// Proof of control over the email ends every live credential.
	if _, err := s.refreshTokens.RevokeAllForIdentity(ctx, identity.ID); err != nil {
		return err
	}
	if s.sessions != nil {
		_, _ = s.sessions.RevokeAll(ctx, identity.ID, nil)
	}

	s.recorder.Record(ctx, audit.Event{
		Kind:       domain.AuditPasswordReset,
		IdentityID: &identity.ID,
		Email:      &identity.Email,
		TenantID:   identity.TenantID,
		IP:         ip,
	})
	return nil
}

func generateResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
