package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"assesshub/internal/audit"
	"assesshub/internal/domain"
	"assesshub/internal/modules/invitation"
	"assesshub/internal/notify"
	"assesshub/internal/pkg/password"
	"assesshub/internal/pkg/token"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Config is the orchestrator's runtime policy.
type Config struct {
	MaxLoginAttempts  int
	LockoutDuration   time.Duration
	RefreshTTL        time.Duration
	ResetTTL          time.Duration
	MFAMandatoryRoles map[domain.Role]bool
	MFAIssuer         string
}

// Service composes the credential, token, session, guard, invitation and
// permission pieces into the login, registration, refresh and logout
// protocols.
type Service struct {
	identities    IdentityRepositoryInterface
	refreshTokens RefreshTokenRepositoryInterface
	resets        PasswordResetRepositoryInterface
	sessions      SessionTracker
	tokens        tokenIssuer
	hasher        *password.Hasher
	policy        password.Policy
	table         *domain.PermissionTable
	recorder      audit.Recorder
	notifier      notify.Notifier
	cfg           Config
}

func NewService(
	identities IdentityRepositoryInterface,
	refreshTokens RefreshTokenRepositoryInterface,
	resets PasswordResetRepositoryInterface,
	sessions SessionTracker,
	tokens tokenIssuer,
	hasher *password.Hasher,
	policy password.Policy,
	table *domain.PermissionTable,
	recorder audit.Recorder,
	notifier notify.Notifier,
	cfg Config,
) *Service {
	return &Service{
		identities:    identities,
		refreshTokens: refreshTokens,
		resets:        resets,
		sessions:      sessions,
		tokens:        tokens,
		hasher:        hasher,
		policy:        policy,
		table:         table,
		recorder:      recorder,
		notifier:      notifier,
		cfg:           cfg,
	}
}

// Login authenticates an identity with email and password.
//
// The ordering is deliberate: lockout is checked before the password so a
// locked account answers identically for right and wrong passwords, and an
// unknown email takes the same failure path as a wrong password.
func (s *Service) Login(ctx context.Context, req LoginRequest, ip, userAgent string) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	identity, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.auditFailure(ctx, nil, &email, ip, userAgent, "unknown_email")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := time.Now().UTC()
	if identity.Locked(now) {
		s.auditFailure(ctx, &identity.ID, &identity.Email, ip, userAgent, "locked")
		return nil, &AccountLockedError{RetryAfter: identity.LockedUntil.Sub(now)}
	}
	if !identity.Active {
		s.auditFailure(ctx, &identity.ID, &identity.Email, ip, userAgent, "deactivated")
		return nil, ErrAccountDeactivated
	}

	if identity.PasswordHash == nil || !s.hasher.Verify(req.Password, *identity.PasswordHash) {
		return nil, s.handleFailedLogin(ctx, identity, ip, userAgent)
	}

	// Opportunistic rehash when the stored hash predates current costs.
	if s.hasher.NeedsRehash(*identity.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(req.Password); hashErr == nil {
			_ = s.identities.UpdatePasswordHash(ctx, identity.ID, newHash)
		}
	}

	if err := s.identities.ResetLockout(ctx, identity.ID, now); err != nil {
		return nil, err
	}
	identity.FailedLoginAttempts = 0
	identity.LockedUntil = nil
	identity.LastLoginAt = &now

	if identity.MFAEnabled {
		mfaToken, err := s.tokens.IssueMFAPending(identity.ID, identity.Email)
		if err != nil {
			return nil, err
		}
		return &LoginResult{Identity: identity, MFARequired: true, MFAToken: mfaToken}, nil
	}

	// A role that mandates MFA never gets in without enrollment.
	if s.cfg.MFAMandatoryRoles[identity.Role] {
		s.auditFailure(ctx, &identity.ID, &identity.Email, ip, userAgent, "mfa_setup_required")
		return nil, ErrMFASetupRequired
	}

	return s.issueCredentials(ctx, identity, ip, userAgent, false)
}

// VerifyMFA completes the second factor and proceeds exactly as the
// post-password success path of Login.
func (s *Service) VerifyMFA(ctx context.Context, req VerifyMFARequest, ip, userAgent string) (*LoginResult, error) {
	claims, err := s.tokens.Validate(req.MFAToken, token.TypeMFAPending)
	if err != nil {
		return nil, err
	}

	identity, err := s.identities.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, token.ErrTokenInvalid
		}
		return nil, err
	}
	if !identity.Active {
		return nil, ErrAccountDeactivated
	}
	if !identity.MFAEnabled || identity.MFASecret == nil {
		return nil, ErrMFANotEnabled
	}

	ok, err := s.verifySecondFactor(ctx, identity, req.Code)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.recorder.Record(ctx, audit.Event{
			Kind:       domain.AuditMFAFailed,
			IdentityID: &identity.ID,
			Email:      &identity.Email,
			TenantID:   identity.TenantID,
			IP:         ip,
			UserAgent:  nullableString(userAgent),
		})
		return nil, ErrMFAInvalidCode
	}

	now := time.Now().UTC()
	if err := s.identities.ResetLockout(ctx, identity.ID, now); err != nil {
		return nil, err
	}
	identity.LastLoginAt = &now

	s.recorder.Record(ctx, audit.Event{
		Kind:       domain.AuditMFAVerified,
		IdentityID: &identity.ID,
		Email:      &identity.Email,
		TenantID:   identity.TenantID,
		IP:         ip,
		UserAgent:  nullableString(userAgent),
	})
	return s.issueCredentials(ctx, identity, ip, userAgent, true)
}

// Register creates an identity from an invitation. The invitation consume
// and the identity insert commit together: a crash cannot leave a used
// invitation without an identity, or the reverse.
func (s *Service) Register(ctx context.Context, req RegisterRequest, ip, userAgent string) (*RegisterResult, error) {
	if ok, missing := s.policy.Validate(req.Password); !ok {
		return nil, &PasswordPolicyError{Missing: missing}
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var identity *domain.Identity
	var inv domain.Invitation

	err = s.identities.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).
			Where("token = ?", req.InvitationToken).
			First(&inv).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return invitation.ErrNotFound
			}
			return err
		}
		if inv.Used() {
			return invitation.ErrUsed
		}
		if inv.Expired(now) {
			return invitation.ErrExpired
		}

		var count int64
		if err := tx.Model(&domain.Identity{}).
			Where("email = ? AND active = ?", inv.Email, true).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return invitation.ErrEmailRegistered
		}

		identity = &domain.Identity{
			ID:                    uuid.NewString(),
			Email:                 inv.Email,
			PasswordHash:          &hash,
			Name:                  req.Name,
			Phone:                 req.Phone,
			Role:                  inv.Role,
			TenantID:              inv.TenantID,
			Active:                true,
			Verified:              true, // trust transferred from the invitation
			CreatedByInvitationID: &inv.ID,
		}
		if err := tx.Create(identity).Error; err != nil {
			return err
		}

		if len(inv.DomainIDs) > 0 {
			assignment := &domain.DomainAssignment{
				ID:         uuid.NewString(),
				IdentityID: identity.ID,
				DomainIDs:  inv.DomainIDs,
				AssignedBy: inv.InvitedBy,
			}
			if err := tx.Create(assignment).Error; err != nil {
				return err
			}
		}

		res := tx.Model(&domain.Invitation{}).
			Where("id = ? AND used_at IS NULL", inv.ID).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return invitation.ErrUsed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Event{
		Kind:       domain.AuditRegistered,
		IdentityID: &identity.ID,
		Email:      &identity.Email,
		TenantID:   identity.TenantID,
		IP:         ip,
		UserAgent:  nullableString(userAgent),
		Details:    map[string]any{"invitation_id": inv.ID, "role": identity.Role},
	})
	s.recorder.Record(ctx, audit.Event{
		Kind:       domain.AuditInvitationUsed,
		IdentityID: &identity.ID,
		Email:      &identity.Email,
		TenantID:   identity.TenantID,
		IP:         ip,
		Details:    map[string]any{"invitation_id": inv.ID},
	})

	if s.cfg.MFAMandatoryRoles[identity.Role] {
		return &RegisterResult{Identity: identity, MFASetupRequired: true}, nil
	}

	login, err := s.issueCredentials(ctx, identity, ip, userAgent, false)
	if err != nil {
		return nil, err
	}
	return &RegisterResult{
		Identity:     identity,
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
		SessionToken: login.SessionToken,
	}, nil
}

// Refresh rotates a refresh token. Validation and revocation of the old
// record happen in one transaction under a row lock, so two concurrent
// refreshes of the same token cannot both succeed; a reused, already
// rotated token hard-fails and drops every outstanding token of the
// identity.
func (s *Service) Refresh(ctx context.Context, refreshRaw, ip, userAgent string) (*RefreshResult, error) {
	claims, err := s.tokens.Validate(refreshRaw, token.TypeRefresh)
	if err != nil {
		return nil, err
	}
	hash := token.HashTokenID(claims.ID)
	now := time.Now().UTC()

	var result *RefreshResult
	err = s.identities.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current domain.RefreshToken
		if err := lockForUpdate(tx).
			Where("token_hash = ?", hash).
			First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return token.ErrTokenInvalid
			}
			return err
		}

		if current.RevokedAt != nil {
			// Replay: the token was already rotated out. Burn the whole
			// credential set for the identity.
			if err := tx.Model(&domain.RefreshToken{}).
				Where("identity_id = ? AND revoked_at IS NULL", current.IdentityID).
				Update("revoked_at", now).Error; err != nil {
				return err
			}
			s.recorder.Record(ctx, audit.Event{
				Kind:       domain.AuditRefreshReplay,
				IdentityID: &current.IdentityID,
				IP:         ip,
				UserAgent:  nullableString(userAgent),
			})
			return ErrTokenRevoked
		}
		if !current.ExpiresAt.After(now) {
			return token.ErrTokenExpired
		}

		var identity domain.Identity
		if err := tx.First(&identity, "id = ?", current.IdentityID).Error; err != nil {
			return token.ErrTokenInvalid
		}
		if !identity.Active {
			return ErrAccountDeactivated
		}

		// Compare-and-set: only the caller that flips revoked_at wins.
		res := tx.Model(&domain.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", current.ID).
			Update("revoked_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTokenRevoked
		}

		accessToken, err := s.tokens.IssueAccess(s.accessParams(&identity, identity.MFAEnabled))
		if err != nil {
			return err
		}
		newRefresh, jti, err := s.tokens.IssueRefresh(identity.ID)
		if err != nil {
			return err
		}
		if err := tx.Create(&domain.RefreshToken{
			ID:         uuid.NewString(),
			IdentityID: identity.ID,
			TokenHash:  token.HashTokenID(jti),
			ExpiresAt:  now.Add(s.cfg.RefreshTTL),
			UserAgent:  nullableString(userAgent),
			IP:         nullableString(ip),
		}).Error; err != nil {
			return err
		}

		result = &RefreshResult{AccessToken: accessToken, RefreshToken: newRefresh}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Event{
		Kind: domain.AuditTokenRefreshed,
		IP:   ip,
	})
	return result, nil
}

// Logout revokes one refresh token, or every refresh token and session of
// the identity when req.All is set.
func (s *Service) Logout(ctx context.Context, identityID string, req LogoutRequest, ip, userAgent string) error {
	if req.All {
		if _, err := s.refreshTokens.RevokeAllForIdentity(ctx, identityID); err != nil {
			return err
		}
		if s.sessions != nil {
			if _, err := s.sessions.RevokeAll(ctx, identityID, nil); err != nil {
				return err
			}
		}
	} else if req.RefreshToken != "" {
		// An invalid token on logout is not worth reporting; the session is
		// gone either way.
		if claims, err := s.tokens.Validate(req.RefreshToken, token.TypeRefresh); err == nil {
			_, _ = s.refreshTokens.RevokeByHash(ctx, token.HashTokenID(claims.ID))
		}
	}

	s.recorder.Record(ctx, audit.Event{
		Kind:       domain.AuditLogout,
		IdentityID: &identityID,
		IP:         ip,
		UserAgent:  nullableString(userAgent),
		Details:    map[string]any{"all": req.All},
	})
	return nil
}

// ChangePassword verifies the current password, applies the policy to the
// new one and revokes every other credential of the identity.
func (s *Service) ChangePassword(ctx context.Context, identityID string, req ChangePasswordRequest, ip string) error {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return err
	}
	if identity.PasswordHash == nil || !s.hasher.Verify(req.CurrentPassword, *identity.PasswordHash) {
		return ErrInvalidCredentials
	}
	if ok, missing := s.policy.Validate(req.NewPassword); !ok {
		return &PasswordPolicyError{Missing: missing}
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.identities.UpdatePasswordHash(ctx, identityID, hash); err != nil {
		return err
	}

	if _, err := s.refreshTokens.RevokeAllForIdentity(ctx, identityID); err != nil {
		return err
	}
	if s.sessions != nil {
		_, _ = s.sessions.RevokeAll(ctx, identityID, nil)
	}

	s.recorder.Record(ctx, audit.Event{
		Kind:       domain.AuditPasswordChanged,
		IdentityID: &identity.ID,
		Email:      &identity.Email,
		TenantID:   identity.TenantID,
		IP:         ip,
	})
	return nil
}

func (s *Service) CurrentIdentity(ctx context.Context, identityID string) (*domain.Identity, error) {
	return s.identities.GetByID(ctx, identityID)
}

// Public strips an identity to its caller-visible shape with the permission
// snapshot attached.
func (s *Service) Public(identity *domain.Identity) IdentityPublic {
	return IdentityPublic{
		ID:          identity.ID,
		Email:       identity.Email,
		Name:        identity.Name,
		Role:        string(identity.Role),
		TenantID:    identity.TenantID,
		MFAEnabled:  identity.MFAEnabled,
		Permissions: s.table.Permissions(identity.Role),
	}
}

// handleFailedLogin is the guard's failure transition: bump the counter
// atomically, then report lockout if this attempt crossed the threshold.
func (s *Service) handleFailedLogin(ctx context.Context, identity *domain.Identity, ip, userAgent string) error {
	now := time.Now().UTC()
	lockUntil := now.Add(s.cfg.LockoutDuration)

	if err := s.identities.RecordLoginFailure(ctx, identity.ID, s.cfg.MaxLoginAttempts, lockUntil); err != nil {
		return err
	}
	s.auditFailure(ctx, &identity.ID, &identity.Email, ip, userAgent, "wrong_password")

	updated, err := s.identities.GetByID(ctx, identity.ID)
	if err == nil && updated.Locked(now) {
		s.recorder.Record(ctx, audit.Event{
			Kind:       domain.AuditAccountLocked,
			IdentityID: &identity.ID,
			Email:      &identity.Email,
			TenantID:   identity.TenantID,
			IP:         ip,
			UserAgent:  nullableString(userAgent),
			Details:    map[string]any{"locked_until": updated.LockedUntil},
		})
		return &AccountLockedError{RetryAfter: updated.LockedUntil.Sub(now)}
	}
	return ErrInvalidCredentials
}

func (s *Service) issueCredentials(ctx context.Context, identity *domain.Identity, ip, userAgent string, mfaVerified bool) (*LoginResult, error) {
	accessToken, err := s.tokens.IssueAccess(s.accessParams(identity, mfaVerified))
	if err != nil {
		return nil, err
	}

	refreshToken, jti, err := s.tokens.IssueRefresh(identity.ID)
	if err != nil {
		return nil, err
	}
	if err := s.refreshTokens.Create(ctx, &domain.RefreshToken{
		IdentityID: identity.ID,
		TokenHash:  token.HashTokenID(jti),
		ExpiresAt:  time.Now().UTC().Add(s.cfg.RefreshTTL),
		UserAgent:  nullableString(userAgent),
		IP:         nullableString(ip),
	}); err != nil {
		return nil, err
	}

	result := &LoginResult{
		Identity:     identity,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}

	if s.sessions != nil {
		sessionToken, _, err := s.sessions.Create(ctx, identity.ID, ip, userAgent, nil)
		if err != nil {
			return nil, err
		}
		result.SessionToken = sessionToken
	}

	s.recorder.Record(ctx, audit.Event{
		Kind:       domain.AuditLoginSuccess,
		IdentityID: &identity.ID,
		Email:      &identity.Email,
		TenantID:   identity.TenantID,
		IP:         ip,
		UserAgent:  nullableString(userAgent),
	})
	return result, nil
}

func (s *Service) accessParams(identity *domain.Identity, mfaVerified bool) token.AccessParams {
	return token.AccessParams{
		IdentityID:  identity.ID,
		Email:       identity.Email,
		Role:        string(identity.Role),
		TenantID:    identity.TenantID,
		MFAVerified: mfaVerified,
		Permissions: s.table.Permissions(identity.Role),
	}
}

func (s *Service) auditFailure(ctx context.Context, identityID, email *string, ip, userAgent, reason string) {
	s.recorder.Record(ctx, audit.Event{
		Kind:       domain.AuditLoginFailed,
		IdentityID: identityID,
		Email:      email,
		IP:         ip,
		UserAgent:  nullableString(userAgent),
		Details:    map[string]any{"reason": reason},
	})
}

// lockForUpdate takes a row lock where the dialect supports it. SQLite has
// no row locks; the compare-and-set updates stay correct without one.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func nullableString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
