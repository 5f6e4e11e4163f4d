package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"assesshub/internal/audit"
	"assesshub/internal/domain"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const backupCodeCount = 10

// SetupMFA generates a fresh TOTP secret and backup codes for the identity.
// Nothing is persisted until EnableMFA confirms a valid code, so an
// abandoned setup leaves the account untouched.
func (s *Service) SetupMFA(ctx context.Context, identityID string) (*MFASetup, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return nil, err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.cfg.MFAIssuer,
		AccountName: identity.Email,
	})
	if err != nil {
		return nil, err
	}

	return &MFASetup{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
	}, nil
}

// EnableMFA turns on the second factor after the caller proves possession
// of the secret with one valid code. Backup codes are minted here, stored
// hashed and returned in the clear exactly once.
func (s *Service) EnableMFA(ctx context.Context, identityID string, req EnableMFARequest, ip string) ([]string, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return nil, err
	}

	if !validateTOTP(req.Code, req.Secret) {
		return nil, ErrMFAInvalidCode
	}

	codes, err := generateBackupCodes(backupCodeCount)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, 0, len(codes))
	for _, code := range codes {
		hashes = append(hashes, hashBackupCode(code))
	}

	secret := req.Secret
	if err := s.identities.SetMFA(ctx, identityID, true, &secret, hashes); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Event{
		Kind:       domain.AuditMFAEnabled,
		IdentityID: &identity.ID,
		Email:      &identity.Email,
		TenantID:   identity.TenantID,
		IP:         ip,
	})
	return codes, nil
}

// DisableMFA removes the second factor. The caller must present one last
// valid code; a role that mandates MFA cannot drop it.
func (s *Service) DisableMFA(ctx context.Context, identityID string, req DisableMFARequest, ip string) error {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return err
	}
	if !identity.MFAEnabled || identity.MFASecret == nil {
		return ErrMFANotEnabled
	}
	if s.cfg.MFAMandatoryRoles[identity.Role] {
		return ErrMFASetupRequired
	}

	ok, err := s.verifySecondFactor(ctx, identity, req.Code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMFAInvalidCode
	}

	if err := s.identities.SetMFA(ctx, identityID, false, nil, nil); err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.Event{
		Kind:       domain.AuditMFADisabled,
		IdentityID: &identity.ID,
		Email:      &identity.Email,
		TenantID:   identity.TenantID,
		IP:         ip,
	})
	return nil
}

// verifySecondFactor accepts either a current TOTP code or an unused backup
// code. A matching backup code is consumed in the same call.
func (s *Service) verifySecondFactor(ctx context.Context, identity *domain.Identity, code string) (bool, error) {
	code = strings.TrimSpace(code)

	if identity.MFASecret != nil && validateTOTP(code, *identity.MFASecret) {
		return true, nil
	}
	if looksLikeBackupCode(code) {
		return s.identities.ConsumeBackupCode(ctx, identity, hashBackupCode(code))
	}
	return false, nil
}

// validateTOTP checks a code against the secret with one period of clock
// skew in either direction.
func validateTOTP(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// generateBackupCodes returns n codes in XXXX-XXXX form.
func generateBackupCodes(n int) ([]string, error) {
	codes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		buf := make([]byte, 4)
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		raw := strings.ToUpper(hex.EncodeToString(buf))
		codes = append(codes, fmt.Sprintf("%s-%s", raw[:4], raw[4:]))
	}
	return codes, nil
}

func looksLikeBackupCode(code string) bool {
	return len(code) == 9 && code[4] == '-'
}

func hashBackupCode(code string) string {
	sum := sha256.Sum256([]byte(strings.ToUpper(strings.TrimSpace(code))))
	return hex.EncodeToString(sum[:])
}
