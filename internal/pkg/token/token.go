package token

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token kinds carried in the "typ" claim. Validation always checks the
// expected kind; a refresh token never validates as an access token.
const (
	TypeAccess     = "access"
	TypeRefresh    = "refresh"
	TypeMFAPending = "mfa_pending"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims is the signed payload shared by all three token kinds. Refresh
// tokens carry only Subject and ID; MFA-pending tokens carry Subject and
// Email.
type Claims struct {
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role,omitempty"`
	TenantID    *string  `json:"org,omitempty"`
	MFAVerified bool     `json:"mfa,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Type        string   `json:"typ"`
	jwtlib.RegisteredClaims
}

type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	mfaTTL     time.Duration
}

func NewIssuer(secret string, accessTTL, refreshTTL, mfaTTL time.Duration) *Issuer {
	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		mfaTTL:     mfaTTL,
	}
}

type AccessParams struct {
	IdentityID  string
	Email       string
	Role        string
	TenantID    *string
	MFAVerified bool
	Permissions []string
}

// IssueAccess mints a short-lived stateless access token carrying the
// principal's role, tenant and permission snapshot.
func (i *Issuer) IssueAccess(p AccessParams) (string, error) {
	claims := Claims{
		Email:       p.Email,
		Role:        p.Role,
		TenantID:    p.TenantID,
		MFAVerified: p.MFAVerified,
		Permissions: p.Permissions,
		Type:        TypeAccess,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   p.IdentityID,
			ID:        uuid.NewString(),
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(i.accessTTL)),
			IssuedAt:  jwtlib.NewNumericDate(time.Now()),
		},
	}
	return i.sign(claims)
}

// IssueRefresh mints a long-lived refresh token and returns it with its
// token id. Callers store HashTokenID(jti) server-side; the raw id never
// touches storage.
func (i *Issuer) IssueRefresh(identityID string) (signed string, jti string, err error) {
	jti = uuid.NewString()
	claims := Claims{
		Type: TypeRefresh,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   identityID,
			ID:        jti,
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(i.refreshTTL)),
			IssuedAt:  jwtlib.NewNumericDate(time.Now()),
		},
	}
	signed, err = i.sign(claims)
	return signed, jti, err
}

// IssueMFAPending mints the very short-lived token bridging password
// verification and the second factor.
func (i *Issuer) IssueMFAPending(identityID, email string) (string, error) {
	claims := Claims{
		Email: email,
		Type:  TypeMFAPending,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   identityID,
			ID:        uuid.NewString(),
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(i.mfaTTL)),
			IssuedAt:  jwtlib.NewNumericDate(time.Now()),
		},
	}
	return i.sign(claims)
}

// Validate checks signature, expiry and token kind together. Expiry maps to
// ErrTokenExpired; everything else, including a kind mismatch, maps to
// ErrTokenInvalid.
func (i *Issuer) Validate(tokenStr, expectedType string) (*Claims, error) {
	parsed, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Type != expectedType {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (i *Issuer) sign(claims Claims) (string, error) {
	t := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return t.SignedString(i.secret)
}

// HashTokenID is the one-way hash used for server-side refresh and session
// token lookups.
func HashTokenID(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
