package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"assesshub/internal/audit"
	"assesshub/internal/database"
	"assesshub/internal/domain"
	"assesshub/internal/middleware"
	"assesshub/internal/modules/admin"
	"assesshub/internal/modules/auth"
	"assesshub/internal/modules/delegation"
	"assesshub/internal/modules/invitation"
	"assesshub/internal/modules/session"
	"assesshub/internal/pkg/password"
	"assesshub/internal/pkg/token"
	"assesshub/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type E2ETestSuite struct {
	router   *gin.Engine
	db       *gorm.DB
	issuer   *token.Issuer
	hasher   *password.Hasher
	notifier *captureNotifier
}

// captureNotifier stands in for the delivery collaborator and keeps the
// last message, so flows that hand out tokens through it stay testable.
type captureNotifier struct {
	lastMessage string
}

func (n *captureNotifier) Notify(_ context.Context, _, _, message string) error {
	n.lastMessage = message
	return nil
}

func (n *captureNotifier) NotifyEmail(_ context.Context, _, _, message string) error {
	n.lastMessage = message
	return nil
}

type TestResponse struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   *ErrorDetail           `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func setupTestSuite(t *testing.T) *E2ETestSuite {
	db, err := database.Connect(":memory:")
	require.NoError(t, err, "Failed to connect to test database")
	require.NoError(t, database.Migrate(db), "Failed to migrate test database")

	identityRepo := repository.NewIdentityRepository(db)
	refreshRepo := repository.NewRefreshTokenRepository(db)
	resetRepo := repository.NewPasswordResetRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	delegationRepo := repository.NewDelegationRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	table := domain.NewPermissionTable()
	recorder := audit.NewStoreRecorder(db, log)
	notifier := &captureNotifier{}
	issuer := token.NewIssuer("e2e_secret_key_32_characters_min", 15*time.Minute, 7*24*time.Hour, 5*time.Minute)
	hasher := password.NewHasher(password.Params{Time: 1, MemoryKB: 8 * 1024, Parallelism: 1, SaltLen: 16, KeyLen: 32})
	policy := password.Policy{MinLength: 8, RequireUppercase: true, RequireNumber: true, RequireSpecial: true}

	sessionService := session.NewService(sessionRepo, session.NewMemoryCache(),
		30*time.Minute, 15*time.Minute, 120*time.Minute)

	authService := auth.NewService(identityRepo, refreshRepo, resetRepo, sessionService,
		issuer, hasher, policy, table, recorder, notifier, auth.Config{
			MaxLoginAttempts:  5,
			LockoutDuration:   30 * time.Minute,
			RefreshTTL:        7 * 24 * time.Hour,
			ResetTTL:          time.Hour,
			MFAMandatoryRoles: map[domain.Role]bool{domain.RoleSuperAdmin: true, domain.RoleAnalyst: true},
			MFAIssuer:         "AssessHub",
		})
	authHandler := auth.NewHandler(authService, sessionService, assignmentRepo)

	invitationService := invitation.NewService(invitationRepo, identityRepo,
		notifier, recorder, table, 7*24*time.Hour)
	invitationHandler := invitation.NewHandler(invitationService)

	delegationService := delegation.NewService(delegationRepo, assessmentRepo,
		notifier, recorder, table)
	delegationHandler := delegation.NewHandler(delegationService)

	adminService := admin.NewService(identityRepo, sessionService, refreshRepo, table, recorder)
	adminHandler := admin.NewHandler(adminService)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/api/v1")

	authHandler.RegisterPublicRoutes(v1)
	invitationHandler.RegisterPublicRoutes(v1)

	protected := v1.Group("")
	protected.Use(middleware.RequireAuth(issuer))
	{
		authHandler.RegisterProtectedRoutes(protected)
		delegationHandler.RegisterProtectedRoutes(protected)

		invites := protected.Group("")
		invites.Use(middleware.RequirePermission(table, "users:invite"))
		{
			invitationHandler.RegisterProtectedRoutes(invites)
		}

		adminRoutes := protected.Group("")
		adminRoutes.Use(middleware.RequirePermission(table, "users:write"))
		{
			adminHandler.RegisterProtectedRoutes(adminRoutes)
		}
	}

	return &E2ETestSuite{router: r, db: db, issuer: issuer, hasher: hasher, notifier: notifier}
}

func (s *E2ETestSuite) createIdentity(t *testing.T, email, pw string, role domain.Role, tenantID *string) *domain.Identity {
	t.Helper()
	hash, err := s.hasher.Hash(pw)
	require.NoError(t, err)
	identity := &domain.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: &hash,
		Role:         role,
		TenantID:     tenantID,
		Active:       true,
		Verified:     true,
	}
	require.NoError(t, s.db.Create(identity).Error)
	return identity
}

func (s *E2ETestSuite) makeRequest(method, path string, body interface{}, token string) (*httptest.ResponseRecorder, error) {
	var bodyBytes []byte
	var err error

	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	req := httptest.NewRequest(method, path, bytes.NewBuffer(bodyBytes))
	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	return w, nil
}

func parseResponse(w *httptest.ResponseRecorder) (*TestResponse, error) {
	var resp TestResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	return &resp, err
}

func (s *E2ETestSuite) login(t *testing.T, email, pw string) (access, refresh string) {
	t.Helper()
	w, err := s.makeRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": email, "password": pw,
	}, "")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp, err := parseResponse(w)
	require.NoError(t, err)
	return resp.Data["access_token"].(string), resp.Data["refresh_token"].(string)
}

func TestLoginAndMe(t *testing.T) {
	s := setupTestSuite(t)
	tenant := "tenant-1"
	s.createIdentity(t, "admin@acme.example", "Acme#2024!", domain.RoleClientAdmin, &tenant)

	access, refresh := s.login(t, "admin@acme.example", "Acme#2024!")
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)

	w, err := s.makeRequest(http.MethodGet, "/api/v1/users/me", nil, access)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)

	resp, err := parseResponse(w)
	require.NoError(t, err)
	user := resp.Data["user"].(map[string]interface{})
	assert.Equal(t, "admin@acme.example", user["email"])
	assert.Equal(t, "client_admin", user["role"])
	assert.Contains(t, user["permissions"], "users:invite")
}

func TestLogin_WrongPasswordAndLockout(t *testing.T) {
	s := setupTestSuite(t)
	s.createIdentity(t, "victim@acme.example", "Correct#1pw", domain.RoleAssessor, strptr("tenant-1"))

	// Four failures answer identically to an unknown email.
	for i := 0; i < 4; i++ {
		w, err := s.makeRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
			"email": "victim@acme.example", "password": "wrong",
		}, "")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		resp, _ := parseResponse(w)
		assert.Equal(t, "INVALID_CREDENTIALS", resp.Error.Code)
	}

	// The fifth crosses the threshold.
	w, err := s.makeRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "victim@acme.example", "password": "wrong",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, w.Code)

	resp, _ := parseResponse(w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ACCOUNT_LOCKED", resp.Error.Code)
	details := resp.Error.Details.(map[string]interface{})
	assert.InDelta(t, 30, details["locked_minutes_remaining"], 1)

	// The right password gets the same refusal while locked.
	w, err = s.makeRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "victim@acme.example", "password": "Correct#1pw",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, w.Code)
	resp, _ = parseResponse(w)
	assert.Equal(t, "ACCOUNT_LOCKED", resp.Error.Code)
}

func TestLogin_UnknownEmail(t *testing.T) {
	s := setupTestSuite(t)

	w, err := s.makeRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "nobody@acme.example", "password": "whatever",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	resp, _ := parseResponse(w)
	assert.Equal(t, "INVALID_CREDENTIALS", resp.Error.Code)
}

func TestRefreshRotationAndReplay(t *testing.T) {
	s := setupTestSuite(t)
	s.createIdentity(t, "user@acme.example", "Correct#1pw", domain.RoleAssessor, strptr("tenant-1"))

	_, refresh1 := s.login(t, "user@acme.example", "Correct#1pw")

	// First rotation succeeds and returns a fresh pair.
	w, err := s.makeRequest(http.MethodPost, "/api/v1/auth/refresh", map[string]string{
		"refresh_token": refresh1,
	}, "")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp, _ := parseResponse(w)
	refresh2 := resp.Data["refresh_token"].(string)
	assert.NotEqual(t, refresh1, refresh2)
	assert.NotEmpty(t, resp.Data["access_token"])

	// Replaying the rotated-out token hard-fails...
	w, err = s.makeRequest(http.MethodPost, "/api/v1/auth/refresh", map[string]string{
		"refresh_token": refresh1,
	}, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	resp, _ = parseResponse(w)
	assert.Equal(t, "TOKEN_REVOKED", resp.Error.Code)

	// ...and burns the whole family: the fresh token is dead too.
	w, err = s.makeRequest(http.MethodPost, "/api/v1/auth/refresh", map[string]string{
		"refresh_token": refresh2,
	}, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	resp, _ = parseResponse(w)
	assert.Equal(t, "TOKEN_REVOKED", resp.Error.Code)
}

func TestInvitationFlow(t *testing.T) {
	s := setupTestSuite(t)
	tenant := "tenant-1"
	s.createIdentity(t, "admin@acme.example", "Acme#2024!", domain.RoleClientAdmin, &tenant)
	access, _ := s.login(t, "admin@acme.example", "Acme#2024!")

	// Invite an assessor scoped to two assessment domains.
	w, err := s.makeRequest(http.MethodPost, "/api/v1/invitations", map[string]interface{}{
		"email":      "newhire@acme.example",
		"role":       "assessor",
		"domain_ids": []string{"d-governance", "d-operations"},
	}, access)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp, _ := parseResponse(w)
	invToken := resp.Data["token"].(string)
	require.NotEmpty(t, invToken)

	// The public validate endpoint shows the prefilled registration data.
	w, err = s.makeRequest(http.MethodGet, "/api/v1/invitations/validate/"+invToken, nil, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	resp, _ = parseResponse(w)
	assert.Equal(t, "newhire@acme.example", resp.Data["email"])

	// Weak password is rejected with the missing requirement tags.
	w, err = s.makeRequest(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"invitation_token": invToken,
		"password":         "short",
		"name":             "New Hire",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp, _ = parseResponse(w)
	assert.Equal(t, "PASSWORD_TOO_WEAK", resp.Error.Code)
	details := resp.Error.Details.(map[string]interface{})
	assert.Contains(t, details["missing_requirements"], "min_length_8")

	// Registration consumes the invitation.
	w, err = s.makeRequest(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"invitation_token": invToken,
		"password":         "Strong#1pw",
		"name":             "New Hire",
	}, "")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp, _ = parseResponse(w)
	user := resp.Data["user"].(map[string]interface{})
	assert.Equal(t, "newhire@acme.example", user["email"])
	assert.Equal(t, "assessor", user["role"])
	assert.NotEmpty(t, resp.Data["access_token"])

	// Single use: a second registration with the same token fails.
	w, err = s.makeRequest(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"invitation_token": invToken,
		"password":         "Another#1pw",
		"name":             "Impostor",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusGone, w.Code)
	resp, _ = parseResponse(w)
	assert.Equal(t, "INVITATION_USED", resp.Error.Code)

	// The new assessor can log in and carries the pre-bound assignments.
	hireAccess, _ := s.login(t, "newhire@acme.example", "Strong#1pw")
	w, err = s.makeRequest(http.MethodGet, "/api/v1/users/me/assignments", nil, hireAccess)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	resp, _ = parseResponse(w)
	assignments := resp.Data["assignments"].([]interface{})
	require.Len(t, assignments, 1)
	first := assignments[0].(map[string]interface{})
	assert.Len(t, first["domain_ids"], 2)
}

func TestInvitation_PermissionGate(t *testing.T) {
	s := setupTestSuite(t)
	tenant := "tenant-1"
	s.createIdentity(t, "assessor@acme.example", "Assess#1pw", domain.RoleAssessor, &tenant)
	access, _ := s.login(t, "assessor@acme.example", "Assess#1pw")

	w, err := s.makeRequest(http.MethodPost, "/api/v1/invitations", map[string]interface{}{
		"email": "friend@acme.example",
		"role":  "assessor",
	}, access)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, w.Code)

	resp, _ := parseResponse(w)
	assert.Equal(t, "INSUFFICIENT_PERMISSIONS", resp.Error.Code)
}

func TestDelegationFlow(t *testing.T) {
	s := setupTestSuite(t)
	tenant := "tenant-1"
	adminIdentity := s.createIdentity(t, "admin@acme.example", "Acme#2024!", domain.RoleClientAdmin, &tenant)
	assessor := s.createIdentity(t, "assessor@acme.example", "Assess#1pw", domain.RoleAssessor, &tenant)

	assessment := &domain.Assessment{
		ID:        uuid.NewString(),
		TenantID:  tenant,
		CreatedBy: adminIdentity.ID,
		Title:     "Annual Review",
	}
	require.NoError(t, s.db.Create(assessment).Error)

	adminAccess, _ := s.login(t, "admin@acme.example", "Acme#2024!")

	w, err := s.makeRequest(http.MethodPost, "/api/v1/delegations", map[string]interface{}{
		"assessment_id": assessment.ID,
		"grantee_id":    assessor.ID,
		"note":          "covering year-end crunch",
	}, adminAccess)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp, _ := parseResponse(w)
	grant := resp.Data["delegation"].(map[string]interface{})
	grantID := grant["id"].(string)
	assert.Equal(t, "active", grant["status"])

	// The grantee sees it in their list.
	assessorAccess, _ := s.login(t, "assessor@acme.example", "Assess#1pw")
	w, err = s.makeRequest(http.MethodGet, "/api/v1/delegations/mine", nil, assessorAccess)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	resp, _ = parseResponse(w)
	assert.Len(t, resp.Data["delegations"], 1)

	// Revoke, then a second revoke conflicts.
	w, err = s.makeRequest(http.MethodDelete, "/api/v1/delegations/"+grantID, nil, adminAccess)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)

	w, err = s.makeRequest(http.MethodDelete, "/api/v1/delegations/"+grantID, nil, adminAccess)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, w.Code)
	resp, _ = parseResponse(w)
	assert.Equal(t, "DELEGATION_REVOKED", resp.Error.Code)
}

func TestPasswordResetFlow(t *testing.T) {
	s := setupTestSuite(t)
	s.createIdentity(t, "user@acme.example", "Old#1pass", domain.RoleAssessor, strptr("tenant-1"))
	_, refresh := s.login(t, "user@acme.example", "Old#1pass")

	// An unknown email gets the same generic answer as a real one.
	w, err := s.makeRequest(http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{
		"email": "ghost@acme.example",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	ghostBody := w.Body.String()

	w, err = s.makeRequest(http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{
		"email": "user@acme.example",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ghostBody, w.Body.String())

	// The raw token only travels through the delivery collaborator.
	idx := strings.LastIndex(s.notifier.lastMessage, ": ")
	require.Greater(t, idx, 0, s.notifier.lastMessage)
	resetToken := s.notifier.lastMessage[idx+2:]
	require.NotEmpty(t, resetToken)

	// A weak replacement is rejected before the token is consumed.
	w, err = s.makeRequest(http.MethodPost, "/api/v1/auth/reset-password", map[string]string{
		"token": resetToken, "password": "short",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp, _ := parseResponse(w)
	assert.Equal(t, "PASSWORD_TOO_WEAK", resp.Error.Code)

	w, err = s.makeRequest(http.MethodPost, "/api/v1/auth/reset-password", map[string]string{
		"token": resetToken, "password": "New#1pass!",
	}, "")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The old password is dead, the outstanding refresh token is revoked
	// and the new password works.
	w, err = s.makeRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "user@acme.example", "password": "Old#1pass",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, err = s.makeRequest(http.MethodPost, "/api/v1/auth/refresh", map[string]string{
		"refresh_token": refresh,
	}, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	s.login(t, "user@acme.example", "New#1pass!")

	// Single use: the same token never redeems twice.
	w, err = s.makeRequest(http.MethodPost, "/api/v1/auth/reset-password", map[string]string{
		"token": resetToken, "password": "Again#1pw!",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	resp, _ = parseResponse(w)
	assert.Equal(t, "TOKEN_INVALID", resp.Error.Code)
}

func TestLogoutAll(t *testing.T) {
	s := setupTestSuite(t)
	s.createIdentity(t, "user@acme.example", "Correct#1pw", domain.RoleAssessor, strptr("tenant-1"))

	access, refresh := s.login(t, "user@acme.example", "Correct#1pw")

	w, err := s.makeRequest(http.MethodPost, "/api/v1/auth/logout", map[string]interface{}{
		"all": true,
	}, access)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)

	// The refresh token no longer rotates.
	w, err = s.makeRequest(http.MethodPost, "/api/v1/auth/refresh", map[string]string{
		"refresh_token": refresh,
	}, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	resp, _ := parseResponse(w)
	assert.Equal(t, "TOKEN_REVOKED", resp.Error.Code)
}

func TestAdminIdentityManagement(t *testing.T) {
	s := setupTestSuite(t)
	tenant := "tenant-1"
	s.createIdentity(t, "admin@acme.example", "Acme#2024!", domain.RoleClientAdmin, &tenant)
	target := s.createIdentity(t, "assessor@acme.example", "Assess#1pw", domain.RoleAssessor, &tenant)

	adminAccess, _ := s.login(t, "admin@acme.example", "Acme#2024!")

	// Deactivate the assessor.
	w, err := s.makeRequest(http.MethodPut, fmt.Sprintf("/api/v1/admin/identities/%s/active", target.ID),
		map[string]interface{}{"active": false}, adminAccess)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Deactivated accounts cannot log in.
	w, err = s.makeRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "assessor@acme.example", "password": "Assess#1pw",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, w.Code)
	resp, _ := parseResponse(w)
	assert.Equal(t, "ACCOUNT_DEACTIVATED", resp.Error.Code)

	// A client admin cannot touch a peer admin.
	peer := s.createIdentity(t, "peer@acme.example", "Peer#1pw!", domain.RoleClientAdmin, &tenant)
	w, err = s.makeRequest(http.MethodPut, fmt.Sprintf("/api/v1/admin/identities/%s/active", peer.ID),
		map[string]interface{}{"active": false}, adminAccess)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func strptr(s string) *string { return &s }
