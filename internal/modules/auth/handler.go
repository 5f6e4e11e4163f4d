package auth

import (
	"errors"
	"net/http"

	"assesshub/internal/modules/invitation"
	"assesshub/internal/modules/session"
	"assesshub/internal/pkg/response"
	"assesshub/internal/pkg/token"

	"github.com/gin-gonic/gin"
)

// Handler manages all HTTP interactions for authentication.
type Handler struct {
	service     *Service
	sessions    *session.Service
	assignments AssignmentLister
}

func NewHandler(service *Service, sessions *session.Service, assignments AssignmentLister) *Handler {
	return &Handler{service: service, sessions: sessions, assignments: assignments}
}

func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup) {
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/mfa/verify", h.VerifyMFA)
		authGroup.POST("/register", h.Register)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/forgot-password", h.ForgotPassword)
		authGroup.POST("/reset-password", h.ResetPassword)
	}
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	authGroup := protected.Group("/auth")
	{
		authGroup.POST("/logout", h.Logout)
		authGroup.POST("/password", h.ChangePassword)
		authGroup.POST("/mfa/setup", h.SetupMFA)
		authGroup.POST("/mfa/enable", h.EnableMFA)
		authGroup.POST("/mfa/disable", h.DisableMFA)
	}
	userGroup := protected.Group("/users")
	{
		userGroup.GET("/me", h.GetMe)
		userGroup.GET("/me/assignments", h.ListAssignments)
		userGroup.GET("/me/sessions", h.ListSessions)
		userGroup.DELETE("/me/sessions/:id", h.RevokeSession)
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	result, err := h.service.Login(c.Request.Context(), req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.writeAuthError(c, err)
		return
	}

	if result.MFARequired {
		response.Success(c, http.StatusOK, gin.H{
			"mfa_required": true,
			"mfa_token":    result.MFAToken,
		})
		return
	}

	response.Success(c, http.StatusOK, loginPayload(h.service, result))
}

func (h *Handler) VerifyMFA(c *gin.Context) {
	var req VerifyMFARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	result, err := h.service.VerifyMFA(c.Request.Context(), req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.writeAuthError(c, err)
		return
	}

	response.Success(c, http.StatusOK, loginPayload(h.service, result))
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	result, err := h.service.Register(c.Request.Context(), req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.writeAuthError(c, err)
		return
	}

	payload := gin.H{"user": h.service.Public(result.Identity)}
	if result.MFASetupRequired {
		payload["mfa_setup_required"] = true
	} else {
		payload["access_token"] = result.AccessToken
		payload["refresh_token"] = result.RefreshToken
		if result.SessionToken != "" {
			payload["session_token"] = result.SessionToken
		}
	}
	response.Success(c, http.StatusCreated, payload)
}

func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	result, err := h.service.Refresh(c.Request.Context(), req.RefreshToken, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.writeAuthError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	identityID := c.GetString("identity_id")

	var req LogoutRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.service.Logout(c.Request.Context(), identityID, req, c.ClientIP(), c.Request.UserAgent()); err != nil {
		response.Error(c, http.StatusInternalServerError, "LOGOUT_FAILED", "Failed to logout")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *Handler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	if err := h.service.RequestPasswordReset(c.Request.Context(), req.Email, c.ClientIP(), c.Request.UserAgent()); err != nil {
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}
	// The same answer whether or not the email exists.
	response.Success(c, http.StatusOK, gin.H{"message": "If an account exists, a reset link has been sent"})
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), req.Token, req.Password, c.ClientIP()); err != nil {
		h.writeAuthError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Password has been reset; all sessions revoked"})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	identityID := c.GetString("identity_id")

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), identityID, req, c.ClientIP()); err != nil {
		h.writeAuthError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Password changed; other sessions revoked"})
}

func (h *Handler) SetupMFA(c *gin.Context) {
	identityID := c.GetString("identity_id")

	setup, err := h.service.SetupMFA(c.Request.Context(), identityID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "MFA_SETUP_FAILED", "Failed to start MFA setup")
		return
	}
	response.Success(c, http.StatusOK, setup)
}

func (h *Handler) EnableMFA(c *gin.Context) {
	identityID := c.GetString("identity_id")

	var req EnableMFARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	backupCodes, err := h.service.EnableMFA(c.Request.Context(), identityID, req, c.ClientIP())
	if err != nil {
		h.writeAuthError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"backup_codes": backupCodes})
}

func (h *Handler) DisableMFA(c *gin.Context) {
	identityID := c.GetString("identity_id")

	var req DisableMFARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	if err := h.service.DisableMFA(c.Request.Context(), identityID, req, c.ClientIP()); err != nil {
		h.writeAuthError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "MFA disabled"})
}

func (h *Handler) GetMe(c *gin.Context) {
	identityID := c.GetString("identity_id")

	identity, err := h.service.CurrentIdentity(c.Request.Context(), identityID)
	if err != nil {
		response.Error(c, http.StatusNotFound, "IDENTITY_NOT_FOUND", "Identity not found")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": h.service.Public(identity)})
}

func (h *Handler) ListAssignments(c *gin.Context) {
	identityID := c.GetString("identity_id")

	assignments, err := h.assignments.ListByIdentity(c.Request.Context(), identityID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "ASSIGNMENTS_FAILED", "Failed to list assignments")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"assignments": assignments})
}

func (h *Handler) ListSessions(c *gin.Context) {
	identityID := c.GetString("identity_id")

	sessions, err := h.sessions.List(c.Request.Context(), identityID, c.Query("all") != "true")
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "SESSIONS_FAILED", "Failed to list sessions")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

func (h *Handler) RevokeSession(c *gin.Context) {
	identityID := c.GetString("identity_id")

	ok, err := h.sessions.Revoke(c.Request.Context(), c.Param("id"), identityID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "SESSION_REVOKE_FAILED", "Failed to revoke session")
		return
	}
	if !ok {
		response.Error(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Session revoked"})
}

// writeAuthError maps service errors to stable error codes. Codes are part
// of the API contract; clients branch on them.
func (h *Handler) writeAuthError(c *gin.Context, err error) {
	var locked *AccountLockedError
	var weak *PasswordPolicyError

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Email or password is incorrect")
	case errors.As(err, &locked):
		response.ErrorWithDetails(c, http.StatusForbidden, "ACCOUNT_LOCKED",
			"Account temporarily locked after repeated failures",
			gin.H{"locked_minutes_remaining": locked.RetryAfterMinutes()})
	case errors.As(err, &weak):
		response.ErrorWithDetails(c, http.StatusBadRequest, "PASSWORD_TOO_WEAK",
			"Password does not meet the policy",
			gin.H{"missing_requirements": weak.Missing})
	case errors.Is(err, ErrAccountDeactivated):
		response.Error(c, http.StatusForbidden, "ACCOUNT_DEACTIVATED", "Account is deactivated")
	case errors.Is(err, ErrMFASetupRequired):
		response.Error(c, http.StatusForbidden, "MFA_SETUP_REQUIRED", "This role requires MFA enrollment")
	case errors.Is(err, ErrMFANotEnabled):
		response.Error(c, http.StatusBadRequest, "MFA_NOT_ENABLED", "MFA is not enabled for this account")
	case errors.Is(err, ErrMFAInvalidCode):
		response.Error(c, http.StatusUnauthorized, "MFA_INVALID_CODE", "Invalid verification code")
	case errors.Is(err, ErrTokenRevoked):
		response.Error(c, http.StatusUnauthorized, "TOKEN_REVOKED", "Token has been revoked")
	case errors.Is(err, token.ErrTokenExpired):
		response.Error(c, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired")
	case errors.Is(err, token.ErrTokenInvalid):
		response.Error(c, http.StatusUnauthorized, "TOKEN_INVALID", "Token is invalid")
	case errors.Is(err, invitation.ErrNotFound), errors.Is(err, invitation.ErrExpired),
		errors.Is(err, invitation.ErrUsed):
		writeInvitationError(c, err)
	case errors.Is(err, invitation.ErrEmailRegistered):
		response.Error(c, http.StatusConflict, "EMAIL_EXISTS", "This email is already registered")
	default:
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
	}
}

func writeInvitationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, invitation.ErrExpired):
		response.Error(c, http.StatusGone, "INVITATION_EXPIRED", "Invitation has expired")
	case errors.Is(err, invitation.ErrUsed):
		response.Error(c, http.StatusGone, "INVITATION_USED", "Invitation has already been used")
	default:
		response.Error(c, http.StatusNotFound, "INVITATION_NOT_FOUND", "Invitation not found")
	}
}

func loginPayload(s *Service, result *LoginResult) gin.H {
	payload := gin.H{
		"user":          s.Public(result.Identity),
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
	}
	if result.SessionToken != "" {
		payload["session_token"] = result.SessionToken
	}
	return payload
}
