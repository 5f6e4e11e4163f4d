package invitation

import (
	"errors"
	"net/http"
	"strconv"

	"assesshub/internal/domain"
	"assesshub/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup) {
	v1.GET("/invitations/validate/:token", h.Validate)
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	group := protected.Group("/invitations")
	{
		group.POST("", h.Create)
		group.GET("", h.ListPending)
		group.POST("/:id/resend", h.Resend)
	}
}

type createRequest struct {
	Email     string   `json:"email" binding:"required,email"`
	Role      string   `json:"role" binding:"required"`
	TenantID  *string  `json:"tenant_id"`
	DomainIDs []string `json:"domain_ids"`
}

func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	role := domain.Role(req.Role)
	if !role.Valid() {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown role")
		return
	}

	inviterRole := domain.Role(c.GetString("role"))
	tenantID := req.TenantID
	// Tenant-scoped inviters can only invite into their own tenant.
	if inviterRole.TenantScoped() {
		tenantID = principalTenant(c)
	}

	inv, err := h.service.Create(c.Request.Context(), CreateParams{
		Email:       req.Email,
		Role:        role,
		TenantID:    tenantID,
		DomainIDs:   req.DomainIDs,
		InviterID:   c.GetString("identity_id"),
		InviterRole: inviterRole,
		IP:          c.ClientIP(),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	// The raw token is returned exactly once, at issue time.
	response.Success(c, http.StatusCreated, gin.H{"invitation": inv, "token": inv.Token})
}

func (h *Handler) Validate(c *gin.Context) {
	inv, err := h.service.Validate(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	// Only what a registration form needs; the raw record stays private.
	response.Success(c, http.StatusOK, gin.H{
		"email":      inv.Email,
		"role":       inv.Role,
		"tenant_id":  inv.TenantID,
		"expires_at": inv.ExpiresAt,
	})
}

func (h *Handler) Resend(c *gin.Context) {
	inv, err := h.service.Resend(c.Request.Context(), c.Param("id"), c.GetString("identity_id"), c.ClientIP())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"invitation": inv, "token": inv.Token})
}

func (h *Handler) ListPending(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	var tenantID *string
	if domain.Role(c.GetString("role")).TenantScoped() {
		tenantID = principalTenant(c)
	} else if t := c.Query("tenant_id"); t != "" {
		tenantID = &t
	}

	invitations, total, err := h.service.ListPending(c.Request.Context(), tenantID, page, pageSize)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "INVITATIONS_FAILED", "Failed to list invitations")
		return
	}
	response.Paginated(c, http.StatusOK, invitations, total, page, pageSize)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "INVITATION_NOT_FOUND", "Invitation not found")
	case errors.Is(err, ErrExpired):
		response.Error(c, http.StatusGone, "INVITATION_EXPIRED", "Invitation has expired")
	case errors.Is(err, ErrUsed):
		response.Error(c, http.StatusGone, "INVITATION_USED", "Invitation has already been used")
	case errors.Is(err, ErrEmailRegistered):
		response.Error(c, http.StatusConflict, "EMAIL_EXISTS", "This email is already registered")
	case errors.Is(err, ErrRoleNotInvitable):
		response.Error(c, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "You cannot invite this role")
	case errors.Is(err, ErrTenantRequired):
		response.Error(c, http.StatusBadRequest, "TENANT_REQUIRED", "This role requires a tenant")
	default:
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
	}
}

func principalTenant(c *gin.Context) *string {
	if v, ok := c.Get("tenant_id"); ok {
		if t, ok := v.(*string); ok {
			return t
		}
	}
	return nil
}
