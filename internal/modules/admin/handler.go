package admin

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

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	group := protected.Group("/admin/identities")
	{
		group.GET("", h.List)
		group.PUT("/:id/role", h.SetRole)
		group.PUT("/:id/active", h.SetActive)
		group.POST("/:id/force-logout", h.ForceLogout)
	}
}

func principal(c *gin.Context) Principal {
	p := Principal{
		ID:   c.GetString("identity_id"),
		Role: domain.Role(c.GetString("role")),
	}
	if v, ok := c.Get("tenant_id"); ok {
		if t, ok := v.(*string); ok {
			p.TenantID = t
		}
	}
	return p
}

func (h *Handler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	var tenantID *string
	if t := c.Query("tenant_id"); t != "" {
		tenantID = &t
	}

	identities, total, err := h.service.ListIdentities(c.Request.Context(), principal(c), tenantID, page, pageSize)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "IDENTITIES_FAILED", "Failed to list identities")
		return
	}
	response.Paginated(c, http.StatusOK, identities, total, page, pageSize)
}

type setRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h *Handler) SetRole(c *gin.Context) {
	var req setRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	err := h.service.SetRole(c.Request.Context(), principal(c), c.Param("id"), domain.Role(req.Role), c.ClientIP())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Role updated"})
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (h *Handler) SetActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	err := h.service.SetActive(c.Request.Context(), principal(c), c.Param("id"), *req.Active, c.ClientIP())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Status updated"})
}

func (h *Handler) ForceLogout(c *gin.Context) {
	err := h.service.ForceLogout(c.Request.Context(), principal(c), c.Param("id"), c.ClientIP())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "All sessions revoked"})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrIdentityNotFound):
		response.Error(c, http.StatusNotFound, "IDENTITY_NOT_FOUND", "Identity not found")
	case errors.Is(err, ErrNotManageable):
		response.Error(c, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "You cannot manage this identity")
	case errors.Is(err, ErrInvalidRole):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown role")
	default:
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
	}
}
