package delegation

import (
	"errors"
	"net/http"

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
	group := protected.Group("/delegations")
	{
		group.POST("", h.Grant)
		group.DELETE("/:id", h.Revoke)
		group.GET("/mine", h.ListMine)
	}
	protected.GET("/assessments/:id/delegations", h.ListForAssessment)
}

type grantRequest struct {
	AssessmentID string  `json:"assessment_id" binding:"required"`
	DomainID     *string `json:"domain_id"`
	GranteeID    string  `json:"grantee_id" binding:"required"`
	Note         string  `json:"note"`
}

func (h *Handler) Grant(c *gin.Context) {
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	grant, err := h.service.Grant(c.Request.Context(), GrantParams{
		AssessmentID:  req.AssessmentID,
		DomainID:      req.DomainID,
		GranteeID:     req.GranteeID,
		Note:          req.Note,
		GrantorID:     c.GetString("identity_id"),
		GrantorRole:   domain.Role(c.GetString("role")),
		GrantorTenant: principalTenant(c),
		IP:            c.ClientIP(),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"delegation": grant})
}

func (h *Handler) Revoke(c *gin.Context) {
	if err := h.service.Revoke(c.Request.Context(), c.Param("id"), c.GetString("identity_id"), c.ClientIP()); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Delegation revoked"})
}

func (h *Handler) ListForAssessment(c *gin.Context) {
	grants, err := h.service.ListForAssessment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "DELEGATIONS_FAILED", "Failed to list delegations")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"delegations": grants})
}

func (h *Handler) ListMine(c *gin.Context) {
	grants, err := h.service.ListForIdentity(c.Request.Context(), c.GetString("identity_id"))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "DELEGATIONS_FAILED", "Failed to list delegations")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"delegations": grants})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrGrantNotFound):
		response.Error(c, http.StatusNotFound, "DELEGATION_NOT_FOUND", "Delegation not found")
	case errors.Is(err, ErrAlreadyRevoked):
		response.Error(c, http.StatusConflict, "DELEGATION_REVOKED", "Delegation is already revoked")
	case errors.Is(err, ErrAssessmentNotFound):
		response.Error(c, http.StatusNotFound, "ASSESSMENT_NOT_FOUND", "Assessment not found")
	case errors.Is(err, ErrNotAuthorized):
		response.Error(c, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Not allowed to manage delegations here")
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
