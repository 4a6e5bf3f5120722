package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/strategy-service/internal/model"
	"github.com/suteetoe/strategy-service/pkg/logger"
	"github.com/suteetoe/strategy-service/prometheus"
	"go.uber.org/zap"
)

type createOrganizationRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

func (r *createOrganizationRequest) trim() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
}

type organizationResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

func newOrganizationResponse(org model.Organization, role string) organizationResponse {
	return organizationResponse{
		ID:          org.ID,
		Name:        org.Name,
		Description: org.Description,
		Role:        role,
		CreatedAt:   org.CreatedAt,
	}
}

// CreateOrganization creates an organization owned by the caller
func (h *Handler) CreateOrganization(c echo.Context) error {
	log := logger.FromContext(c)
	userID, ok := currentUserID(c)
	if !ok {
		return respond(c, unauthenticated())
	}

	var req createOrganizationRequest
	if aerr := bind(c, &req); aerr != nil {
		return respond(c, aerr)
	}

	org := model.Organization{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   userID,
	}
	if err := h.repo.CreateOrganization(c.Request().Context(), &org); err != nil {
		log.Error("Failed to create organization", zap.Error(err))
		return respond(c, internal("organization_creation_failed", "organization creation failed"))
	}
	prometheus.RecordEntityCreated("organization")

	log.Info("Organization created",
		zap.String("name", org.Name),
		zap.Uint("id", org.ID),
		zap.Uint("created_by", userID))

	return c.JSON(http.StatusCreated, newOrganizationResponse(org, model.RoleOwner))
}

// ListOrganizations lists the organizations the caller is a member of
func (h *Handler) ListOrganizations(c echo.Context) error {
	log := logger.FromContext(c)
	userID, ok := currentUserID(c)
	if !ok {
		return respond(c, unauthenticated())
	}

	memberships, err := h.repo.ListMemberships(c.Request().Context(), userID)
	if err != nil {
		log.Error("Failed to list organizations", zap.Error(err))
		return respond(c, internal("db_error", "failed to retrieve organizations"))
	}

	response := make([]organizationResponse, 0, len(memberships))
	for _, m := range memberships {
		response = append(response, newOrganizationResponse(m.Organization, m.Role))
	}
	return c.JSON(http.StatusOK, response)
}

// GetOrganization returns one organization of the caller
func (h *Handler) GetOrganization(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return respond(c, unauthenticated())
	}

	id, err := parseID(c.Param("id"))
	if err != nil {
		return respond(c, badRequest("invalid_organization_id", "invalid organization ID"))
	}

	ctx := c.Request().Context()
	membership, aerr := h.requireMember(ctx, userID, id)
	if aerr != nil {
		return respond(c, aerr)
	}
	org, err := h.repo.FindOrganization(ctx, id)
	if err != nil {
		return respond(c, internal("db_error", "failed to load organization"))
	}

	return c.JSON(http.StatusOK, newOrganizationResponse(*org, membership.Role))
}
