package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/strategy-service/pkg/logger"
	"go.uber.org/zap"
)

// Dashboard summarizes the planning state of every organization of the caller
func (h *Handler) Dashboard(c echo.Context) error {
	log := logger.FromContext(c)
	userID, ok := currentUserID(c)
	if !ok {
		return respond(c, unauthenticated())
	}

	ctx := c.Request().Context()
	memberships, err := h.repo.ListMemberships(ctx, userID)
	if err != nil {
		log.Error("Failed to list memberships", zap.Error(err))
		return respond(c, internal("db_error", "failed to load organizations"))
	}

	organizationIDs := make([]uint, 0, len(memberships))
	organizations := make([]organizationResponse, 0, len(memberships))
	for _, m := range memberships {
		organizationIDs = append(organizationIDs, m.OrganizationID)
		organizations = append(organizations, newOrganizationResponse(m.Organization, m.Role))
	}

	summary, err := h.repo.Summarize(ctx, organizationIDs, h.now())
	if err != nil {
		log.Error("Failed to summarize strategy", zap.Error(err))
		return respond(c, internal("db_error", "failed to build dashboard"))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"summary":       summary,
		"organizations": organizations,
	})
}
