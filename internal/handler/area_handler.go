package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/strategy-service/internal/model"
	"github.com/suteetoe/strategy-service/internal/repository"
	"github.com/suteetoe/strategy-service/pkg/logger"
	"github.com/suteetoe/strategy-service/prometheus"
	"go.uber.org/zap"
)

type createAreaRequest struct {
	OrganizationID       uint     `json:"organization_id" validate:"required"`
	Name                 string   `json:"name" validate:"required,min=2,max=100"`
	Responsibilities     []string `json:"responsibilities"`
	ResponsibilitiesText string   `json:"responsibilities_text"`
}

func (r *createAreaRequest) trim() {
	r.Name = strings.TrimSpace(r.Name)
}

type createContributionRequest struct {
	AreaID         uint     `json:"area_id"`
	AreaName       string   `json:"area_name"`
	OrganizationID uint     `json:"organization_id"`
	StrategicLine  string   `json:"strategic_line" validate:"required,strategic_line"`
	Contribution   string   `json:"contribution" validate:"required"`
	Examples       []string `json:"examples"`
	ExamplesText   string   `json:"examples_text"`
}

func (r *createContributionRequest) trim() {
	r.AreaName = strings.TrimSpace(r.AreaName)
	r.Contribution = strings.TrimSpace(r.Contribution)
}

// CreateArea adds a strategic area to an organization
func (h *Handler) CreateArea(c echo.Context) error {
	log := logger.FromContext(c)
	userID, ok := currentUserID(c)
	if !ok {
		return respond(c, unauthenticated())
	}

	var req createAreaRequest
	if aerr := bind(c, &req); aerr != nil {
		return respond(c, aerr)
	}

	ctx := c.Request().Context()
	if _, aerr := h.requireMember(ctx, userID, req.OrganizationID); aerr != nil {
		return respond(c, aerr)
	}

	area := model.StrategicArea{
		OrganizationID:   req.OrganizationID,
		Name:             req.Name,
		Responsibilities: mergeLines(req.Responsibilities, req.ResponsibilitiesText),
	}
	if err := h.repo.CreateArea(ctx, &area); err != nil {
		log.Error("Failed to create strategic area", zap.Error(err))
		return respond(c, internal("area_creation_failed", "strategic area creation failed"))
	}
	prometheus.RecordEntityCreated("strategic_area")

	log.Info("Strategic area created",
		zap.Uint("id", area.ID),
		zap.Uint("organization_id", area.OrganizationID))
	return c.JSON(http.StatusCreated, area)
}

// ListAreas lists the strategic areas of the caller's organizations
func (h *Handler) ListAreas(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return respond(c, unauthenticated())
	}

	organizationIDs, aerr := h.scope(c, userID)
	if aerr != nil {
		return respond(c, aerr)
	}

	areas, err := h.repo.ListAreas(c.Request().Context(), organizationIDs)
	if err != nil {
		logger.FromContext(c).Error("Failed to list strategic areas", zap.Error(err))
		return respond(c, internal("db_error", "failed to retrieve strategic areas"))
	}
	return c.JSON(http.StatusOK, areas)
}

// GetArea returns one strategic area
func (h *Handler) GetArea(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return respond(c, unauthenticated())
	}

	id, err := parseID(c.Param("id"))
	if err != nil {
		return respond(c, badRequest("invalid_area_id", "invalid strategic area ID"))
	}

	area, aerr := h.loadArea(c.Request().Context(), userID, id)
	if aerr != nil {
		return respond(c, aerr)
	}
	return c.JSON(http.StatusOK, area)
}

// StrategicLines lists the fixed strategic lines
func (h *Handler) StrategicLines(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"strategic_lines": model.StrategicLines})
}

// CreateContribution records how an area contributes to a strategic line.
// The area is named by area_id, or by area_name within organization_id.
func (h *Handler) CreateContribution(c echo.Context) error {
	log := logger.FromContext(c)
	userID, ok := currentUserID(c)
	if !ok {
		return respond(c, unauthenticated())
	}

	var req createContributionRequest
	if aerr := bind(c, &req); aerr != nil {
		return respond(c, aerr)
	}

	ctx := c.Request().Context()
	var area *model.StrategicArea
	var aerr *apiError
	switch {
	case req.AreaID != 0:
		area, aerr = h.loadArea(ctx, userID, req.AreaID)
	case req.AreaName != "":
		if _, aerr = h.requireMember(ctx, userID, req.OrganizationID); aerr != nil {
			break
		}
		var err error
		area, err = h.repo.FindAreaByName(ctx, req.OrganizationID, req.AreaName)
		if errors.Is(err, repository.ErrNotFound) {
			aerr = badRequest("unknown_area", "unknown strategic area")
		} else if err != nil {
			aerr = internal("db_error", "failed to load strategic area")
		}
	default:
		aerr = badRequest("missing_area", "area_id is required")
	}
	if aerr != nil {
		return respond(c, aerr)
	}

	contribution := model.StrategicContribution{
		AreaID:        area.ID,
		StrategicLine: req.StrategicLine,
		Contribution:  req.Contribution,
		Examples:      mergeLines(req.Examples, req.ExamplesText),
	}
	if err := h.repo.CreateContribution(ctx, &contribution); err != nil {
		log.Error("Failed to create contribution", zap.Error(err))
		return respond(c, internal("contribution_creation_failed", "contribution creation failed"))
	}
	prometheus.RecordEntityCreated("contribution")

	log.Info("Contribution created",
		zap.Uint("id", contribution.ID),
		zap.Uint("area_id", area.ID),
		zap.String("strategic_line", contribution.StrategicLine))
	return c.JSON(http.StatusCreated, contribution)
}

// ListContributions lists contributions, optionally of one area
func (h *Handler) ListContributions(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return respond(c, unauthenticated())
	}

	areaID, aerr := optionalID(c, "area_id")
	if aerr != nil {
		return respond(c, aerr)
	}

	ctx := c.Request().Context()
	filter := repository.ContributionFilter{AreaID: areaID}
	if areaID != 0 {
		area, aerr := h.loadArea(ctx, userID, areaID)
		if aerr != nil {
			return respond(c, aerr)
		}
		filter.OrganizationIDs = []uint{area.OrganizationID}
	} else if filter.OrganizationIDs, aerr = h.scope(c, userID); aerr != nil {
		return respond(c, aerr)
	}

	contributions, err := h.repo.ListContributions(ctx, filter)
	if err != nil {
		logger.FromContext(c).Error("Failed to list contributions", zap.Error(err))
		return respond(c, internal("db_error", "failed to retrieve contributions"))
	}
	return c.JSON(http.StatusOK, contributions)
}
