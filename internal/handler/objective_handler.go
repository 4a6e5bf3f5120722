package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/strategy-service/internal/model"
	"github.com/suteetoe/strategy-service/internal/repository"
	"github.com/suteetoe/strategy-service/internal/suggestion"
	"github.com/suteetoe/strategy-service/pkg/logger"
	"github.com/suteetoe/strategy-service/prometheus"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

type createObjectiveRequest struct {
	OrganizationID uint     `json:"organization_id" validate:"required"`
	Title          string   `json:"title" validate:"required,max=255"`
	Description    string   `json:"description"`
	KPIs           []string `json:"kpis"`
	KPIsText       string   `json:"kpis_text"`
}

func (r *createObjectiveRequest) trim() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
}

type suggestionRequest struct {
	OrganizationID uint `json:"organization_id" validate:"required"`
	AreaID         uint `json:"area_id"`
}

type createInitiativeRequest struct {
	ObjectiveID uint     `json:"objective_id" validate:"required"`
	Title       string   `json:"title" validate:"required,max=255"`
	Description string   `json:"description"`
	Responsible string   `json:"responsible" validate:"max=150"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Status      string   `json:"status" validate:"omitempty,initiative_status"`
	Actions     []string `json:"actions"`
	ActionsText string   `json:"actions_text"`
}

func (r *createInitiativeRequest) trim() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Responsible = strings.TrimSpace(r.Responsible)
	r.StartDate = strings.TrimSpace(r.StartDate)
	r.EndDate = strings.TrimSpace(r.EndDate)
}

// CreateObjective stores an objective with its KPIs
func (h *Handler) CreateObjective(c echo.Context) error {
	log := logger.FromContext(c)
	userID, ok := currentUserID(c)
	if !ok {
		return respond(c, unauthenticated())
	}

	var req createObjectiveRequest
	if aerr := bind(c, &req); aerr != nil {
		return respond(c, aerr)
	}

	ctx := c.Request().Context()
	if _, aerr := h.requireMember(ctx, userID, req.OrganizationID); aerr != nil {
		return respond(c, aerr)
	}

	objective := model.Objective{
		OrganizationID: req.OrganizationID,
		Title:          req.Title,
		Description:    req.Description,
		KPIs:           mergeLines(req.KPIs, req.KPIsText),
	}
	if err := h.repo.CreateObjective(ctx, &objective); err != nil {
		log.Error("Failed to create objective", zap.Error(err))
		return respond(c, internal("objective_creation_failed", "objective creation failed"))
	}
	prometheus.RecordEntityCreated("objective")

	log.Info("Objective created", zap.Uint("id", objective.ID), zap.Uint("organization_id", objective.OrganizationID))
	return c.JSON(http.StatusCreated, objective)
}

// ListObjectives lists the objectives of the caller's organizations
func (h *Handler) ListObjectives(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return respond(c, unauthenticated())
	}

	organizationIDs, aerr := h.scope(c, userID)
	if aerr != nil {
		return respond(c, aerr)
	}

	objectives, err := h.repo.ListObjectives(c.Request().Context(), organizationIDs)
	if err != nil {
		logger.FromContext(c).Error("Failed to list objectives", zap.Error(err))
		return respond(c, internal("db_error", "failed to retrieve objectives"))
	}
	return c.JSON(http.StatusOK, objectives)
}

// SuggestObjectives derives objective suggestions from the contributions of
// an organization, or of one of its areas.
func (h *Handler) SuggestObjectives(c echo.Context) error {
	log := logger.FromContext(c)
	userID, ok := currentUserID(c)
	if !ok {
		return respond(c, unauthenticated())
	}

	var req suggestionRequest
	if aerr := bind(c, &req); aerr != nil {
		return respond(c, aerr)
	}

	ctx := c.Request().Context()
	if _, aerr := h.requireMember(ctx, userID, req.OrganizationID); aerr != nil {
		return respond(c, aerr)
	}
	if req.AreaID != 0 {
		area, aerr := h.loadArea(ctx, userID, req.AreaID)
		if aerr != nil {
			return respond(c, aerr)
		}
		if area.OrganizationID != req.OrganizationID {
			return respond(c, badRequest("area_organization_mismatch", "area does not belong to the organization"))
		}
	}

	contributions, err := h.repo.ListContributions(ctx, repository.ContributionFilter{
		OrganizationIDs: []uint{req.OrganizationID},
		AreaID:          req.AreaID,
	})
	if err != nil {
		log.Error("Failed to load contributions", zap.Error(err))
		return respond(c, internal("db_error", "failed to retrieve contributions"))
	}

	input := make([]suggestion.Contribution, 0, len(contributions))
	for _, sc := range contributions {
		input = append(input, suggestion.Contribution{
			StrategicLine: sc.StrategicLine,
			Text:          sc.Contribution,
			Examples:      sc.Examples,
		})
	}

	suggestions, err := h.suggestions.Suggest(input)
	if errors.Is(err, suggestion.ErrNoContributions) {
		prometheus.RecordError("no_contributions")
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "No contributions found"})
	}
	if err != nil {
		log.Error("Failed to generate suggestions", zap.Error(err))
		return respond(c, internal("suggestion_failed", "could not generate suggestions"))
	}
	prometheus.SuggestionCounter.Add(float64(len(suggestions)))

	log.Info("Objective suggestions generated",
		zap.Uint("organization_id", req.OrganizationID),
		zap.Int("contributions", len(input)),
		zap.Int("suggestions", len(suggestions)))
	return c.JSON(http.StatusOK, echo.Map{"suggestions": suggestions})
}

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, raw); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

// CreateInitiative adds an initiative to an objective
func (h *Handler) CreateInitiative(c echo.Context) error {
	log := logger.FromContext(c)
	userID, ok := currentUserID(c)
	if !ok {
		return respond(c, unauthenticated())
	}

	var req createInitiativeRequest
	if aerr := bind(c, &req); aerr != nil {
		return respond(c, aerr)
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		return respond(c, badRequest("invalid_date", "start_date must be YYYY-MM-DD"))
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		return respond(c, badRequest("invalid_date", "end_date must be YYYY-MM-DD"))
	}
	if start != nil && end != nil && end.Before(*start) {
		return respond(c, badRequest("invalid_date", "end_date must not be before start_date"))
	}

	ctx := c.Request().Context()
	if _, aerr := h.loadObjective(ctx, userID, req.ObjectiveID); aerr != nil {
		return respond(c, aerr)
	}

	status := req.Status
	if status == "" {
		status = model.StatusPlanning
	}
	initiative := model.Initiative{
		ObjectiveID: req.ObjectiveID,
		Title:       req.Title,
		Description: req.Description,
		Responsible: req.Responsible,
		StartDate:   start,
		EndDate:     end,
		Status:      status,
		Actions:     mergeLines(req.Actions, req.ActionsText),
	}
	if err := h.repo.CreateInitiative(ctx, &initiative); err != nil {
		log.Error("Failed to create initiative", zap.Error(err))
		return respond(c, internal("initiative_creation_failed", "initiative creation failed"))
	}
	prometheus.RecordEntityCreated("initiative")

	log.Info("Initiative created", zap.Uint("id", initiative.ID), zap.Uint("objective_id", initiative.ObjectiveID))
	return c.JSON(http.StatusCreated, initiative)
}

// ListInitiatives lists initiatives, optionally of one objective
func (h *Handler) ListInitiatives(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return respond(c, unauthenticated())
	}

	objectiveID, aerr := optionalID(c, "objective_id")
	if aerr != nil {
		return respond(c, aerr)
	}

	ctx := c.Request().Context()
	filter := repository.InitiativeFilter{ObjectiveID: objectiveID}
	if objectiveID != 0 {
		objective, aerr := h.loadObjective(ctx, userID, objectiveID)
		if aerr != nil {
			return respond(c, aerr)
		}
		filter.OrganizationIDs = []uint{objective.OrganizationID}
	} else if filter.OrganizationIDs, aerr = h.scope(c, userID); aerr != nil {
		return respond(c, aerr)
	}

	initiatives, err := h.repo.ListInitiatives(ctx, filter)
	if err != nil {
		logger.FromContext(c).Error("Failed to list initiatives", zap.Error(err))
		return respond(c, internal("db_error", "failed to retrieve initiatives"))
	}
	return c.JSON(http.StatusOK, initiatives)
}
