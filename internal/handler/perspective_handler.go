package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/strategy-service/internal/model"
	"github.com/suteetoe/strategy-service/internal/repository"
	"github.com/suteetoe/strategy-service/pkg/logger"
	"github.com/suteetoe/strategy-service/prometheus"
	"go.uber.org/zap"
)

type createPerspectiveRequest struct {
	InitiativeID uint   `json:"initiative_id" validate:"required"`
	ExpertID     string `json:"expert_id" validate:"required,expert_id"`
	Argument     string `json:"argument" validate:"required"`
}

func (r *createPerspectiveRequest) trim() {
	r.Argument = strings.TrimSpace(r.Argument)
}

type createNoteRequest struct {
	OrganizationID uint   `json:"organization_id" validate:"required"`
	Kind           string `json:"kind" validate:"required,note_kind"`
	Text           string `json:"text" validate:"required"`
}

func (r *createNoteRequest) trim() {
	r.Text = strings.TrimSpace(r.Text)
}

// Experts lists the fixed expert panel
func (h *Handler) Experts(c echo.Context) error {
	return c.JSON(http.StatusOK, model.Experts)
}

// CreatePerspective records an expert argument about an initiative
func (h *Handler) CreatePerspective(c echo.Context) error {
	log := logger.FromContext(c)
	userID, ok := currentUserID(c)
	if !ok {
		return respond(c, unauthenticated())
	}

	var req createPerspectiveRequest
	if aerr := bind(c, &req); aerr != nil {
		return respond(c, aerr)
	}

	ctx := c.Request().Context()
	if _, aerr := h.loadInitiative(ctx, userID, req.InitiativeID); aerr != nil {
		return respond(c, aerr)
	}

	perspective := model.Perspective{
		InitiativeID: req.InitiativeID,
		ExpertID:     req.ExpertID,
		Argument:     req.Argument,
	}
	if err := h.repo.CreatePerspective(ctx, &perspective); err != nil {
		log.Error("Failed to create perspective", zap.Error(err))
		return respond(c, internal("perspective_creation_failed", "perspective creation failed"))
	}
	prometheus.RecordEntityCreated("perspective")

	return c.JSON(http.StatusCreated, perspective)
}

// ListPerspectives lists expert perspectives, optionally of one initiative
func (h *Handler) ListPerspectives(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return respond(c, unauthenticated())
	}

	initiativeID, aerr := optionalID(c, "initiative_id")
	if aerr != nil {
		return respond(c, aerr)
	}

	ctx := c.Request().Context()
	filter := repository.PerspectiveFilter{InitiativeID: initiativeID}
	if initiativeID != 0 {
		initiative, aerr := h.loadInitiative(ctx, userID, initiativeID)
		if aerr != nil {
			return respond(c, aerr)
		}
		objective, aerr := h.loadObjective(ctx, userID, initiative.ObjectiveID)
		if aerr != nil {
			return respond(c, aerr)
		}
		filter.OrganizationIDs = []uint{objective.OrganizationID}
	} else if filter.OrganizationIDs, aerr = h.memberOrganizationIDs(ctx, userID); aerr != nil {
		return respond(c, aerr)
	}

	perspectives, err := h.repo.ListPerspectives(ctx, filter)
	if err != nil {
		logger.FromContext(c).Error("Failed to list perspectives", zap.Error(err))
		return respond(c, internal("db_error", "failed to retrieve perspectives"))
	}
	return c.JSON(http.StatusOK, perspectives)
}

// CreateNote records an alternative strategy or a devil's advocate point
func (h *Handler) CreateNote(c echo.Context) error {
	log := logger.FromContext(c)
	userID, ok := currentUserID(c)
	if !ok {
		return respond(c, unauthenticated())
	}

	var req createNoteRequest
	if aerr := bind(c, &req); aerr != nil {
		return respond(c, aerr)
	}

	ctx := c.Request().Context()
	if _, aerr := h.requireMember(ctx, userID, req.OrganizationID); aerr != nil {
		return respond(c, aerr)
	}

	note := model.StrategyNote{
		OrganizationID: req.OrganizationID,
		Kind:           req.Kind,
		Text:           req.Text,
		CreatedBy:      userID,
	}
	if err := h.repo.CreateNote(ctx, &note); err != nil {
		log.Error("Failed to create strategy note", zap.Error(err))
		return respond(c, internal("note_creation_failed", "strategy note creation failed"))
	}
	prometheus.RecordEntityCreated("strategy_note")

	return c.JSON(http.StatusCreated, note)
}

// ListNotes lists strategy notes, optionally of one kind
func (h *Handler) ListNotes(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return respond(c, unauthenticated())
	}

	kind := c.QueryParam("kind")
	if kind != "" && !model.IsNoteKind(kind) {
		return respond(c, badRequest("invalid_kind", "kind must be alternative or counterpoint"))
	}

	organizationIDs, aerr := h.scope(c, userID)
	if aerr != nil {
		return respond(c, aerr)
	}

	notes, err := h.repo.ListNotes(c.Request().Context(), repository.NoteFilter{
		OrganizationIDs: organizationIDs,
		Kind:            kind,
	})
	if err != nil {
		logger.FromContext(c).Error("Failed to list strategy notes", zap.Error(err))
		return respond(c, internal("db_error", "failed to retrieve strategy notes"))
	}
	return c.JSON(http.StatusOK, notes)
}
