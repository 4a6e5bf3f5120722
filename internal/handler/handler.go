// Package handler implements the HTTP API of the strategy service.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/strategy-service/internal/middleware"
	"github.com/suteetoe/strategy-service/internal/model"
	"github.com/suteetoe/strategy-service/internal/repository"
	"github.com/suteetoe/strategy-service/internal/session"
	"github.com/suteetoe/strategy-service/internal/suggestion"
	"github.com/suteetoe/strategy-service/pkg/jwtutil"
	"github.com/suteetoe/strategy-service/pkg/logger"
	"github.com/suteetoe/strategy-service/pkg/oauth"
	"github.com/suteetoe/strategy-service/prometheus"
	"go.uber.org/zap"
)

// Deps are the collaborators of the HTTP handlers
type Deps struct {
	ServiceName string
	Repo        repository.Repository
	JWT         *jwtutil.JWTUtil
	Sessions    *session.Registry
	Suggestions *suggestion.Engine
	// OAuth is nil when Google sign-in is not configured.
	OAuth       oauth.Provider
	IdleTimeout time.Duration
	SignInPath  string
	// SecureCookies marks the OAuth state cookie as Secure.
	SecureCookies bool
	// DB is pinged by the health check when ?check=db is given.
	DB Pinger
}

// Pinger is satisfied by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler serves every API route
type Handler struct {
	serviceName   string
	repo          repository.Repository
	jwt           *jwtutil.JWTUtil
	sessions      *session.Registry
	suggestions   *suggestion.Engine
	oauth         oauth.Provider
	idleTimeout   time.Duration
	signInPath    string
	secureCookies bool
	db            Pinger
	now           func() time.Time
}

// New creates the handler set
func New(deps Deps) *Handler {
	if deps.IdleTimeout <= 0 {
		deps.IdleTimeout = session.DefaultIdleTimeout
	}
	if deps.SignInPath == "" {
		deps.SignInPath = "/auth"
	}
	return &Handler{
		serviceName:   deps.ServiceName,
		repo:          deps.Repo,
		jwt:           deps.JWT,
		sessions:      deps.Sessions,
		suggestions:   deps.Suggestions,
		oauth:         deps.OAuth,
		idleTimeout:   deps.IdleTimeout,
		signInPath:    deps.SignInPath,
		secureCookies: deps.SecureCookies,
		db:            deps.DB,
		now:           time.Now,
	}
}

// apiError is a failed request, ready to be written as JSON
type apiError struct {
	status  int
	message string
	kind    string // prometheus error type
}

func (e *apiError) Error() string { return e.message }

func badRequest(kind, message string) *apiError {
	return &apiError{status: http.StatusBadRequest, message: message, kind: kind}
}

func notFound(kind, message string) *apiError {
	return &apiError{status: http.StatusNotFound, message: message, kind: kind}
}

func forbidden(kind string) *apiError {
	return &apiError{status: http.StatusForbidden, message: "access denied", kind: kind}
}

func internal(kind, message string) *apiError {
	return &apiError{status: http.StatusInternalServerError, message: message, kind: kind}
}

func respond(c echo.Context, e *apiError) error {
	prometheus.RecordError(e.kind)
	return c.JSON(e.status, echo.Map{"error": e.message})
}

// trimmer is implemented by requests whose text fields are trimmed before
// they are validated
type trimmer interface {
	trim()
}

// bind decodes and validates the request body into req
func bind(c echo.Context, req interface{}) *apiError {
	if err := c.Bind(req); err != nil {
		logger.FromContext(c).Warn("Failed to parse request", zap.Error(err))
		return badRequest("invalid_request", "invalid request")
	}
	if t, ok := req.(trimmer); ok {
		t.trim()
	}
	if err := c.Validate(req); err != nil {
		return badRequest("validation_failed", middleware.ValidationMessage(err))
	}
	return nil
}

func currentUserID(c echo.Context) (uint, bool) {
	id, ok := c.Get(middleware.UserIDKey).(uint)
	return id, ok && id != 0
}

func currentSessionID(c echo.Context) string {
	id, _ := c.Get(middleware.SessionIDKey).(string)
	return id
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

// optionalID parses a query parameter; zero means absent
func optionalID(c echo.Context, name string) (uint, *apiError) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	id, err := parseID(raw)
	if err != nil {
		return 0, badRequest("invalid_"+name, "invalid "+name)
	}
	return id, nil
}

// mergeLines combines the array and newline-text forms of a list field
func mergeLines(items []string, text string) []string {
	all := make([]string, 0, len(items)+1)
	all = append(all, items...)
	all = append(all, text)
	return model.CleanLines(all)
}

// requireMember checks that organizationID exists and that userID belongs to it
func (h *Handler) requireMember(ctx context.Context, userID, organizationID uint) (*model.Membership, *apiError) {
	if organizationID == 0 {
		return nil, badRequest("missing_organization", "organization_id is required")
	}
	if _, err := h.repo.FindOrganization(ctx, organizationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("organization_not_found", "organization not found")
		}
		return nil, internal("db_error", "failed to load organization")
	}
	membership, err := h.repo.FindMembership(ctx, userID, organizationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, forbidden("organization_access_denied")
		}
		return nil, internal("db_error", "failed to load membership")
	}
	return membership, nil
}

func (h *Handler) memberOrganizationIDs(ctx context.Context, userID uint) ([]uint, *apiError) {
	memberships, err := h.repo.ListMemberships(ctx, userID)
	if err != nil {
		return nil, internal("db_error", "failed to load organizations")
	}
	ids := make([]uint, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.OrganizationID)
	}
	return ids, nil
}

// scope returns the organizations a listing may read: the one named by the
// organization_id query parameter, or every organization of the caller.
func (h *Handler) scope(c echo.Context, userID uint) ([]uint, *apiError) {
	organizationID, aerr := optionalID(c, "organization_id")
	if aerr != nil {
		return nil, aerr
	}
	if organizationID == 0 {
		return h.memberOrganizationIDs(c.Request().Context(), userID)
	}
	if _, aerr := h.requireMember(c.Request().Context(), userID, organizationID); aerr != nil {
		return nil, aerr
	}
	return []uint{organizationID}, nil
}

// loadArea returns an area the caller may access
func (h *Handler) loadArea(ctx context.Context, userID, areaID uint) (*model.StrategicArea, *apiError) {
	area, err := h.repo.FindArea(ctx, areaID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("area_not_found", "strategic area not found")
		}
		return nil, internal("db_error", "failed to load strategic area")
	}
	if _, aerr := h.requireMember(ctx, userID, area.OrganizationID); aerr != nil {
		return nil, aerr
	}
	return area, nil
}

// loadObjective returns an objective the caller may access
func (h *Handler) loadObjective(ctx context.Context, userID, objectiveID uint) (*model.Objective, *apiError) {
	objective, err := h.repo.FindObjective(ctx, objectiveID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("objective_not_found", "objective not found")
		}
		return nil, internal("db_error", "failed to load objective")
	}
	if _, aerr := h.requireMember(ctx, userID, objective.OrganizationID); aerr != nil {
		return nil, aerr
	}
	return objective, nil
}

// loadInitiative returns an initiative the caller may access
func (h *Handler) loadInitiative(ctx context.Context, userID, initiativeID uint) (*model.Initiative, *apiError) {
	initiative, err := h.repo.FindInitiative(ctx, initiativeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("initiative_not_found", "initiative not found")
		}
		return nil, internal("db_error", "failed to load initiative")
	}
	if _, aerr := h.loadObjective(ctx, userID, initiative.ObjectiveID); aerr != nil {
		return nil, aerr
	}
	return initiative, nil
}

func unauthenticated() *apiError {
	return &apiError{status: http.StatusUnauthorized, message: "authentication required", kind: "unauthenticated"}
}
