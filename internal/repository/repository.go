// Package repository persists the strategy domain in PostgreSQL through gorm.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/suteetoe/strategy-service/internal/model"
)

var (
	// ErrNotFound is returned when the requested record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint is violated
	ErrDuplicate = errors.New("record already exists")
)

// UserRepository stores accounts and profiles
type UserRepository interface {
	// CreateUser inserts the user and its profile together.
	CreateUser(ctx context.Context, user *model.User, profile *model.Profile) error
	FindUserByID(ctx context.Context, id uint) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	FindProfile(ctx context.Context, userID uint) (*model.Profile, error)
}

// SessionRepository stores sign-in sessions
type SessionRepository interface {
	CreateSession(ctx context.Context, s *model.Session) error
	FindSession(ctx context.Context, id string) (*model.Session, error)
	// EndSession marks an active session as ended. Ending a session that has
	// already ended returns ErrNotFound.
	EndSession(ctx context.Context, id, reason string, at time.Time) error
	TouchSession(ctx context.Context, id string, at time.Time) error
}

// OrganizationRepository stores organizations and memberships
type OrganizationRepository interface {
	// CreateOrganization inserts org and an owner membership for its creator.
	CreateOrganization(ctx context.Context, org *model.Organization) error
	FindOrganization(ctx context.Context, id uint) (*model.Organization, error)
	FindMembership(ctx context.Context, userID, organizationID uint) (*model.Membership, error)
	// ListMemberships returns the caller's memberships with their organization.
	ListMemberships(ctx context.Context, userID uint) ([]model.Membership, error)
}

// StrategyRepository stores the planning artefacts
type StrategyRepository interface {
	CreateArea(ctx context.Context, area *model.StrategicArea) error
	FindArea(ctx context.Context, id uint) (*model.StrategicArea, error)
	FindAreaByName(ctx context.Context, organizationID uint, name string) (*model.StrategicArea, error)
	ListAreas(ctx context.Context, organizationIDs []uint) ([]model.StrategicArea, error)

	CreateContribution(ctx context.Context, c *model.StrategicContribution) error
	ListContributions(ctx context.Context, f ContributionFilter) ([]model.StrategicContribution, error)

	CreateObjective(ctx context.Context, o *model.Objective) error
	FindObjective(ctx context.Context, id uint) (*model.Objective, error)
	ListObjectives(ctx context.Context, organizationIDs []uint) ([]model.Objective, error)

	CreateInitiative(ctx context.Context, i *model.Initiative) error
	FindInitiative(ctx context.Context, id uint) (*model.Initiative, error)
	ListInitiatives(ctx context.Context, f InitiativeFilter) ([]model.Initiative, error)

	CreatePerspective(ctx context.Context, p *model.Perspective) error
	ListPerspectives(ctx context.Context, f PerspectiveFilter) ([]model.Perspective, error)

	CreateNote(ctx context.Context, n *model.StrategyNote) error
	ListNotes(ctx context.Context, f NoteFilter) ([]model.StrategyNote, error)

	Summarize(ctx context.Context, organizationIDs []uint, now time.Time) (*Summary, error)
}

// Repository is the full persistence surface used by the HTTP handlers
type Repository interface {
	UserRepository
	SessionRepository
	OrganizationRepository
	StrategyRepository
}

// ContributionFilter scopes a contribution listing. OrganizationIDs is
// always applied; AreaID narrows it further when non-zero.
type ContributionFilter struct {
	OrganizationIDs []uint
	AreaID          uint
}

// InitiativeFilter scopes an initiative listing
type InitiativeFilter struct {
	OrganizationIDs []uint
	ObjectiveID     uint
}

// PerspectiveFilter scopes a perspective listing
type PerspectiveFilter struct {
	OrganizationIDs []uint
	InitiativeID    uint
}

// NoteFilter scopes a strategy note listing
type NoteFilter struct {
	OrganizationIDs []uint
	Kind            string
}

// Summary is the dashboard view over the caller's organizations
type Summary struct {
	Organizations       int64              `json:"organizations"`
	Areas               int64              `json:"strategic_areas"`
	Contributions       int64              `json:"contributions"`
	Objectives          int64              `json:"objectives"`
	InitiativesByStatus map[string]int64   `json:"initiatives_by_status"`
	UpcomingDeadlines   []model.Initiative `json:"upcoming_deadlines"`
}

// upcomingLimit bounds Summary.UpcomingDeadlines
const upcomingLimit = 5
