package handler

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/suteetoe/strategy-service/internal/model"
	"github.com/suteetoe/strategy-service/internal/repository"
)

// memRepo is an in-memory repository.Repository
type memRepo struct {
	mu sync.Mutex

	nextID        uint
	users         map[uint]*model.User
	profiles      map[uint]*model.Profile
	sessions      map[string]*model.Session
	organizations map[uint]*model.Organization
	memberships   []model.Membership
	areas         map[uint]*model.StrategicArea
	contributions []model.StrategicContribution
	objectives    map[uint]*model.Objective
	initiatives   map[uint]*model.Initiative
	perspectives  []model.Perspective
	notes         []model.StrategyNote
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:         map[uint]*model.User{},
		profiles:      map[uint]*model.Profile{},
		sessions:      map[string]*model.Session{},
		organizations: map[uint]*model.Organization{},
		areas:         map[uint]*model.StrategicArea{},
		objectives:    map[uint]*model.Objective{},
		initiatives:   map[uint]*model.Initiative{},
	}
}

func (r *memRepo) id() uint {
	r.nextID++
	return r.nextID
}

func contains(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (r *memRepo) CreateUser(ctx context.Context, user *model.User, profile *model.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	user.ID = r.id()
	stored := *user
	r.users[user.ID] = &stored
	if profile != nil {
		profile.UserID = user.ID
		p := *profile
		r.profiles[user.ID] = &p
	}
	return nil
}

func (r *memRepo) FindUserByID(ctx context.Context, id uint) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	found := *u
	return &found, nil
}

func (r *memRepo) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			found := *u
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRepo) FindProfile(ctx context.Context, userID uint) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	found := *p
	return &found, nil
}

func (r *memRepo) CreateSession(ctx context.Context, s *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *s
	r.sessions[s.ID] = &stored
	return nil
}

func (r *memRepo) FindSession(ctx context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	found := *s
	return &found, nil
}

func (r *memRepo) EndSession(ctx context.Context, id, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.EndedAt != nil {
		return repository.ErrNotFound
	}
	s.EndedAt = &at
	s.EndReason = reason
	return nil
}

func (r *memRepo) TouchSession(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.EndedAt != nil {
		return repository.ErrNotFound
	}
	s.LastActivityAt = at
	return nil
}

func (r *memRepo) session(id string) model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.sessions[id]
}

func (r *memRepo) CreateOrganization(ctx context.Context, org *model.Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	org.ID = r.id()
	org.CreatedAt = time.Now()
	stored := *org
	r.organizations[org.ID] = &stored
	r.memberships = append(r.memberships, model.Membership{
		ID:             r.id(),
		UserID:         org.CreatedBy,
		OrganizationID: org.ID,
		Role:           model.RoleOwner,
	})
	return nil
}

func (r *memRepo) FindOrganization(ctx context.Context, id uint) (*model.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.organizations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	found := *o
	return &found, nil
}

func (r *memRepo) FindMembership(ctx context.Context, userID, organizationID uint) (*model.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.memberships {
		if m.UserID == userID && m.OrganizationID == organizationID {
			found := m
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRepo) ListMemberships(ctx context.Context, userID uint) ([]model.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	memberships := []model.Membership{}
	for _, m := range r.memberships {
		if m.UserID == userID {
			m.Organization = *r.organizations[m.OrganizationID]
			memberships = append(memberships, m)
		}
	}
	return memberships, nil
}

// addMember joins userID to organizationID with role
func (r *memRepo) addMember(userID, organizationID uint, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memberships = append(r.memberships, model.Membership{
		ID:             r.id(),
		UserID:         userID,
		OrganizationID: organizationID,
		Role:           role,
	})
}

func (r *memRepo) CreateArea(ctx context.Context, area *model.StrategicArea) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.areas {
		if a.OrganizationID == area.OrganizationID && a.Name == area.Name {
			return repository.ErrDuplicate
		}
	}
	area.ID = r.id()
	stored := *area
	r.areas[area.ID] = &stored
	return nil
}

func (r *memRepo) FindArea(ctx context.Context, id uint) (*model.StrategicArea, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.areas[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	found := *a
	return &found, nil
}

func (r *memRepo) FindAreaByName(ctx context.Context, organizationID uint, name string) (*model.StrategicArea, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.areas {
		if a.OrganizationID == organizationID && strings.EqualFold(a.Name, name) {
			found := *a
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRepo) ListAreas(ctx context.Context, organizationIDs []uint) ([]model.StrategicArea, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	areas := []model.StrategicArea{}
	for _, a := range r.areas {
		if contains(organizationIDs, a.OrganizationID) {
			areas = append(areas, *a)
		}
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].ID < areas[j].ID })
	return areas, nil
}

func (r *memRepo) CreateContribution(ctx context.Context, c *model.StrategicContribution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = r.id()
	r.contributions = append(r.contributions, *c)
	return nil
}

func (r *memRepo) ListContributions(ctx context.Context, f repository.ContributionFilter) ([]model.StrategicContribution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	contributions := []model.StrategicContribution{}
	for _, c := range r.contributions {
		area := r.areas[c.AreaID]
		if !contains(f.OrganizationIDs, area.OrganizationID) {
			continue
		}
		if f.AreaID != 0 && c.AreaID != f.AreaID {
			continue
		}
		contributions = append(contributions, c)
	}
	return contributions, nil
}

func (r *memRepo) CreateObjective(ctx context.Context, o *model.Objective) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o.ID = r.id()
	stored := *o
	r.objectives[o.ID] = &stored
	return nil
}

func (r *memRepo) FindObjective(ctx context.Context, id uint) (*model.Objective, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.objectives[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	found := *o
	return &found, nil
}

func (r *memRepo) ListObjectives(ctx context.Context, organizationIDs []uint) ([]model.Objective, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	objectives := []model.Objective{}
	for _, o := range r.objectives {
		if contains(organizationIDs, o.OrganizationID) {
			objectives = append(objectives, *o)
		}
	}
	sort.Slice(objectives, func(i, j int) bool { return objectives[i].ID < objectives[j].ID })
	return objectives, nil
}

func (r *memRepo) CreateInitiative(ctx context.Context, i *model.Initiative) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i.ID = r.id()
	stored := *i
	r.initiatives[i.ID] = &stored
	return nil
}

func (r *memRepo) FindInitiative(ctx context.Context, id uint) (*model.Initiative, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.initiatives[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	found := *i
	return &found, nil
}

func (r *memRepo) initiativeOrganization(i *model.Initiative) uint {
	return r.objectives[i.ObjectiveID].OrganizationID
}

func (r *memRepo) ListInitiatives(ctx context.Context, f repository.InitiativeFilter) ([]model.Initiative, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	initiatives := []model.Initiative{}
	for _, i := range r.initiatives {
		if !contains(f.OrganizationIDs, r.initiativeOrganization(i)) {
			continue
		}
		if f.ObjectiveID != 0 && i.ObjectiveID != f.ObjectiveID {
			continue
		}
		initiatives = append(initiatives, *i)
	}
	sort.Slice(initiatives, func(a, b int) bool { return initiatives[a].ID < initiatives[b].ID })
	return initiatives, nil
}

func (r *memRepo) CreatePerspective(ctx context.Context, p *model.Perspective) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.id()
	r.perspectives = append(r.perspectives, *p)
	return nil
}

func (r *memRepo) ListPerspectives(ctx context.Context, f repository.PerspectiveFilter) ([]model.Perspective, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	perspectives := []model.Perspective{}
	for _, p := range r.perspectives {
		if !contains(f.OrganizationIDs, r.initiativeOrganization(r.initiatives[p.InitiativeID])) {
			continue
		}
		if f.InitiativeID != 0 && p.InitiativeID != f.InitiativeID {
			continue
		}
		perspectives = append(perspectives, p)
	}
	return perspectives, nil
}

func (r *memRepo) CreateNote(ctx context.Context, n *model.StrategyNote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.ID = r.id()
	r.notes = append(r.notes, *n)
	return nil
}

func (r *memRepo) ListNotes(ctx context.Context, f repository.NoteFilter) ([]model.StrategyNote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	notes := []model.StrategyNote{}
	for _, n := range r.notes {
		if !contains(f.OrganizationIDs, n.OrganizationID) {
			continue
		}
		if f.Kind != "" && n.Kind != f.Kind {
			continue
		}
		notes = append(notes, n)
	}
	return notes, nil
}

func (r *memRepo) Summarize(ctx context.Context, organizationIDs []uint, now time.Time) (*repository.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	summary := &repository.Summary{
		Organizations:       int64(len(organizationIDs)),
		InitiativesByStatus: map[string]int64{},
		UpcomingDeadlines:   []model.Initiative{},
	}
	for _, status := range model.InitiativeStatuses {
		summary.InitiativesByStatus[status] = 0
	}
	for _, a := range r.areas {
		if contains(organizationIDs, a.OrganizationID) {
			summary.Areas++
		}
	}
	for _, c := range r.contributions {
		if contains(organizationIDs, r.areas[c.AreaID].OrganizationID) {
			summary.Contributions++
		}
	}
	for _, o := range r.objectives {
		if contains(organizationIDs, o.OrganizationID) {
			summary.Objectives++
		}
	}
	for _, i := range r.initiatives {
		if !contains(organizationIDs, r.initiativeOrganization(i)) {
			continue
		}
		summary.InitiativesByStatus[i.Status]++
		if i.EndDate != nil && !i.EndDate.Before(now) && i.Status != model.StatusCompleted {
			summary.UpcomingDeadlines = append(summary.UpcomingDeadlines, *i)
		}
	}
	return summary, nil
}

var _ repository.Repository = (*memRepo)(nil)
