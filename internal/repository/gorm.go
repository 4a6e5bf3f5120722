package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/suteetoe/strategy-service/internal/model"
	"github.com/suteetoe/strategy-service/prometheus"
	"gorm.io/gorm"
)

// GormRepository implements Repository on top of gorm
type GormRepository struct {
	db *gorm.DB
}

// New creates a gorm-backed repository
func New(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Models lists every table the repository needs, for AutoMigrate
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Profile{},
		&model.Session{},
		&model.Organization{},
		&model.Membership{},
		&model.StrategicArea{},
		&model.StrategicContribution{},
		&model.Objective{},
		&model.Initiative{},
		&model.Perspective{},
		&model.StrategyNote{},
	}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

func (r *GormRepository) create(ctx context.Context, what string, value interface{}) error {
	defer prometheus.TrackDBOperation("insert")()
	if err := r.db.WithContext(ctx).Create(value).Error; err != nil {
		if err = translate(err); errors.Is(err, ErrDuplicate) {
			return err
		}
		return fmt.Errorf("create %s: %w", what, err)
	}
	return nil
}

func (r *GormRepository) first(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	defer prometheus.TrackDBOperation("query")()
	return translate(r.db.WithContext(ctx).Where(query, args...).First(dest).Error)
}

func (r *GormRepository) CreateUser(ctx context.Context, user *model.User, profile *model.Profile) error {
	defer prometheus.TrackDBOperation("insert")()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		if profile == nil {
			return nil
		}
		profile.UserID = user.ID
		return tx.Create(profile).Error
	})
	if err = translate(err); err != nil && !errors.Is(err, ErrDuplicate) {
		return fmt.Errorf("create user: %w", err)
	}
	return err
}

func (r *GormRepository) FindUserByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.first(ctx, &user, "id = ?", id); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepository) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.first(ctx, &user, "email = ?", email); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepository) FindProfile(ctx context.Context, userID uint) (*model.Profile, error) {
	var profile model.Profile
	if err := r.first(ctx, &profile, "user_id = ?", userID); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *GormRepository) CreateSession(ctx context.Context, s *model.Session) error {
	return r.create(ctx, "session", s)
}

func (r *GormRepository) FindSession(ctx context.Context, id string) (*model.Session, error) {
	var s model.Session
	if err := r.first(ctx, &s, "id = ?", id); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormRepository) EndSession(ctx context.Context, id, reason string, at time.Time) error {
	defer prometheus.TrackDBOperation("update")()

	result := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ? AND ended_at IS NULL", id).
		Updates(map[string]interface{}{"ended_at": at, "end_reason": reason})
	if result.Error != nil {
		return fmt.Errorf("end session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) TouchSession(ctx context.Context, id string, at time.Time) error {
	defer prometheus.TrackDBOperation("update")()

	result := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ? AND ended_at IS NULL", id).
		Update("last_activity_at", at)
	if result.Error != nil {
		return fmt.Errorf("touch session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) CreateOrganization(ctx context.Context, org *model.Organization) error {
	defer prometheus.TrackDBOperation("insert")()

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin transaction: %w", tx.Error)
	}

	if err := tx.Create(org).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("create organization: %w", translate(err))
	}

	membership := model.Membership{
		UserID:         org.CreatedBy,
		OrganizationID: org.ID,
		Role:           model.RoleOwner,
	}
	if err := tx.Create(&membership).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("create owner membership: %w", translate(err))
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("commit organization: %w", err)
	}
	return nil
}

func (r *GormRepository) FindOrganization(ctx context.Context, id uint) (*model.Organization, error) {
	var org model.Organization
	if err := r.first(ctx, &org, "id = ?", id); err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *GormRepository) FindMembership(ctx context.Context, userID, organizationID uint) (*model.Membership, error) {
	var m model.Membership
	if err := r.first(ctx, &m, "user_id = ? AND organization_id = ?", userID, organizationID); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *GormRepository) ListMemberships(ctx context.Context, userID uint) ([]model.Membership, error) {
	defer prometheus.TrackDBOperation("query")()

	var memberships []model.Membership
	err := r.db.WithContext(ctx).Preload("Organization").
		Where("user_id = ?", userID).
		Order("id").
		Find(&memberships).Error
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return memberships, nil
}

func (r *GormRepository) CreateArea(ctx context.Context, area *model.StrategicArea) error {
	return r.create(ctx, "strategic area", area)
}

func (r *GormRepository) FindArea(ctx context.Context, id uint) (*model.StrategicArea, error) {
	var area model.StrategicArea
	if err := r.first(ctx, &area, "id = ?", id); err != nil {
		return nil, err
	}
	return &area, nil
}

func (r *GormRepository) FindAreaByName(ctx context.Context, organizationID uint, name string) (*model.StrategicArea, error) {
	var area model.StrategicArea
	if err := r.first(ctx, &area, "organization_id = ? AND name = ?", organizationID, name); err != nil {
		return nil, err
	}
	return &area, nil
}

func (r *GormRepository) ListAreas(ctx context.Context, organizationIDs []uint) ([]model.StrategicArea, error) {
	defer prometheus.TrackDBOperation("query")()

	areas := []model.StrategicArea{}
	if len(organizationIDs) == 0 {
		return areas, nil
	}
	err := r.db.WithContext(ctx).
		Where("organization_id IN ?", organizationIDs).
		Order("id").
		Find(&areas).Error
	if err != nil {
		return nil, fmt.Errorf("list areas: %w", err)
	}
	return areas, nil
}

func (r *GormRepository) CreateContribution(ctx context.Context, c *model.StrategicContribution) error {
	return r.create(ctx, "contribution", c)
}

func (r *GormRepository) ListContributions(ctx context.Context, f ContributionFilter) ([]model.StrategicContribution, error) {
	defer prometheus.TrackDBOperation("query")()

	contributions := []model.StrategicContribution{}
	if len(f.OrganizationIDs) == 0 {
		return contributions, nil
	}
	q := r.db.WithContext(ctx).
		Joins("JOIN strategic_areas ON strategic_areas.id = strategic_contributions.area_id").
		Where("strategic_areas.organization_id IN ?", f.OrganizationIDs)
	if f.AreaID != 0 {
		q = q.Where("strategic_contributions.area_id = ?", f.AreaID)
	}
	if err := q.Order("strategic_contributions.id").Find(&contributions).Error; err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	return contributions, nil
}

func (r *GormRepository) CreateObjective(ctx context.Context, o *model.Objective) error {
	return r.create(ctx, "objective", o)
}

func (r *GormRepository) FindObjective(ctx context.Context, id uint) (*model.Objective, error) {
	var o model.Objective
	if err := r.first(ctx, &o, "id = ?", id); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormRepository) ListObjectives(ctx context.Context, organizationIDs []uint) ([]model.Objective, error) {
	defer prometheus.TrackDBOperation("query")()

	objectives := []model.Objective{}
	if len(organizationIDs) == 0 {
		return objectives, nil
	}
	err := r.db.WithContext(ctx).
		Where("organization_id IN ?", organizationIDs).
		Order("id").
		Find(&objectives).Error
	if err != nil {
		return nil, fmt.Errorf("list objectives: %w", err)
	}
	return objectives, nil
}

func (r *GormRepository) CreateInitiative(ctx context.Context, i *model.Initiative) error {
	return r.create(ctx, "initiative", i)
}

func (r *GormRepository) FindInitiative(ctx context.Context, id uint) (*model.Initiative, error) {
	var i model.Initiative
	if err := r.first(ctx, &i, "id = ?", id); err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *GormRepository) initiativesIn(ctx context.Context, organizationIDs []uint) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.Initiative{}).
		Joins("JOIN objectives ON objectives.id = initiatives.objective_id").
		Where("objectives.organization_id IN ?", organizationIDs)
}

func (r *GormRepository) ListInitiatives(ctx context.Context, f InitiativeFilter) ([]model.Initiative, error) {
	defer prometheus.TrackDBOperation("query")()

	initiatives := []model.Initiative{}
	if len(f.OrganizationIDs) == 0 {
		return initiatives, nil
	}
	q := r.initiativesIn(ctx, f.OrganizationIDs)
	if f.ObjectiveID != 0 {
		q = q.Where("initiatives.objective_id = ?", f.ObjectiveID)
	}
	if err := q.Order("initiatives.id").Find(&initiatives).Error; err != nil {
		return nil, fmt.Errorf("list initiatives: %w", err)
	}
	return initiatives, nil
}

func (r *GormRepository) CreatePerspective(ctx context.Context, p *model.Perspective) error {
	return r.create(ctx, "perspective", p)
}

func (r *GormRepository) ListPerspectives(ctx context.Context, f PerspectiveFilter) ([]model.Perspective, error) {
	defer prometheus.TrackDBOperation("query")()

	perspectives := []model.Perspective{}
	if len(f.OrganizationIDs) == 0 {
		return perspectives, nil
	}
	q := r.db.WithContext(ctx).
		Joins("JOIN initiatives ON initiatives.id = perspectives.initiative_id").
		Joins("JOIN objectives ON objectives.id = initiatives.objective_id").
		Where("objectives.organization_id IN ?", f.OrganizationIDs)
	if f.InitiativeID != 0 {
		q = q.Where("perspectives.initiative_id = ?", f.InitiativeID)
	}
	if err := q.Order("perspectives.id").Find(&perspectives).Error; err != nil {
		return nil, fmt.Errorf("list perspectives: %w", err)
	}
	return perspectives, nil
}

func (r *GormRepository) CreateNote(ctx context.Context, n *model.StrategyNote) error {
	return r.create(ctx, "strategy note", n)
}

func (r *GormRepository) ListNotes(ctx context.Context, f NoteFilter) ([]model.StrategyNote, error) {
	defer prometheus.TrackDBOperation("query")()

	notes := []model.StrategyNote{}
	if len(f.OrganizationIDs) == 0 {
		return notes, nil
	}
	q := r.db.WithContext(ctx).Where("organization_id IN ?", f.OrganizationIDs)
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if err := q.Order("id").Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("list strategy notes: %w", err)
	}
	return notes, nil
}

func (r *GormRepository) Summarize(ctx context.Context, organizationIDs []uint, now time.Time) (*Summary, error) {
	defer prometheus.TrackDBOperation("query")()

	summary := &Summary{
		Organizations:       int64(len(organizationIDs)),
		InitiativesByStatus: map[string]int64{},
		UpcomingDeadlines:   []model.Initiative{},
	}
	for _, status := range model.InitiativeStatuses {
		summary.InitiativesByStatus[status] = 0
	}
	if len(organizationIDs) == 0 {
		return summary, nil
	}

	db := r.db.WithContext(ctx)
	if err := db.Model(&model.StrategicArea{}).Where("organization_id IN ?", organizationIDs).Count(&summary.Areas).Error; err != nil {
		return nil, fmt.Errorf("count areas: %w", err)
	}
	err := db.Model(&model.StrategicContribution{}).
		Joins("JOIN strategic_areas ON strategic_areas.id = strategic_contributions.area_id").
		Where("strategic_areas.organization_id IN ?", organizationIDs).
		Count(&summary.Contributions).Error
	if err != nil {
		return nil, fmt.Errorf("count contributions: %w", err)
	}
	if err := db.Model(&model.Objective{}).Where("organization_id IN ?", organizationIDs).Count(&summary.Objectives).Error; err != nil {
		return nil, fmt.Errorf("count objectives: %w", err)
	}

	var rows []struct {
		Status string
		Total  int64
	}
	err = r.initiativesIn(ctx, organizationIDs).
		Select("initiatives.status AS status, COUNT(*) AS total").
		Group("initiatives.status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count initiatives: %w", err)
	}
	for _, row := range rows {
		summary.InitiativesByStatus[row.Status] = row.Total
	}

	err = r.initiativesIn(ctx, organizationIDs).
		Where("initiatives.end_date >= ? AND initiatives.status <> ?", now, model.StatusCompleted).
		Order("initiatives.end_date").
		Limit(upcomingLimit).
		Find(&summary.UpcomingDeadlines).Error
	if err != nil {
		return nil, fmt.Errorf("list upcoming deadlines: %w", err)
	}

	return summary, nil
}
