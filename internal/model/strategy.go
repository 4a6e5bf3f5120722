package model

import (
	"time"

	"gorm.io/gorm"
)

// StrategicArea is a department or function of an organization
type StrategicArea struct {
	ID               uint           `json:"id" gorm:"primaryKey"`
	OrganizationID   uint           `json:"organization_id" gorm:"index;not null"`
	Name             string         `json:"name" gorm:"type:varchar(100);not null"`
	Responsibilities []string       `json:"responsibilities" gorm:"type:jsonb;serializer:json"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-" gorm:"index"`
}

// StrategicContribution records how an area contributes to a strategic line
type StrategicContribution struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	AreaID        uint           `json:"area_id" gorm:"index;not null"`
	StrategicLine string         `json:"strategic_line" gorm:"type:varchar(50);not null"`
	Contribution  string         `json:"contribution" gorm:"type:text;not null"`
	Examples      []string       `json:"examples" gorm:"type:jsonb;serializer:json"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}

// Objective is a strategic objective with its KPIs
type Objective struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	OrganizationID uint           `json:"organization_id" gorm:"index;not null"`
	Title          string         `json:"title" gorm:"type:varchar(255);not null"`
	Description    string         `json:"description" gorm:"type:text"`
	KPIs           []string       `json:"kpis" gorm:"column:kpis;type:jsonb;serializer:json"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}

// Initiative statuses
const (
	StatusPlanning   = "planning"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
)

// InitiativeStatuses lists the valid initiative statuses
var InitiativeStatuses = []string{StatusPlanning, StatusInProgress, StatusCompleted}

// Initiative is a concrete piece of work serving an objective
type Initiative struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	ObjectiveID uint           `json:"objective_id" gorm:"index;not null"`
	Title       string         `json:"title" gorm:"type:varchar(255);not null"`
	Description string         `json:"description" gorm:"type:text"`
	Responsible string         `json:"responsible" gorm:"type:varchar(150)"`
	StartDate   *time.Time     `json:"start_date,omitempty"`
	EndDate     *time.Time     `json:"end_date,omitempty"`
	Status      string         `json:"status" gorm:"type:varchar(20);not null;default:'planning'"`
	Actions     []string       `json:"actions" gorm:"type:jsonb;serializer:json"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// Perspective is an expert's argument about an initiative
type Perspective struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	InitiativeID uint      `json:"initiative_id" gorm:"index;not null"`
	ExpertID     string    `json:"expert_id" gorm:"type:varchar(10);not null"`
	Argument     string    `json:"argument" gorm:"type:text;not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Strategy note kinds
const (
	NoteAlternative  = "alternative"
	NoteCounterpoint = "counterpoint"
)

// StrategyNote is an alternative strategy or a devil's advocate point
type StrategyNote struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	OrganizationID uint      `json:"organization_id" gorm:"index;not null"`
	Kind           string    `json:"kind" gorm:"type:varchar(20);not null;index"`
	Text           string    `json:"text" gorm:"type:text;not null"`
	CreatedBy      uint      `json:"created_by" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
