package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RelationshipRequires = "requires"
	RelationshipFulfills = "fulfills"
)

// swagger:model Milestone
type Milestone struct {
	BaseModel
	Name        string `gorm:"size:255;not null" json:"name"`
	Namespace   string `gorm:"size:255;index;not null" json:"namespace"`
	Description string `gorm:"type:text" json:"description"`
	Active      bool   `json:"active"`
}

func (Milestone) TableName() string {
	return "milestones"
}

// CourseContentMilestone links a block to a milestone it either fulfills or requires.
// swagger:model CourseContentMilestone
type CourseContentMilestone struct {
	BaseModel
	CourseKey    string         `gorm:"size:255;index;not null" json:"courseKey"`
	ContentKey   string         `gorm:"size:255;index;not null" json:"contentKey"`
	MilestoneID  uint           `gorm:"index;not null" json:"milestoneId"`
	Milestone    Milestone      `gorm:"foreignKey:MilestoneID" json:"milestone"`
	Relationship string         `gorm:"size:20;index;not null" json:"relationship"`
	Requirements datatypes.JSON `json:"requirements"`
	Active       bool           `json:"active"`
}

func (CourseContentMilestone) TableName() string {
	return "course_content_milestones"
}

// swagger:model UserMilestone
type UserMilestone struct {
	BaseModel
	UserID      uint       `gorm:"index:idx_user_milestone,unique;not null" json:"userId"`
	MilestoneID uint       `gorm:"index:idx_user_milestone,unique;not null" json:"milestoneId"`
	Source      string     `gorm:"size:255" json:"source"`
	CollectedAt *time.Time `json:"collectedAt,omitempty"`
	Active      bool       `json:"active"`
}

func (UserMilestone) TableName() string {
	return "user_milestones"
}
