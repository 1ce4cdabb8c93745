package model

import "time"

// ProblemScore 学生在单个题目上的最新得分
// swagger:model ProblemScore
type ProblemScore struct {
	BaseModel
	UserID    uint    `gorm:"index:idx_problem_score_user_block,unique;not null" json:"userId"`
	UsageKey  string  `gorm:"size:255;index:idx_problem_score_user_block,unique;not null" json:"usageKey"`
	CourseKey string  `gorm:"size:255;index;not null" json:"courseKey"`
	Earned    float64 `json:"earned"`
	Possible  float64 `json:"possible"`
	Graded    bool    `json:"graded"`
}

func (ProblemScore) TableName() string {
	return "problem_scores"
}

// SubsectionGrade is the persisted aggregate of problem scores under one sequential.
// swagger:model SubsectionGrade
type SubsectionGrade struct {
	BaseModel
	UserID           uint       `gorm:"index:idx_subsection_grade_user_block,unique;not null" json:"userId"`
	UsageKey         string     `gorm:"size:255;index:idx_subsection_grade_user_block,unique;not null" json:"usageKey"`
	CourseKey        string     `gorm:"size:255;index;not null" json:"courseKey"`
	EarnedAll        float64    `json:"earnedAll"`
	PossibleAll      float64    `json:"possibleAll"`
	EarnedGraded     float64    `json:"earnedGraded"`
	PossibleGraded   float64    `json:"possibleGraded"`
	FirstAttemptedAt *time.Time `json:"firstAttemptedAt,omitempty"`
}

func (SubsectionGrade) TableName() string {
	return "subsection_grades"
}

// PercentAll returns earned/possible over every problem as a 0-100 percentage.
func (g *SubsectionGrade) PercentAll() float64 {
	if g == nil || g.PossibleAll == 0 {
		return 0
	}
	return g.EarnedAll / g.PossibleAll * 100
}
