// Package signals is a small synchronous signal bus for grading and milestone events.
package signals

import (
	"course_gating_backend/internal/model"
	"time"
)

type Signal string

const (
	ProblemScoreChanged    Signal = "problem_score_changed"
	SubsectionScoreChanged Signal = "subsection_score_changed"
	MilestoneChanged       Signal = "milestone_changed"
)

// Event is what receivers get; Payload is one of the *Payload types below.
type Event struct {
	ID      string      `json:"id"`
	Signal  Signal      `json:"signal"`
	SentAt  time.Time   `json:"sentAt"`
	Payload interface{} `json:"payload"`
}

type ProblemScorePayload struct {
	CourseKey string              `json:"courseKey"`
	UserID    uint                `json:"userId"`
	Score     *model.ProblemScore `json:"score"`
}

type SubsectionScorePayload struct {
	Course *model.Course          `json:"course"`
	Grade  *model.SubsectionGrade `json:"grade"`
	UserID uint                   `json:"userId"`
}

type MilestonePayload struct {
	UserID      uint `json:"userId"`
	MilestoneID uint `json:"milestoneId"`
	Collected   bool `json:"collected"`
}
