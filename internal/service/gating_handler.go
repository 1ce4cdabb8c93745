package service

import (
	"context"
	"course_gating_backend/internal/model"
	"course_gating_backend/internal/signals"
	"course_gating_backend/pkg/monitoring"
	"fmt"
)

// EvaluatePrerequisiteReceiver is the receiver name used on SubsectionScoreChanged.
const EvaluatePrerequisiteReceiver = "gating.evaluate_prerequisite"

// PrerequisiteEvaluator is satisfied by GatingService.
type PrerequisiteEvaluator interface {
	EvaluatePrerequisite(ctx context.Context, course *model.Course, grade *model.SubsectionGrade, userID uint) error
}

// ConnectGatingHandlers 订阅小节成绩变化信号，触发前置条件评估
func ConnectGatingHandlers(d *signals.Dispatcher, evaluator PrerequisiteEvaluator) {
	d.Connect(signals.SubsectionScoreChanged, EvaluatePrerequisiteReceiver, EvaluateOnSubsectionScoreChanged(evaluator))
}

// EvaluateOnSubsectionScoreChanged calls the evaluator once per subsection grade
// change in a course with subsection gating enabled. A failed evaluation does not
// fail the grade write; it is counted under outcome "error" and logged by the dispatcher.
func EvaluateOnSubsectionScoreChanged(evaluator PrerequisiteEvaluator) signals.Receiver {
	return func(ctx context.Context, evt signals.Event) error {
		payload, ok := evt.Payload.(signals.SubsectionScorePayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Signal)
		}
		if payload.Course == nil || payload.Grade == nil || !payload.Course.EnableSubsectionGating {
			return nil
		}
		if err := evaluator.EvaluatePrerequisite(ctx, payload.Course, payload.Grade, payload.UserID); err != nil {
			monitoring.GatingEvaluations.WithLabelValues("error").Inc()
			return fmt.Errorf("evaluate prerequisite %s: %w", payload.Grade.UsageKey, err)
		}
		return nil
	}
}
