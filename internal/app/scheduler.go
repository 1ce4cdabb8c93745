package app

import (
	"context"
	"course_gating_backend/pkg/logger"
	"course_gating_backend/pkg/security"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ReconcileGating regrades every gating-enabled course so that learners are
// re-evaluated against the current thresholds. It returns the number of grades written.
func (c *Core) ReconcileGating(ctx context.Context) (int, error) {
	if !c.Flags.GatingEnabled() {
		return 0, nil
	}
	courses, err := c.Content.GatingEnabledCourses(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, course := range courses {
		n, err := c.Grades.Recalculate(ctx, course.CourseKey)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// startScheduler 注册定时任务：门控重算、限流表清理
func (a *App) startScheduler(limiter *security.Limiter) (*cron.Cron, error) {
	c := cron.New()

	if spec := a.Config.Gating.ReconcileCron; spec != "" {
		_, err := c.AddFunc(spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()
			start := time.Now()
			n, err := a.Core.ReconcileGating(ctx)
			if err != nil {
				logger.Log.Error("gating reconciliation failed", zap.Error(err), zap.Int("grades", n))
				return
			}
			logger.Log.Info("gating reconciliation finished", zap.Int("grades", n), zap.Duration("took", time.Since(start)))
		})
		if err != nil {
			return nil, err
		}
	}

	if limiter != nil {
		if _, err := c.AddFunc("@every 1m", func() { limiter.Sweep(time.Now()) }); err != nil {
			return nil, err
		}
	}

	c.Start()
	return c, nil
}
