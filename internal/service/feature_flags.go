package service

import (
	"course_gating_backend/internal/config"
	"sync/atomic"
)

// FeatureFlags holds the runtime switches that config hot reload may flip.
type FeatureFlags struct {
	gating     atomic.Bool
	milestones atomic.Bool
}

func NewFeatureFlags(cfg *config.Config) *FeatureFlags {
	f := &FeatureFlags{}
	f.Apply(cfg)
	return f
}

// Apply 从配置同步开关，配置热更新时调用
func (f *FeatureFlags) Apply(cfg *config.Config) {
	f.gating.Store(cfg.Gating.Enabled)
	f.milestones.Store(cfg.Milestones.Enabled)
}

// GatingEnabled reports the global gating switch. A nil receiver means enabled.
func (f *FeatureFlags) GatingEnabled() bool {
	return f == nil || f.gating.Load()
}

func (f *FeatureFlags) MilestonesEnabled() bool {
	return f == nil || f.milestones.Load()
}
