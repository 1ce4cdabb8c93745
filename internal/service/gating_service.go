package service

import (
	"context"
	"course_gating_backend/internal/model"
	"course_gating_backend/internal/util"
	"course_gating_backend/pkg/logger"
	"course_gating_backend/pkg/monitoring"
	"course_gating_backend/pkg/tracing"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// MilestoneStore is the milestone configuration surface gating reads and writes.
// User fulfillment goes through MilestoneFulfiller instead.
type MilestoneStore interface {
	AddMilestone(ctx context.Context, m *model.Milestone) (*model.Milestone, error)
	GetMilestones(ctx context.Context, namespace string) ([]model.Milestone, error)
	RemoveMilestone(ctx context.Context, id uint) error
	AddCourseContentMilestone(ctx context.Context, courseKey, contentKey, relationship string, milestoneID uint, requirements map[string]interface{}) error
	GetCourseContentMilestones(ctx context.Context, q ContentMilestoneQuery) ([]model.CourseContentMilestone, error)
	RemoveCourseContentMilestone(ctx context.Context, courseKey, contentKey string, milestoneID uint) error
}

// Prerequisite 课程中的一个前置小节
type Prerequisite struct {
	MilestoneID      uint   `json:"milestoneId"`
	Namespace        string `json:"namespace"`
	Name             string `json:"name"`
	BlockUsageKey    string `json:"blockUsageKey"`
	BlockDisplayName string `json:"blockDisplayName"`
}

type GatingService struct {
	Store     MilestoneStore
	Fulfiller MilestoneFulfiller
	Content   *ContentService
	Flags     *FeatureFlags
	log       *zap.Logger
}

func NewGatingService(store MilestoneStore, fulfiller MilestoneFulfiller, content *ContentService, flags *FeatureFlags, log *zap.Logger) *GatingService {
	return &GatingService{
		Store:     store,
		Fulfiller: fulfiller,
		Content:   content,
		Flags:     flags,
		log:       logger.Named(log, "gating"),
	}
}

func gatingNamespace(prereqLocation string) string {
	return prereqLocation + util.GatingNamespaceQualifier
}

// AddPrerequisite marks prereqLocation as a gate: it gets a milestone that it fulfills.
func (s *GatingService) AddPrerequisite(ctx context.Context, courseKey, prereqLocation string) (*model.Milestone, error) {
	m, err := s.Store.AddMilestone(ctx, &model.Milestone{
		Name:        fmt.Sprintf("Gating milestone for %s", prereqLocation),
		Namespace:   gatingNamespace(prereqLocation),
		Description: "System defined milestone",
	})
	if err != nil {
		return nil, err
	}
	if err := s.Store.AddCourseContentMilestone(ctx, courseKey, prereqLocation, model.RelationshipFulfills, m.ID, nil); err != nil {
		return nil, err
	}
	s.log.Info("prerequisite added", zap.String("course", courseKey), zap.String("prereq", prereqLocation))
	return m, nil
}

// RemovePrerequisite 停用前置小节的里程碑以及所有依赖它的关联
func (s *GatingService) RemovePrerequisite(ctx context.Context, courseKey, prereqLocation string) error {
	milestones, err := s.Store.GetMilestones(ctx, gatingNamespace(prereqLocation))
	if err != nil {
		return err
	}
	if len(milestones) == 0 {
		return nil
	}
	for _, m := range milestones {
		if err := s.Store.RemoveMilestone(ctx, m.ID); err != nil {
			return err
		}
	}
	s.log.Info("prerequisite removed", zap.String("course", courseKey), zap.String("prereq", prereqLocation))
	return nil
}

// FindGatingMilestones returns content links whose milestone is a gating milestone.
func (s *GatingService) FindGatingMilestones(ctx context.Context, courseKey, contentKey, relationship string, userID *uint) ([]model.CourseContentMilestone, error) {
	return s.Store.GetCourseContentMilestones(ctx, ContentMilestoneQuery{
		CourseKey:       courseKey,
		ContentKey:      contentKey,
		Relationship:    relationship,
		NamespaceSuffix: util.GatingNamespaceQualifier,
		UserID:          userID,
	})
}

// GetGatingMilestone returns the first gating link for contentKey, or nil if there is none.
func (s *GatingService) GetGatingMilestone(ctx context.Context, courseKey, contentKey, relationship string) (*model.CourseContentMilestone, error) {
	links, err := s.FindGatingMilestones(ctx, courseKey, contentKey, relationship, nil)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, nil
	}
	return &links[0], nil
}

func (s *GatingService) IsPrerequisite(ctx context.Context, courseKey, location string) (bool, error) {
	link, err := s.GetGatingMilestone(ctx, courseKey, location, model.RelationshipFulfills)
	return link != nil, err
}

func (s *GatingService) GetPrerequisites(ctx context.Context, courseKey string) ([]Prerequisite, error) {
	links, err := s.FindGatingMilestones(ctx, courseKey, "", model.RelationshipFulfills, nil)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(links))
	if s.Content != nil && len(links) > 0 {
		keys := make([]string, 0, len(links))
		for _, l := range links {
			keys = append(keys, l.ContentKey)
		}
		blocks, err := s.Content.GetBlocks(ctx, keys)
		if err != nil {
			return nil, err
		}
		for _, b := range blocks {
			names[b.Location] = b.DisplayName
		}
	}

	out := make([]Prerequisite, 0, len(links))
	for _, l := range links {
		out = append(out, Prerequisite{
			MilestoneID:      l.MilestoneID,
			Namespace:        l.Milestone.Namespace,
			Name:             l.Milestone.Name,
			BlockUsageKey:    l.ContentKey,
			BlockDisplayName: names[l.ContentKey],
		})
	}
	return out, nil
}

// ValidateMinScore 最低分必须是 0-100 的百分比；nil 表示未设置
func ValidateMinScore(minScore *int) error {
	if minScore == nil {
		return nil
	}
	if *minScore < 0 || *minScore > 100 {
		return fmt.Errorf("%w: %d", util.ErrInvalidMinScore, *minScore)
	}
	return nil
}

// SetRequiredContent makes gatedLocation require prereqLocation with minScore percent.
// Links from gatedLocation to any other prerequisite are removed. An empty
// prereqLocation only clears. A nil minScore is stored as null.
func (s *GatingService) SetRequiredContent(ctx context.Context, courseKey, gatedLocation, prereqLocation string, minScore *int) error {
	links, err := s.FindGatingMilestones(ctx, courseKey, gatedLocation, model.RelationshipRequires, nil)
	if err != nil {
		return err
	}

	var milestoneID uint
	for _, l := range links {
		if prereqLocation == "" || l.Milestone.Namespace != gatingNamespace(prereqLocation) {
			if err := s.Store.RemoveCourseContentMilestone(ctx, courseKey, gatedLocation, l.MilestoneID); err != nil {
				return err
			}
			continue
		}
		milestoneID = l.MilestoneID
	}

	if prereqLocation == "" {
		return nil
	}
	if err := ValidateMinScore(minScore); err != nil {
		return err
	}

	if milestoneID == 0 {
		milestones, err := s.Store.GetMilestones(ctx, gatingNamespace(prereqLocation))
		if err != nil {
			return err
		}
		if len(milestones) == 0 {
			return fmt.Errorf("%w: %s", util.ErrNotPrerequisite, prereqLocation)
		}
		milestoneID = milestones[0].ID
	}

	var score interface{}
	if minScore != nil {
		score = *minScore
	}
	return s.Store.AddCourseContentMilestone(ctx, courseKey, gatedLocation, model.RelationshipRequires, milestoneID,
		map[string]interface{}{"min_score": score})
}

// GetRequiredContent returns the prerequisite gating gatedLocation and its minimum score.
// Both are zero values when gatedLocation is not gated.
func (s *GatingService) GetRequiredContent(ctx context.Context, courseKey, gatedLocation string) (string, *int, error) {
	link, err := s.GetGatingMilestone(ctx, courseKey, gatedLocation, model.RelationshipRequires)
	if err != nil || link == nil {
		return "", nil, err
	}
	prereq := strings.TrimSuffix(link.Milestone.Namespace, util.GatingNamespaceQualifier)
	var minScore *int
	if v, ok := parseMinScore(link.Requirements); ok {
		minScore = &v
	}
	return prereq, minScore, nil
}

// GetGatedContent 返回用户尚未解锁的小节位置；教职人员或未开启门控时为空
func (s *GatingService) GetGatedContent(ctx context.Context, course *model.Course, user *model.User) ([]string, error) {
	if course == nil || user == nil || user.IsStaff() || !course.EnableSubsectionGating || !s.Flags.GatingEnabled() {
		return []string{}, nil
	}
	userID := user.ID
	links, err := s.FindGatingMilestones(ctx, course.CourseKey, "", model.RelationshipRequires, &userID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.ContentKey)
	}
	return out, nil
}

// EvaluatePrerequisite grants or revokes the milestone fulfilled by the graded
// subsection, depending on whether the learner reached each gated content's threshold.
func (s *GatingService) EvaluatePrerequisite(ctx context.Context, course *model.Course, grade *model.SubsectionGrade, userID uint) error {
	if course == nil || grade == nil || !course.EnableSubsectionGating || !s.Flags.GatingEnabled() {
		monitoring.GatingEvaluations.WithLabelValues("disabled").Inc()
		return nil
	}

	ctx, span := tracing.Start(ctx, "gating.EvaluatePrerequisite")
	defer span.End()
	span.SetAttributes(
		attribute.String("course", course.CourseKey),
		attribute.String("subsection", grade.UsageKey),
	)

	prereq, err := s.GetGatingMilestone(ctx, course.CourseKey, grade.UsageKey, model.RelationshipFulfills)
	if err != nil {
		return err
	}
	if prereq == nil {
		monitoring.GatingEvaluations.WithLabelValues("not_prerequisite").Inc()
		return nil
	}

	gated, err := s.Store.GetCourseContentMilestones(ctx, ContentMilestoneQuery{
		CourseKey:    course.CourseKey,
		Relationship: model.RelationshipRequires,
		MilestoneID:  prereq.MilestoneID,
	})
	if err != nil {
		return err
	}
	if len(gated) == 0 {
		monitoring.GatingEvaluations.WithLabelValues("no_gated_content").Inc()
		return nil
	}

	percentage := grade.PercentAll()
	for _, link := range gated {
		minPercentage := s.minimumRequiredPercentage(link)
		if percentage >= float64(minPercentage) {
			err = s.Fulfiller.AddUserMilestone(ctx, userID, prereq.MilestoneID)
			monitoring.GatingEvaluations.WithLabelValues("fulfilled").Inc()
		} else {
			err = s.Fulfiller.RemoveUserMilestone(ctx, userID, prereq.MilestoneID)
			monitoring.GatingEvaluations.WithLabelValues("unfulfilled").Inc()
		}
		if err != nil {
			return err
		}
		s.log.Debug("prerequisite evaluated",
			zap.String("course", course.CourseKey),
			zap.String("prereq", grade.UsageKey),
			zap.String("gated", link.ContentKey),
			zap.Float64("percentage", percentage),
			zap.Int("minPercentage", minPercentage),
			zap.Uint("userId", userID))
	}
	return nil
}

// minimumRequiredPercentage reads requirements.min_score. An unset, null or
// unparsable value logs a warning and means 100.
func (s *GatingService) minimumRequiredPercentage(link model.CourseContentMilestone) int {
	var req map[string]interface{}
	if len(link.Requirements) > 0 {
		if err := json.Unmarshal(link.Requirements, &req); err != nil {
			s.warnMinScore(link, err)
			return util.DefaultMinScore
		}
	}
	v, ok := coerceMinScore(req["min_score"])
	if !ok {
		s.warnMinScore(link, nil)
		return util.DefaultMinScore
	}
	return v
}

func (s *GatingService) warnMinScore(link model.CourseContentMilestone, err error) {
	fields := []zap.Field{
		zap.Uint("milestoneId", link.MilestoneID),
		zap.String("content", link.ContentKey),
		zap.ByteString("requirements", link.Requirements),
		zap.Int("default", util.DefaultMinScore),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	s.log.Warn("Gating: failed to find minimum score for gating milestone, defaulting to 100", fields...)
}

func parseMinScore(raw []byte) (int, bool) {
	var req map[string]interface{}
	if err := json.Unmarshal(raw, &req); err != nil {
		return 0, false
	}
	v, ok := req["min_score"]
	if !ok {
		return 0, false
	}
	return coerceMinScore(v)
}

// coerceMinScore accepts JSON numbers (truncated) and numeric strings.
func coerceMinScore(v interface{}) (int, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
