package service

import (
	"context"
	"course_gating_backend/internal/model"
	"course_gating_backend/internal/repository"
	"course_gating_backend/internal/signals"
	"course_gating_backend/internal/util"
	"course_gating_backend/pkg/logger"
	"course_gating_backend/pkg/monitoring"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MilestoneFulfiller grants and revokes milestones for a user.
type MilestoneFulfiller interface {
	AddUserMilestone(ctx context.Context, userID, milestoneID uint) error
	RemoveUserMilestone(ctx context.Context, userID, milestoneID uint) error
}

// ContentMilestoneQuery 查询课程内容关联的里程碑，空字段表示不限
type ContentMilestoneQuery struct {
	CourseKey    string
	ContentKey   string
	Relationship string
	MilestoneID  uint
	// Namespace 后缀过滤，门控里程碑使用 ".gating"
	NamespaceSuffix string
	// UserID 非空时只返回该用户尚未获得的里程碑
	UserID *uint
}

type MilestoneService struct {
	MilestoneRepo *repository.MilestoneRepository
	Flags         *FeatureFlags
	Signals       *signals.Dispatcher
	log           *zap.Logger
}

func NewMilestoneService(repo *repository.MilestoneRepository, flags *FeatureFlags, dispatcher *signals.Dispatcher, log *zap.Logger) *MilestoneService {
	return &MilestoneService{
		MilestoneRepo: repo,
		Flags:         flags,
		Signals:       dispatcher,
		log:           logger.Named(log, "milestones"),
	}
}

// AddMilestone creates a milestone, or returns the active one already using its namespace.
func (s *MilestoneService) AddMilestone(ctx context.Context, m *model.Milestone) (*model.Milestone, error) {
	existing, err := s.MilestoneRepo.FindActiveByNamespace(ctx, m.Namespace)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return &existing[0], nil
	}
	m.Active = true
	if err := s.MilestoneRepo.CreateMilestone(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MilestoneService) GetMilestone(ctx context.Context, id uint) (*model.Milestone, error) {
	m, err := s.MilestoneRepo.FindMilestoneByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrMilestoneNotFound
	}
	return m, err
}

func (s *MilestoneService) GetMilestones(ctx context.Context, namespace string) ([]model.Milestone, error) {
	return s.MilestoneRepo.FindActiveByNamespace(ctx, namespace)
}

func (s *MilestoneService) RemoveMilestone(ctx context.Context, id uint) error {
	return s.MilestoneRepo.DeactivateMilestone(ctx, id)
}

func (s *MilestoneService) AddCourseContentMilestone(ctx context.Context, courseKey, contentKey, relationship string, milestoneID uint, requirements map[string]interface{}) error {
	if relationship != model.RelationshipRequires && relationship != model.RelationshipFulfills {
		return fmt.Errorf("%w: %q", util.ErrInvalidRelationship, relationship)
	}
	if requirements == nil {
		requirements = map[string]interface{}{}
	}
	raw, err := json.Marshal(requirements)
	if err != nil {
		return fmt.Errorf("encode requirements: %w", err)
	}
	return s.MilestoneRepo.UpsertContentLink(ctx, &model.CourseContentMilestone{
		CourseKey:    courseKey,
		ContentKey:   contentKey,
		MilestoneID:  milestoneID,
		Relationship: relationship,
		Requirements: datatypes.JSON(raw),
	})
}

func (s *MilestoneService) GetCourseContentMilestones(ctx context.Context, q ContentMilestoneQuery) ([]model.CourseContentMilestone, error) {
	return s.MilestoneRepo.FindContentLinks(ctx, repository.ContentMilestoneFilter{
		CourseKey:         q.CourseKey,
		ContentKey:        q.ContentKey,
		Relationship:      q.Relationship,
		MilestoneID:       q.MilestoneID,
		NamespaceSuffix:   q.NamespaceSuffix,
		UnfulfilledByUser: q.UserID,
	})
}

func (s *MilestoneService) RemoveCourseContentMilestone(ctx context.Context, courseKey, contentKey string, milestoneID uint) error {
	return s.MilestoneRepo.DeactivateContentLinks(ctx, courseKey, contentKey, milestoneID)
}

// RemoveContentReferences 内容被删除时停用所有指向它的关联
func (s *MilestoneService) RemoveContentReferences(ctx context.Context, contentKey string) error {
	return s.MilestoneRepo.DeactivateContentLinks(ctx, "", contentKey, 0)
}

func (s *MilestoneService) AddUserMilestone(ctx context.Context, userID, milestoneID uint) error {
	return s.setUserMilestone(ctx, userID, milestoneID, true)
}

func (s *MilestoneService) RemoveUserMilestone(ctx context.Context, userID, milestoneID uint) error {
	return s.setUserMilestone(ctx, userID, milestoneID, false)
}

func (s *MilestoneService) setUserMilestone(ctx context.Context, userID, milestoneID uint, collected bool) error {
	if !s.Flags.MilestonesEnabled() {
		return nil
	}
	changed, err := s.MilestoneRepo.SetUserMilestone(ctx, userID, milestoneID, collected, "gating")
	if err != nil {
		return fmt.Errorf("set user milestone %d for user %d: %w", milestoneID, userID, err)
	}
	if !changed {
		return nil
	}

	action := "revoked"
	if collected {
		action = "granted"
	}
	monitoring.MilestoneChanges.WithLabelValues(action).Inc()
	s.log.Info("user milestone "+action, zap.Uint("userId", userID), zap.Uint("milestoneId", milestoneID))

	if s.Signals != nil {
		s.Signals.Send(ctx, signals.MilestoneChanged, signals.MilestonePayload{
			UserID:      userID,
			MilestoneID: milestoneID,
			Collected:   collected,
		})
	}
	return nil
}

func (s *MilestoneService) UserHasMilestone(ctx context.Context, userID, milestoneID uint) (bool, error) {
	return s.MilestoneRepo.UserHasMilestone(ctx, userID, milestoneID)
}

// UserMilestoneStatus 返回用户在某个里程碑上的记录，未获得过时为 nil
func (s *MilestoneService) UserMilestoneStatus(ctx context.Context, userID, milestoneID uint) (*model.UserMilestone, error) {
	um, err := s.MilestoneRepo.FindUserMilestone(ctx, userID, milestoneID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return um, err
}
