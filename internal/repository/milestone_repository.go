package repository

import (
	"context"
	"course_gating_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type MilestoneRepository struct {
	DB *gorm.DB
}

func NewMilestoneRepository(db *gorm.DB) *MilestoneRepository {
	return &MilestoneRepository{DB: db}
}

// ContentMilestoneFilter 过滤课程内容与里程碑的关联，零值字段不参与过滤
type ContentMilestoneFilter struct {
	CourseKey         string
	ContentKey        string
	Relationship      string
	MilestoneID       uint
	NamespaceSuffix   string
	UnfulfilledByUser *uint
}

func (r *MilestoneRepository) CreateMilestone(ctx context.Context, m *model.Milestone) error {
	return r.DB.WithContext(ctx).Create(m).Error
}

func (r *MilestoneRepository) FindMilestoneByID(ctx context.Context, id uint) (*model.Milestone, error) {
	var m model.Milestone
	if err := r.DB.WithContext(ctx).Where("id = ? AND active = ?", id, true).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MilestoneRepository) FindActiveByNamespace(ctx context.Context, namespace string) ([]model.Milestone, error) {
	var ms []model.Milestone
	err := r.DB.WithContext(ctx).
		Where("namespace = ? AND active = ?", namespace, true).
		Order("id asc").
		Find(&ms).Error
	return ms, err
}

// DeactivateMilestone 停用里程碑及其全部内容关联
func (r *MilestoneRepository) DeactivateMilestone(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Milestone{}).Where("id = ?", id).Update("active", false).Error; err != nil {
			return err
		}
		return tx.Model(&model.CourseContentMilestone{}).
			Where("milestone_id = ?", id).
			Update("active", false).Error
	})
}

// UpsertContentLink creates the link or reactivates an existing one with new requirements.
func (r *MilestoneRepository) UpsertContentLink(ctx context.Context, link *model.CourseContentMilestone) error {
	var existing model.CourseContentMilestone
	err := r.DB.WithContext(ctx).
		Where("course_key = ? AND content_key = ? AND relationship = ? AND milestone_id = ?",
			link.CourseKey, link.ContentKey, link.Relationship, link.MilestoneID).
		First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		link.Active = true
		return r.DB.WithContext(ctx).Create(link).Error
	}
	if err != nil {
		return err
	}
	existing.Requirements = link.Requirements
	existing.Active = true
	if err := r.DB.WithContext(ctx).Save(&existing).Error; err != nil {
		return err
	}
	*link = existing
	return nil
}

func (r *MilestoneRepository) FindContentLinks(ctx context.Context, f ContentMilestoneFilter) ([]model.CourseContentMilestone, error) {
	q := r.DB.WithContext(ctx).
		Select("course_content_milestones.*").
		Joins("JOIN milestones ON milestones.id = course_content_milestones.milestone_id").
		Where("course_content_milestones.active = ? AND milestones.active = ?", true, true).
		Preload("Milestone")

	if f.CourseKey != "" {
		q = q.Where("course_content_milestones.course_key = ?", f.CourseKey)
	}
	if f.ContentKey != "" {
		q = q.Where("course_content_milestones.content_key = ?", f.ContentKey)
	}
	if f.Relationship != "" {
		q = q.Where("course_content_milestones.relationship = ?", f.Relationship)
	}
	if f.MilestoneID != 0 {
		q = q.Where("course_content_milestones.milestone_id = ?", f.MilestoneID)
	}
	if f.NamespaceSuffix != "" {
		q = q.Where("milestones.namespace LIKE ?", "%"+f.NamespaceSuffix)
	}
	if f.UnfulfilledByUser != nil {
		q = q.Where(`NOT EXISTS (SELECT 1 FROM user_milestones um
			WHERE um.milestone_id = course_content_milestones.milestone_id
			AND um.user_id = ? AND um.active = ? AND um.deleted_at IS NULL)`, *f.UnfulfilledByUser, true)
	}

	var links []model.CourseContentMilestone
	err := q.Order("course_content_milestones.id asc").Find(&links).Error
	return links, err
}

func (r *MilestoneRepository) DeactivateContentLinks(ctx context.Context, courseKey, contentKey string, milestoneID uint) error {
	q := r.DB.WithContext(ctx).Model(&model.CourseContentMilestone{}).Where("content_key = ?", contentKey)
	if courseKey != "" {
		q = q.Where("course_key = ?", courseKey)
	}
	if milestoneID != 0 {
		q = q.Where("milestone_id = ?", milestoneID)
	}
	return q.Update("active", false).Error
}

func (r *MilestoneRepository) FindUserMilestone(ctx context.Context, userID, milestoneID uint) (*model.UserMilestone, error) {
	var um model.UserMilestone
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND milestone_id = ?", userID, milestoneID).
		First(&um).Error
	if err != nil {
		return nil, err
	}
	return &um, nil
}

// SetUserMilestone 记录或撤销用户获得的里程碑，返回状态是否发生变化
func (r *MilestoneRepository) SetUserMilestone(ctx context.Context, userID, milestoneID uint, active bool, source string) (bool, error) {
	changed := false
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var um model.UserMilestone
		err := tx.Where("user_id = ? AND milestone_id = ?", userID, milestoneID).First(&um).Error
		if err == gorm.ErrRecordNotFound {
			if !active {
				return nil
			}
			now := time.Now()
			changed = true
			return tx.Create(&model.UserMilestone{
				UserID:      userID,
				MilestoneID: milestoneID,
				Source:      source,
				CollectedAt: &now,
				Active:      true,
			}).Error
		}
		if err != nil {
			return err
		}
		if um.Active == active {
			return nil
		}
		changed = true
		updates := map[string]interface{}{"active": active}
		if active {
			updates["collected_at"] = time.Now()
			updates["source"] = source
		}
		return tx.Model(&um).Updates(updates).Error
	})
	return changed, err
}

func (r *MilestoneRepository) UserHasMilestone(ctx context.Context, userID, milestoneID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.UserMilestone{}).
		Joins("JOIN milestones ON milestones.id = user_milestones.milestone_id").
		Where("user_milestones.user_id = ? AND user_milestones.milestone_id = ?", userID, milestoneID).
		Where("user_milestones.active = ? AND milestones.active = ?", true, true).
		Count(&count).Error
	return count > 0, err
}
