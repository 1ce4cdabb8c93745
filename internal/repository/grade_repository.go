package repository

import (
	"context"
	"course_gating_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GradeRepository struct {
	DB *gorm.DB
}

func NewGradeRepository(db *gorm.DB) *GradeRepository {
	return &GradeRepository{DB: db}
}

// UpsertProblemScore 以 (user_id, usage_key) 为唯一键覆盖最新得分
func (r *GradeRepository) UpsertProblemScore(ctx context.Context, score *model.ProblemScore) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "usage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"earned", "possible", "graded", "updated_at"}),
	}).Create(score).Error
}

func (r *GradeRepository) FindProblemScores(ctx context.Context, userID uint, usageKeys []string) ([]model.ProblemScore, error) {
	var scores []model.ProblemScore
	if len(usageKeys) == 0 {
		return scores, nil
	}
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND usage_key IN ?", userID, usageKeys).
		Find(&scores).Error
	return scores, err
}

func (r *GradeRepository) UpsertSubsectionGrade(ctx context.Context, grade *model.SubsectionGrade) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "usage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"earned_all", "possible_all", "earned_graded", "possible_graded", "updated_at",
		}),
	}).Create(grade).Error
}

func (r *GradeRepository) FindSubsectionGrade(ctx context.Context, userID uint, usageKey string) (*model.SubsectionGrade, error) {
	var grade model.SubsectionGrade
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND usage_key = ?", userID, usageKey).
		First(&grade).Error
	if err != nil {
		return nil, err
	}
	return &grade, nil
}

func (r *GradeRepository) ListSubsectionGrades(ctx context.Context, courseKey string) ([]model.SubsectionGrade, error) {
	var grades []model.SubsectionGrade
	err := r.DB.WithContext(ctx).
		Where("course_key = ?", courseKey).
		Order("id asc").
		Find(&grades).Error
	return grades, err
}

// DeleteByUsageKeys 物理删除得分与成绩：(user_id, usage_key) 唯一索引包含软删除行
func (r *GradeRepository) DeleteByUsageKeys(ctx context.Context, usageKeys []string) error {
	if len(usageKeys) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("usage_key IN ?", usageKeys).Delete(&model.ProblemScore{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Where("usage_key IN ?", usageKeys).Delete(&model.SubsectionGrade{}).Error
	})
}
