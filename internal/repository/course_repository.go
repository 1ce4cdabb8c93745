package repository

import (
	"context"
	"course_gating_backend/internal/model"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) Create(ctx context.Context, course *model.Course) error {
	return r.DB.WithContext(ctx).Create(course).Error
}

func (r *CourseRepository) Update(ctx context.Context, course *model.Course) error {
	return r.DB.WithContext(ctx).Save(course).Error
}

func (r *CourseRepository) FindByKey(ctx context.Context, courseKey string) (*model.Course, error) {
	var course model.Course
	err := r.DB.WithContext(ctx).Where("course_key = ?", courseKey).First(&course).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// ListGatingEnabled 返回开启了章节门控的课程
func (r *CourseRepository) ListGatingEnabled(ctx context.Context) ([]model.Course, error) {
	var courses []model.Course
	err := r.DB.WithContext(ctx).
		Where("enable_subsection_gating = ?", true).
		Order("id asc").
		Find(&courses).Error
	return courses, err
}
