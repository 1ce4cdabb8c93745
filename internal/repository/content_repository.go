package repository

import (
	"context"
	"course_gating_backend/internal/model"

	"gorm.io/gorm"
)

type ContentRepository struct {
	DB *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{DB: db}
}

func (r *ContentRepository) Create(ctx context.Context, block *model.ContentBlock) error {
	return r.DB.WithContext(ctx).Create(block).Error
}

func (r *ContentRepository) FindByLocation(ctx context.Context, location string) (*model.ContentBlock, error) {
	var block model.ContentBlock
	err := r.DB.WithContext(ctx).Where("location = ?", location).First(&block).Error
	if err != nil {
		return nil, err
	}
	return &block, nil
}

func (r *ContentRepository) FindByLocations(ctx context.Context, locations []string) ([]model.ContentBlock, error) {
	var blocks []model.ContentBlock
	if len(locations) == 0 {
		return blocks, nil
	}
	err := r.DB.WithContext(ctx).Where("location IN ?", locations).Find(&blocks).Error
	return blocks, err
}

func (r *ContentRepository) Children(ctx context.Context, parentLocation string) ([]model.ContentBlock, error) {
	var blocks []model.ContentBlock
	err := r.DB.WithContext(ctx).
		Where("parent_location = ?", parentLocation).
		Order("position asc, id asc").
		Find(&blocks).Error
	return blocks, err
}

func (r *ContentRepository) CountChildren(ctx context.Context, parentLocation string) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.ContentBlock{}).
		Where("parent_location = ?", parentLocation).
		Count(&count).Error
	return count, err
}

func (r *ContentRepository) ListByCourse(ctx context.Context, courseKey string) ([]model.ContentBlock, error) {
	var blocks []model.ContentBlock
	err := r.DB.WithContext(ctx).
		Where("course_key = ?", courseKey).
		Order("position asc, id asc").
		Find(&blocks).Error
	return blocks, err
}

func (r *ContentRepository) DeleteByLocations(ctx context.Context, locations []string) error {
	if len(locations) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Where("location IN ?", locations).Delete(&model.ContentBlock{}).Error
}
