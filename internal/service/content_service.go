package service

import (
	"context"
	"course_gating_backend/internal/model"
	"course_gating_backend/internal/repository"
	"course_gating_backend/internal/util"
	"course_gating_backend/pkg/logger"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxTreeDepth bounds parent walks so a corrupted tree cannot loop forever.
const maxTreeDepth = 16

// allowedParents 每种 block 允许挂载的父节点类型；题目可直接挂在课程下（孤立题目）
var allowedParents = map[string][]string{
	model.CategoryChapter:    {model.CategoryCourse},
	model.CategorySequential: {model.CategoryChapter},
	model.CategoryVertical:   {model.CategorySequential},
	model.CategoryProblem:    {model.CategoryVertical, model.CategoryCourse},
}

// ContentReferenceRemover drops milestone links that point at deleted content.
type ContentReferenceRemover interface {
	RemoveContentReferences(ctx context.Context, contentKey string) error
}

// PrerequisiteRemover drops the gating milestone of a deleted subsection together
// with every requirement on it.
type PrerequisiteRemover interface {
	RemovePrerequisite(ctx context.Context, courseKey, prereqLocation string) error
}

// ScoreRemover drops learner scores and grades recorded against deleted content.
type ScoreRemover interface {
	RemoveScores(ctx context.Context, usageKeys []string) error
}

type ContentService struct {
	CourseRepo    *repository.CourseRepository
	ContentRepo   *repository.ContentRepository
	References    ContentReferenceRemover
	Prerequisites PrerequisiteRemover
	Scores        ScoreRemover
	log           *zap.Logger
}

func NewContentService(courseRepo *repository.CourseRepository, contentRepo *repository.ContentRepository, log *zap.Logger) *ContentService {
	return &ContentService{
		CourseRepo:  courseRepo,
		ContentRepo: contentRepo,
		log:         logger.Named(log, "content"),
	}
}

type CourseCreateRequest struct {
	Org                    string `json:"org" binding:"required"`
	Number                 string `json:"number" binding:"required"`
	Run                    string `json:"run" binding:"required"`
	DisplayName            string `json:"displayName"`
	EnableSubsectionGating bool   `json:"enableSubsectionGating"`
}

func (s *ContentService) CreateCourse(ctx context.Context, req CourseCreateRequest) (*model.Course, error) {
	key, err := model.NewCourseKey(req.Org, req.Number, req.Run)
	if err != nil {
		return nil, err
	}
	if _, err := s.CourseRepo.FindByKey(ctx, key.String()); err == nil {
		return nil, util.ErrCourseExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	course := &model.Course{
		CourseKey:              key.String(),
		Org:                    key.Org,
		Number:                 key.Number,
		Run:                    key.Run,
		DisplayName:            req.DisplayName,
		EnableSubsectionGating: req.EnableSubsectionGating,
	}
	if err := s.CourseRepo.Create(ctx, course); err != nil {
		return nil, err
	}
	s.log.Info("course created", zap.String("course", course.CourseKey))
	return course, nil
}

func (s *ContentService) GetCourse(ctx context.Context, courseKey string) (*model.Course, error) {
	course, err := s.CourseRepo.FindByKey(ctx, courseKey)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	return course, err
}

// SetSubsectionGating 开启或关闭课程的章节门控
func (s *ContentService) SetSubsectionGating(ctx context.Context, courseKey string, enabled bool) (*model.Course, error) {
	course, err := s.GetCourse(ctx, courseKey)
	if err != nil {
		return nil, err
	}
	course.EnableSubsectionGating = enabled
	if err := s.CourseRepo.Update(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

type BlockCreateRequest struct {
	ParentLocation string  `json:"parentLocation" binding:"required"`
	Category       string  `json:"category" binding:"required"`
	DisplayName    string  `json:"displayName"`
	Graded         bool    `json:"graded"`
	MaxScore       float64 `json:"maxScore"`
}

// CreateBlock adds a block under ParentLocation. The block name is generated, so two
// blocks with the same display name get distinct locations.
func (s *ContentService) CreateBlock(ctx context.Context, req BlockCreateRequest) (*model.ContentBlock, error) {
	parents, ok := allowedParents[req.Category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", util.ErrInvalidCategory, req.Category)
	}

	parentKey, err := model.ParseUsageKey(req.ParentLocation)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(parents, parentKey.Category) {
		return nil, fmt.Errorf("%w: %s under %s", util.ErrInvalidParent, req.Category, parentKey.Category)
	}

	courseKey := parentKey.Course.String()
	if parentKey.Category == model.CategoryCourse {
		if _, err := s.GetCourse(ctx, courseKey); err != nil {
			return nil, err
		}
	} else if _, err := s.GetBlock(ctx, req.ParentLocation); err != nil {
		return nil, err
	}

	siblings, err := s.ContentRepo.CountChildren(ctx, req.ParentLocation)
	if err != nil {
		return nil, err
	}

	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	block := &model.ContentBlock{
		CourseKey:      courseKey,
		Location:       parentKey.Course.MakeUsageKey(req.Category, name).String(),
		Category:       req.Category,
		ParentLocation: req.ParentLocation,
		DisplayName:    req.DisplayName,
		Position:       int(siblings),
		Graded:         req.Graded,
		MaxScore:       req.MaxScore,
	}
	if err := s.ContentRepo.Create(ctx, block); err != nil {
		return nil, err
	}
	return block, nil
}

func (s *ContentService) GetBlock(ctx context.Context, location string) (*model.ContentBlock, error) {
	block, err := s.ContentRepo.FindByLocation(ctx, location)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", util.ErrBlockNotFound, location)
	}
	return block, err
}

// Ancestors returns the parents of location, nearest first, excluding the course root.
func (s *ContentService) Ancestors(ctx context.Context, location string) ([]model.ContentBlock, error) {
	block, err := s.GetBlock(ctx, location)
	if err != nil {
		return nil, err
	}

	var out []model.ContentBlock
	parent := block.ParentLocation
	for depth := 0; depth < maxTreeDepth; depth++ {
		key, err := model.ParseUsageKey(parent)
		if err != nil || key.Category == model.CategoryCourse {
			return out, nil
		}
		p, err := s.GetBlock(ctx, parent)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
		parent = p.ParentLocation
	}
	return nil, fmt.Errorf("content tree deeper than %d at %s", maxTreeDepth, location)
}

// EnclosingSubsection 返回题目所在的小节（sequential）；孤立题目返回 ErrNoEnclosingSubsection
func (s *ContentService) EnclosingSubsection(ctx context.Context, location string) (*model.ContentBlock, error) {
	ancestors, err := s.Ancestors(ctx, location)
	if err != nil {
		return nil, err
	}
	for i := range ancestors {
		if ancestors[i].IsSubsection() {
			return &ancestors[i], nil
		}
	}
	return nil, util.ErrNoEnclosingSubsection
}

// Descendants walks the subtree below location breadth first.
func (s *ContentService) Descendants(ctx context.Context, location string) ([]model.ContentBlock, error) {
	var out []model.ContentBlock
	queue := []string{location}
	for depth := 0; len(queue) > 0; depth++ {
		if depth > maxTreeDepth {
			return nil, fmt.Errorf("content tree deeper than %d below %s", maxTreeDepth, location)
		}
		var next []string
		for _, loc := range queue {
			children, err := s.ContentRepo.Children(ctx, loc)
			if err != nil {
				return nil, err
			}
			for _, c := range children {
				out = append(out, c)
				next = append(next, c.Location)
			}
		}
		queue = next
	}
	return out, nil
}

func (s *ContentService) SubsectionProblems(ctx context.Context, subsection *model.ContentBlock) ([]model.ContentBlock, error) {
	blocks, err := s.Descendants(ctx, subsection.Location)
	if err != nil {
		return nil, err
	}
	problems := make([]model.ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.Category == model.CategoryProblem {
			problems = append(problems, b)
		}
	}
	return problems, nil
}

// DeleteBlock removes a block with its subtree. Milestone links, prerequisites
// defined on deleted subsections and learner scores go with it.
func (s *ContentService) DeleteBlock(ctx context.Context, location string) error {
	block, err := s.GetBlock(ctx, location)
	if err != nil {
		return err
	}
	descendants, err := s.Descendants(ctx, location)
	if err != nil {
		return err
	}
	blocks := append([]model.ContentBlock{*block}, descendants...)
	locations := make([]string, 0, len(blocks))
	for _, b := range blocks {
		locations = append(locations, b.Location)
	}

	for _, b := range blocks {
		if s.Prerequisites != nil && b.IsSubsection() {
			if err := s.Prerequisites.RemovePrerequisite(ctx, b.CourseKey, b.Location); err != nil {
				return err
			}
		}
		if s.References != nil {
			if err := s.References.RemoveContentReferences(ctx, b.Location); err != nil {
				return err
			}
		}
	}
	if s.Scores != nil {
		if err := s.Scores.RemoveScores(ctx, locations); err != nil {
			return err
		}
	}
	if err := s.ContentRepo.DeleteByLocations(ctx, locations); err != nil {
		return err
	}
	s.log.Info("content deleted", zap.String("location", location), zap.Int("blocks", len(locations)))
	return nil
}

// GetBlocks 批量查询内容块，不存在的位置直接忽略
func (s *ContentService) GetBlocks(ctx context.Context, locations []string) ([]model.ContentBlock, error) {
	return s.ContentRepo.FindByLocations(ctx, locations)
}

func (s *ContentService) CourseOutline(ctx context.Context, courseKey string) ([]model.ContentBlock, error) {
	if _, err := s.GetCourse(ctx, courseKey); err != nil {
		return nil, err
	}
	return s.ContentRepo.ListByCourse(ctx, courseKey)
}

// GatingEnabledCourses 返回开启了章节门控的课程
func (s *ContentService) GatingEnabledCourses(ctx context.Context) ([]model.Course, error) {
	return s.CourseRepo.ListGatingEnabled(ctx)
}
