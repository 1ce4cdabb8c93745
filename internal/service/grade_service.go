package service

import (
	"context"
	"course_gating_backend/internal/model"
	"course_gating_backend/internal/repository"
	"course_gating_backend/internal/signals"
	"course_gating_backend/internal/util"
	"course_gating_backend/pkg/logger"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type GradeService struct {
	GradeRepo *repository.GradeRepository
	Content   *ContentService
	Signals   *signals.Dispatcher
	log       *zap.Logger
}

func NewGradeService(gradeRepo *repository.GradeRepository, content *ContentService, dispatcher *signals.Dispatcher, log *zap.Logger) *GradeService {
	return &GradeService{
		GradeRepo: gradeRepo,
		Content:   content,
		Signals:   dispatcher,
		log:       logger.Named(log, "grades"),
	}
}

// AnswerRequest 学生提交的题目得分；题目设置了满分时 possible 可省略，且必须与满分一致
type AnswerRequest struct {
	Location string  `json:"location" binding:"required"`
	Earned   float64 `json:"earned"`
	Possible float64 `json:"possible"`
}

// AnswerProblem records a learner's score on a problem and regrades the enclosing
// subsection. For a problem outside any subsection it returns a nil grade and
// no subsection signal is sent.
func (s *GradeService) AnswerProblem(ctx context.Context, course *model.Course, userID uint, req AnswerRequest) (*model.SubsectionGrade, error) {
	block, err := s.Content.GetBlock(ctx, req.Location)
	if err != nil {
		return nil, err
	}
	if block.Category != model.CategoryProblem {
		return nil, fmt.Errorf("%w: %s", util.ErrNotProblem, req.Location)
	}
	if block.CourseKey != course.CourseKey {
		return nil, fmt.Errorf("%w: %s", util.ErrBlockNotFound, req.Location)
	}

	possible, err := scorePossible(block, req)
	if err != nil {
		return nil, err
	}
	req.Possible = possible

	score := &model.ProblemScore{
		UserID:    userID,
		UsageKey:  block.Location,
		CourseKey: course.CourseKey,
		Earned:    req.Earned,
		Possible:  req.Possible,
		Graded:    block.Graded,
	}
	if err := s.GradeRepo.UpsertProblemScore(ctx, score); err != nil {
		return nil, err
	}
	s.send(ctx, signals.ProblemScoreChanged, signals.ProblemScorePayload{
		CourseKey: course.CourseKey,
		UserID:    userID,
		Score:     score,
	})

	subsection, err := s.Content.EnclosingSubsection(ctx, block.Location)
	if errors.Is(err, util.ErrNoEnclosingSubsection) {
		s.log.Debug("problem has no subsection", zap.String("location", block.Location))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return s.updateSubsectionGrade(ctx, course, subsection, userID)
}

// scorePossible returns the denominator for an answer. A problem with a max score
// always grades out of it; only unscored problems take the submitted value.
func scorePossible(block *model.ContentBlock, req AnswerRequest) (float64, error) {
	possible := req.Possible
	if block.MaxScore > 0 {
		if possible != 0 && possible != block.MaxScore {
			return 0, fmt.Errorf("%w: possible %v does not match max score %v", util.ErrInvalidScore, possible, block.MaxScore)
		}
		possible = block.MaxScore
	}
	if possible <= 0 || req.Earned < 0 || req.Earned > possible {
		return 0, fmt.Errorf("%w: %v/%v", util.ErrInvalidScore, req.Earned, possible)
	}
	return possible, nil
}

// updateSubsectionGrade 重新汇总小节下所有题目的得分并发送 SubsectionScoreChanged
func (s *GradeService) updateSubsectionGrade(ctx context.Context, course *model.Course, subsection *model.ContentBlock, userID uint) (*model.SubsectionGrade, error) {
	problems, err := s.Content.SubsectionProblems(ctx, subsection)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(problems))
	for _, p := range problems {
		keys = append(keys, p.Location)
	}
	scores, err := s.GradeRepo.FindProblemScores(ctx, userID, keys)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]model.ProblemScore, len(scores))
	for _, sc := range scores {
		byKey[sc.UsageKey] = sc
	}

	now := time.Now()
	grade := &model.SubsectionGrade{
		UserID:           userID,
		UsageKey:         subsection.Location,
		CourseKey:        course.CourseKey,
		FirstAttemptedAt: &now,
	}
	for _, p := range problems {
		earned, possible := 0.0, p.MaxScore
		if sc, ok := byKey[p.Location]; ok {
			earned, possible = sc.Earned, sc.Possible
		}
		grade.EarnedAll += earned
		grade.PossibleAll += possible
		if subsection.Graded && p.Graded {
			grade.EarnedGraded += earned
			grade.PossibleGraded += possible
		}
	}

	if err := s.GradeRepo.UpsertSubsectionGrade(ctx, grade); err != nil {
		return nil, err
	}
	stored, err := s.GradeRepo.FindSubsectionGrade(ctx, userID, subsection.Location)
	if err != nil {
		return nil, err
	}

	s.send(ctx, signals.SubsectionScoreChanged, signals.SubsectionScorePayload{
		Course: course,
		Grade:  stored,
		UserID: userID,
	})
	return stored, nil
}

func (s *GradeService) GetSubsectionGrade(ctx context.Context, userID uint, location string) (*model.SubsectionGrade, error) {
	grade, err := s.GradeRepo.FindSubsectionGrade(ctx, userID, location)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return grade, err
}

// Recalculate regrades every persisted subsection grade in the course, sending
// SubsectionScoreChanged for each. It returns the number of grades written.
func (s *GradeService) Recalculate(ctx context.Context, courseKey string) (int, error) {
	course, err := s.Content.GetCourse(ctx, courseKey)
	if err != nil {
		return 0, err
	}
	grades, err := s.GradeRepo.ListSubsectionGrades(ctx, courseKey)
	if err != nil {
		return 0, err
	}

	keys := make([]string, 0, len(grades))
	for _, g := range grades {
		keys = append(keys, g.UsageKey)
	}
	blocks, err := s.Content.GetBlocks(ctx, keys)
	if err != nil {
		return 0, err
	}
	subsections := make(map[string]*model.ContentBlock, len(blocks))
	for i := range blocks {
		subsections[blocks[i].Location] = &blocks[i]
	}

	count := 0
	for _, g := range grades {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		subsection, ok := subsections[g.UsageKey]
		if !ok {
			s.log.Debug("grade for missing subsection skipped", zap.String("location", g.UsageKey), zap.Uint("userId", g.UserID))
			continue
		}
		if _, err := s.updateSubsectionGrade(ctx, course, subsection, g.UserID); err != nil {
			return count, err
		}
		count++
	}
	s.log.Info("grades recalculated", zap.String("course", courseKey), zap.Int("grades", count))
	return count, nil
}

// RemoveScores drops problem scores and subsection grades recorded against usageKeys.
func (s *GradeService) RemoveScores(ctx context.Context, usageKeys []string) error {
	return s.GradeRepo.DeleteByUsageKeys(ctx, usageKeys)
}

func (s *GradeService) send(ctx context.Context, sig signals.Signal, payload interface{}) {
	if s.Signals == nil {
		return
	}
	s.Signals.Send(ctx, sig, payload)
}
