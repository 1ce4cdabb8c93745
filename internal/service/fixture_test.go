package service

import (
	"context"
	"course_gating_backend/internal/model"
	"course_gating_backend/internal/repository"
	"course_gating_backend/internal/signals"
	"course_gating_backend/internal/testutil"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

// gatingEnv is a course with one chapter holding seq1 (one problem) and seq2,
// plus a problem attached directly to the course.
type gatingEnv struct {
	ctx        context.Context
	db         *gorm.DB
	log        *zap.Logger
	logs       *observer.ObservedLogs
	signals    *signals.Dispatcher
	content    *ContentService
	milestones *MilestoneService
	gating     *GatingService
	grades     *GradeService
	fulfiller  *countingFulfiller

	course  *model.Course
	user    *model.User
	chapter *model.ContentBlock
	seq1    *model.ContentBlock
	seq2    *model.ContentBlock
	vert1   *model.ContentBlock
	prob1   *model.ContentBlock
	orphan  *model.ContentBlock
}

// countingFulfiller records calls and forwards them to the real milestone service.
type countingFulfiller struct {
	mu      sync.Mutex
	next    MilestoneFulfiller
	added   int
	removed int
}

func (f *countingFulfiller) AddUserMilestone(ctx context.Context, userID, milestoneID uint) error {
	f.mu.Lock()
	f.added++
	f.mu.Unlock()
	return f.next.AddUserMilestone(ctx, userID, milestoneID)
}

func (f *countingFulfiller) RemoveUserMilestone(ctx context.Context, userID, milestoneID uint) error {
	f.mu.Lock()
	f.removed++
	f.mu.Unlock()
	return f.next.RemoveUserMilestone(ctx, userID, milestoneID)
}

func (f *countingFulfiller) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.added + f.removed
}

func newGatingEnv(t *testing.T) *gatingEnv {
	t.Helper()
	db := testutil.DB(t)
	log, logs := testutil.ObservedLogger()
	ctx := testutil.Ctx(t)

	dispatcher := signals.NewDispatcher(log)
	content := NewContentService(repository.NewCourseRepository(db), repository.NewContentRepository(db), log)
	milestones := NewMilestoneService(repository.NewMilestoneRepository(db), nil, dispatcher, log)
	content.References = milestones
	fulfiller := &countingFulfiller{next: milestones}
	gating := NewGatingService(milestones, fulfiller, content, nil, log)
	grades := NewGradeService(repository.NewGradeRepository(db), content, dispatcher, log)
	content.Prerequisites = gating
	content.Scores = grades
	ConnectGatingHandlers(dispatcher, gating)

	env := &gatingEnv{
		ctx:        ctx,
		db:         db,
		log:        log,
		logs:       logs,
		signals:    dispatcher,
		content:    content,
		milestones: milestones,
		gating:     gating,
		grades:     grades,
		fulfiller:  fulfiller,
	}

	course, err := content.CreateCourse(ctx, CourseCreateRequest{
		Org:                    "edX",
		Number:                 "EDX101",
		Run:                    "EDX101_RUN1",
		DisplayName:            "edX 101",
		EnableSubsectionGating: true,
	})
	require.NoError(t, err)
	env.course = course

	env.chapter = env.block(t, course.Location(), model.CategoryChapter, "untitled chapter 1")
	env.seq1 = env.block(t, env.chapter.Location, model.CategorySequential, "untitled sequential 1")
	env.seq2 = env.block(t, env.chapter.Location, model.CategorySequential, "untitled sequential 2")
	env.vert1 = env.block(t, env.seq1.Location, model.CategoryVertical, "untitled vertical 1")
	env.prob1 = env.block(t, env.vert1.Location, model.CategoryProblem, "untitled problem 1")
	env.orphan = env.block(t, course.Location(), model.CategoryProblem, "untitled problem 2")

	env.user = testutil.SeedUser(t, db, "learner@example.com", model.Student)
	return env
}

func (e *gatingEnv) block(t *testing.T, parent, category, name string) *model.ContentBlock {
	t.Helper()
	b, err := e.content.CreateBlock(e.ctx, BlockCreateRequest{
		ParentLocation: parent,
		Category:       category,
		DisplayName:    name,
		MaxScore:       1,
	})
	require.NoError(t, err)
	return b
}

// setMaxScore changes a problem's max score in place.
func (e *gatingEnv) setMaxScore(t *testing.T, problem *model.ContentBlock, maxScore float64) {
	t.Helper()
	require.NoError(t, e.db.Model(&model.ContentBlock{}).
		Where("location = ?", problem.Location).
		Update("max_score", maxScore).Error)
	problem.MaxScore = maxScore
}

func (e *gatingEnv) answer(t *testing.T, problem *model.ContentBlock, earned, possible float64) *model.SubsectionGrade {
	t.Helper()
	grade, err := e.grades.AnswerProblem(e.ctx, e.course, e.user.ID, AnswerRequest{
		Location: problem.Location,
		Earned:   earned,
		Possible: possible,
	})
	require.NoError(t, err)
	return grade
}

// setupGatingMilestone makes seq1 a prerequisite of seq2 and returns seq1's milestone link.
func (e *gatingEnv) setupGatingMilestone(t *testing.T, minScore *int) *model.CourseContentMilestone {
	t.Helper()
	_, err := e.gating.AddPrerequisite(e.ctx, e.course.CourseKey, e.seq1.Location)
	require.NoError(t, err)
	require.NoError(t, e.gating.SetRequiredContent(e.ctx, e.course.CourseKey, e.seq2.Location, e.seq1.Location, minScore))
	link, err := e.gating.GetGatingMilestone(e.ctx, e.course.CourseKey, e.seq1.Location, model.RelationshipFulfills)
	require.NoError(t, err)
	require.NotNil(t, link)
	return link
}

func (e *gatingEnv) hasMilestone(t *testing.T, milestoneID uint) bool {
	t.Helper()
	ok, err := e.milestones.UserHasMilestone(e.ctx, e.user.ID, milestoneID)
	require.NoError(t, err)
	return ok
}

// spyEvaluator counts evaluations instead of running them.
type spyEvaluator struct {
	mu    sync.Mutex
	calls []string
}

func (s *spyEvaluator) EvaluatePrerequisite(_ context.Context, _ *model.Course, grade *model.SubsectionGrade, _ uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, grade.UsageKey)
	return nil
}

func (s *spyEvaluator) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func intPtr(v int) *int { return &v }
