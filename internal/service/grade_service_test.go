package service

import (
	"context"
	"course_gating_backend/internal/model"
	"course_gating_backend/internal/signals"
	"course_gating_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerProblemAggregatesSubsection(t *testing.T) {
	env := newGatingEnv(t)
	prob3 := env.block(t, env.vert1.Location, model.CategoryProblem, "untitled problem 3")

	env.setMaxScore(t, env.prob1, 2)

	// prob3 is unanswered and counts with its max score
	grade := env.answer(t, env.prob1, 1, 2)
	require.NotNil(t, grade)
	assert.Equal(t, env.seq1.Location, grade.UsageKey)
	assert.Equal(t, 1.0, grade.EarnedAll)
	assert.Equal(t, 3.0, grade.PossibleAll)
	require.NotNil(t, grade.FirstAttemptedAt)
	first := *grade.FirstAttemptedAt

	grade = env.answer(t, prob3, 1, 1)
	assert.Equal(t, 2.0, grade.EarnedAll)
	assert.Equal(t, 3.0, grade.PossibleAll)
	assert.WithinDuration(t, first, *grade.FirstAttemptedAt, 0)

	stored, err := env.grades.GetSubsectionGrade(env.ctx, env.user.ID, env.seq1.Location)
	require.NoError(t, err)
	assert.Equal(t, grade.ID, stored.ID)

	none, err := env.grades.GetSubsectionGrade(env.ctx, env.user.ID, env.seq2.Location)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestAnswerProblemGradedTotals(t *testing.T) {
	env := newGatingEnv(t)
	seq, err := env.content.CreateBlock(env.ctx, BlockCreateRequest{ParentLocation: env.chapter.Location, Category: model.CategorySequential, Graded: true})
	require.NoError(t, err)
	vert := env.block(t, seq.Location, model.CategoryVertical, "v")
	graded, err := env.content.CreateBlock(env.ctx, BlockCreateRequest{ParentLocation: vert.Location, Category: model.CategoryProblem, Graded: true, MaxScore: 2})
	require.NoError(t, err)
	practice := env.block(t, vert.Location, model.CategoryProblem, "practice")

	env.answer(t, practice, 1, 1)
	grade := env.answer(t, graded, 1, 2)
	assert.Equal(t, 2.0, grade.EarnedAll)
	assert.Equal(t, 3.0, grade.PossibleAll)
	assert.Equal(t, 1.0, grade.EarnedGraded)
	assert.Equal(t, 2.0, grade.PossibleGraded)
}

func TestAnswerProblemValidation(t *testing.T) {
	env := newGatingEnv(t)
	unscored, err := env.content.CreateBlock(env.ctx, BlockCreateRequest{ParentLocation: env.vert1.Location, Category: model.CategoryProblem})
	require.NoError(t, err)

	tests := []struct {
		name     string
		location string
		earned   float64
		possible float64
		wantErr  error
	}{
		{"negative earned", env.prob1.Location, -1, 1, util.ErrInvalidScore},
		{"earned above max score", env.prob1.Location, 2, 1, util.ErrInvalidScore},
		{"earned above omitted possible", env.prob1.Location, 2, 0, util.ErrInvalidScore},
		{"possible differs from max score", env.prob1.Location, 0.01, 0.01, util.ErrInvalidScore},
		{"zero possible on unscored problem", unscored.Location, 0, 0, util.ErrInvalidScore},
		{"not a problem", env.seq1.Location, 1, 1, util.ErrNotProblem},
		{"unknown block", env.course.Key().MakeUsageKey(model.CategoryProblem, "missing").String(), 1, 1, util.ErrBlockNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.grades.AnswerProblem(env.ctx, env.course, env.user.ID, AnswerRequest{
				Location: tt.location,
				Earned:   tt.earned,
				Possible: tt.possible,
			})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAnswerProblemUsesMaxScore(t *testing.T) {
	env := newGatingEnv(t)
	prereq := env.setupGatingMilestone(t, intPtr(100))

	_, err := env.grades.AnswerProblem(env.ctx, env.course, env.user.ID, AnswerRequest{Location: env.prob1.Location, Earned: 0.01, Possible: 0.01})
	require.ErrorIs(t, err, util.ErrInvalidScore)
	assert.False(t, env.hasMilestone(t, prereq.MilestoneID))

	// an omitted possible grades out of the max score
	grade := env.answer(t, env.prob1, 0.5, 0)
	assert.Equal(t, 1.0, grade.PossibleAll)
	assert.Equal(t, 50.0, grade.PercentAll())
	assert.False(t, env.hasMilestone(t, prereq.MilestoneID))

	// unscored problems keep the submitted denominator
	unscored, err := env.content.CreateBlock(env.ctx, BlockCreateRequest{ParentLocation: env.vert1.Location, Category: model.CategoryProblem})
	require.NoError(t, err)
	grade = env.answer(t, unscored, 2, 4)
	assert.Equal(t, 2.5, grade.EarnedAll)
	assert.Equal(t, 5.0, grade.PossibleAll)
}

func TestAnswerProblemSignals(t *testing.T) {
	env := newGatingEnv(t)
	var got []signals.Signal
	record := func(ctx context.Context, evt signals.Event) error {
		got = append(got, evt.Signal)
		return nil
	}
	env.signals.Connect(signals.ProblemScoreChanged, "test", record)
	env.signals.Connect(signals.SubsectionScoreChanged, "test", record)

	env.answer(t, env.orphan, 1, 1)
	assert.Equal(t, []signals.Signal{signals.ProblemScoreChanged}, got)

	got = nil
	env.answer(t, env.prob1, 1, 1)
	assert.Equal(t, []signals.Signal{signals.ProblemScoreChanged, signals.SubsectionScoreChanged}, got)
}

func TestRecalculateReevaluatesGating(t *testing.T) {
	env := newGatingEnv(t)
	prereq := env.setupGatingMilestone(t, intPtr(100))
	env.setMaxScore(t, env.prob1, 2)

	env.answer(t, env.prob1, 1, 2)
	require.False(t, env.hasMilestone(t, prereq.MilestoneID))

	// lowering the threshold only takes effect on the next evaluation
	require.NoError(t, env.gating.SetRequiredContent(env.ctx, env.course.CourseKey, env.seq2.Location, env.seq1.Location, intPtr(50)))
	require.False(t, env.hasMilestone(t, prereq.MilestoneID))

	n, err := env.grades.Recalculate(env.ctx, env.course.CourseKey)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, env.hasMilestone(t, prereq.MilestoneID))

	// only subsections the learner attempted are regraded
	none, err := env.grades.GetSubsectionGrade(env.ctx, env.user.ID, env.seq2.Location)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = env.grades.Recalculate(env.ctx, "course-v1:edX+NOPE+R")
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}
