package service

import (
	"course_gating_backend/internal/model"
	"course_gating_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCourseDuplicate(t *testing.T) {
	env := newGatingEnv(t)

	_, err := env.content.CreateCourse(env.ctx, CourseCreateRequest{Org: "edX", Number: "EDX101", Run: "EDX101_RUN1"})
	assert.ErrorIs(t, err, util.ErrCourseExists)

	_, err = env.content.CreateCourse(env.ctx, CourseCreateRequest{Org: "edX", Number: "bad number", Run: "R"})
	assert.ErrorIs(t, err, model.ErrInvalidKey)
}

func TestCreateBlockValidatesParent(t *testing.T) {
	env := newGatingEnv(t)

	tests := []struct {
		name     string
		parent   string
		category string
		wantErr  error
	}{
		{"sequential under course", env.course.Location(), model.CategorySequential, util.ErrInvalidParent},
		{"vertical under chapter", env.chapter.Location, model.CategoryVertical, util.ErrInvalidParent},
		{"unknown category", env.seq1.Location, "video", util.ErrInvalidCategory},
		{"missing parent", env.course.Key().MakeUsageKey(model.CategoryChapter, "nope").String(), model.CategorySequential, util.ErrBlockNotFound},
		{"malformed parent", "not-a-key", model.CategoryChapter, model.ErrInvalidKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.content.CreateBlock(env.ctx, BlockCreateRequest{ParentLocation: tt.parent, Category: tt.category})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateBlockPositions(t *testing.T) {
	env := newGatingEnv(t)
	assert.Equal(t, 0, env.seq1.Position)
	assert.Equal(t, 1, env.seq2.Position)
	assert.NotEqual(t, env.seq1.Location, env.seq2.Location)
	assert.Equal(t, env.course.CourseKey, env.seq1.CourseKey)
}

func TestEnclosingSubsection(t *testing.T) {
	env := newGatingEnv(t)

	seq, err := env.content.EnclosingSubsection(env.ctx, env.prob1.Location)
	require.NoError(t, err)
	assert.Equal(t, env.seq1.Location, seq.Location)

	_, err = env.content.EnclosingSubsection(env.ctx, env.orphan.Location)
	assert.ErrorIs(t, err, util.ErrNoEnclosingSubsection)

	ancestors, err := env.content.Ancestors(env.ctx, env.prob1.Location)
	require.NoError(t, err)
	require.Len(t, ancestors, 3)
	assert.Equal(t, env.vert1.Location, ancestors[0].Location)
	assert.Equal(t, env.chapter.Location, ancestors[2].Location)
}

func TestSubsectionProblems(t *testing.T) {
	env := newGatingEnv(t)
	vert2 := env.block(t, env.seq1.Location, model.CategoryVertical, "untitled vertical 2")
	prob3 := env.block(t, vert2.Location, model.CategoryProblem, "untitled problem 3")

	problems, err := env.content.SubsectionProblems(env.ctx, env.seq1)
	require.NoError(t, err)
	var locations []string
	for _, p := range problems {
		locations = append(locations, p.Location)
	}
	assert.ElementsMatch(t, []string{env.prob1.Location, prob3.Location}, locations)

	problems, err = env.content.SubsectionProblems(env.ctx, env.seq2)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestDeleteBlockRemovesMilestoneLinks(t *testing.T) {
	env := newGatingEnv(t)
	env.setupGatingMilestone(t, intPtr(50))

	require.NoError(t, env.content.DeleteBlock(env.ctx, env.seq2.Location))

	_, err := env.content.GetBlock(env.ctx, env.seq2.Location)
	assert.ErrorIs(t, err, util.ErrBlockNotFound)
	prereq, _, err := env.gating.GetRequiredContent(env.ctx, env.course.CourseKey, env.seq2.Location)
	require.NoError(t, err)
	assert.Empty(t, prereq)

	// deleting the prerequisite subtree also removes its problems
	require.NoError(t, env.content.DeleteBlock(env.ctx, env.seq1.Location))
	_, err = env.content.GetBlock(env.ctx, env.prob1.Location)
	assert.ErrorIs(t, err, util.ErrBlockNotFound)
	ok, err := env.gating.IsPrerequisite(env.ctx, env.course.CourseKey, env.seq1.Location)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeletePrerequisiteUnlocksGatedContent(t *testing.T) {
	env := newGatingEnv(t)
	env.setupGatingMilestone(t, intPtr(50))
	env.answer(t, env.prob1, 0, 1)

	gated, err := env.gating.GetGatedContent(env.ctx, env.course, env.user)
	require.NoError(t, err)
	require.Equal(t, []string{env.seq2.Location}, gated)

	require.NoError(t, env.content.DeleteBlock(env.ctx, env.seq1.Location))

	gated, err = env.gating.GetGatedContent(env.ctx, env.course, env.user)
	require.NoError(t, err)
	assert.Empty(t, gated)
	prereq, _, err := env.gating.GetRequiredContent(env.ctx, env.course.CourseKey, env.seq2.Location)
	require.NoError(t, err)
	assert.Empty(t, prereq)
	prereqs, err := env.gating.GetPrerequisites(env.ctx, env.course.CourseKey)
	require.NoError(t, err)
	assert.Empty(t, prereqs)

	// scores and grades are removed, including soft-deleted rows
	grade, err := env.grades.GetSubsectionGrade(env.ctx, env.user.ID, env.seq1.Location)
	require.NoError(t, err)
	assert.Nil(t, grade)
	var scores int64
	require.NoError(t, env.db.Unscoped().Model(&model.ProblemScore{}).
		Where("usage_key = ?", env.prob1.Location).Count(&scores).Error)
	assert.Zero(t, scores)
}

func TestGatingEnabledCourses(t *testing.T) {
	env := newGatingEnv(t)
	_, err := env.content.CreateCourse(env.ctx, CourseCreateRequest{Org: "edX", Number: "EDX102", Run: "R1"})
	require.NoError(t, err)

	courses, err := env.content.GatingEnabledCourses(env.ctx)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, env.course.CourseKey, courses[0].CourseKey)
}
