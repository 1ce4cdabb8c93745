package controller

import (
	"course_gating_backend/internal/service"
	"course_gating_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type GradeController struct {
	GradeService   *service.GradeService
	ContentService *service.ContentService
}

func NewGradeController(gradeService *service.GradeService, contentService *service.ContentService) *GradeController {
	return &GradeController{
		GradeService:   gradeService,
		ContentService: contentService,
	}
}

// @Summary 提交题目得分
// @Description 记录得分并重新计算所在小节的成绩，可能解锁后续小节
// @Tags 评分
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param courseKey path string true "课程Key"
// @Param body body service.AnswerRequest true "得分"
// @Success 200 {object} util.Response{data=model.SubsectionGrade}
// @Router /api/courses/{courseKey}/problems/answer [post]
func (c *GradeController) AnswerProblem(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	var req service.AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	course, err := c.ContentService.GetCourse(ctx.Request.Context(), ctx.Param("courseKey"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	grade, err := c.GradeService.AnswerProblem(ctx.Request.Context(), course, user.UserID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	// 不属于任何小节的题目没有小节成绩
	if grade == nil {
		util.Success(ctx, nil)
		return
	}
	util.Success(ctx, grade)
}

// @Summary 查询小节成绩
// @Tags 评分
// @Produce json
// @Security BearerAuth
// @Param courseKey path string true "课程Key"
// @Param location query string true "小节位置"
// @Success 200 {object} util.Response{data=model.SubsectionGrade}
// @Router /api/courses/{courseKey}/subsections/grade [get]
func (c *GradeController) GetSubsectionGrade(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	location := ctx.Query("location")
	if location == "" {
		util.BadRequest(ctx, "location is required")
		return
	}
	grade, err := c.GradeService.GetSubsectionGrade(ctx.Request.Context(), user.UserID, location)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if grade == nil {
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, grade)
}

// @Summary 重新计算课程成绩
// @Description 重新汇总所有学生的小节成绩并重新评估门控
// @Tags 评分
// @Produce json
// @Security BearerAuth
// @Param courseKey path string true "课程Key"
// @Success 200 {object} util.Response
// @Router /api/teacher/courses/{courseKey}/recalculate [post]
func (c *GradeController) Recalculate(ctx *gin.Context) {
	count, err := c.GradeService.Recalculate(ctx.Request.Context(), ctx.Param("courseKey"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"grades": count})
}
