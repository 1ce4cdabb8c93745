package controller

import (
	"course_gating_backend/internal/model"
	"course_gating_backend/internal/service"
	"course_gating_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	ContentService *service.ContentService
}

func NewCourseController(contentService *service.ContentService) *CourseController {
	return &CourseController{ContentService: contentService}
}

// @Summary 创建课程
// @Tags 课程
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.CourseCreateRequest true "课程信息"
// @Success 201 {object} util.Response{data=model.Course}
// @Failure 409 {object} util.Response "课程已存在"
// @Router /api/teacher/courses [post]
func (c *CourseController) CreateCourse(ctx *gin.Context) {
	var req service.CourseCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	course, err := c.ContentService.CreateCourse(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, course)
}

// @Summary 课程大纲
// @Tags 课程
// @Produce json
// @Security BearerAuth
// @Param courseKey path string true "课程Key"
// @Success 200 {object} util.Response{data=[]model.ContentBlock}
// @Router /api/teacher/courses/{courseKey}/outline [get]
func (c *CourseController) GetOutline(ctx *gin.Context) {
	blocks, err := c.ContentService.CourseOutline(ctx.Request.Context(), ctx.Param("courseKey"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, blocks)
}

// @Summary 开启/关闭章节门控
// @Tags 课程
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param courseKey path string true "课程Key"
// @Param body body object true "{enabled: bool}"
// @Success 200 {object} util.Response{data=model.Course}
// @Router /api/teacher/courses/{courseKey}/gating [put]
func (c *CourseController) SetGating(ctx *gin.Context) {
	var body struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	course, err := c.ContentService.SetSubsectionGating(ctx.Request.Context(), ctx.Param("courseKey"), *body.Enabled)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// @Summary 创建内容块
// @Description 在父节点下创建章、小节、单元或题目
// @Tags 课程
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param courseKey path string true "课程Key"
// @Param body body service.BlockCreateRequest true "内容块信息"
// @Success 201 {object} util.Response{data=model.ContentBlock}
// @Router /api/teacher/courses/{courseKey}/blocks [post]
func (c *CourseController) CreateBlock(ctx *gin.Context) {
	var req service.BlockCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	parent, err := model.ParseUsageKey(req.ParentLocation)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if parent.Course.String() != ctx.Param("courseKey") {
		util.BadRequest(ctx, "parent belongs to another course")
		return
	}
	block, err := c.ContentService.CreateBlock(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, block)
}

// @Summary 删除内容块
// @Tags 课程
// @Produce json
// @Security BearerAuth
// @Param courseKey path string true "课程Key"
// @Param location query string true "内容块位置"
// @Success 200 {object} util.Response
// @Router /api/teacher/courses/{courseKey}/blocks [delete]
func (c *CourseController) DeleteBlock(ctx *gin.Context) {
	location := ctx.Query("location")
	if location == "" {
		util.BadRequest(ctx, "location is required")
		return
	}
	if err := c.ContentService.DeleteBlock(ctx.Request.Context(), location); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
