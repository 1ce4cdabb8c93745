package controller

import (
	"course_gating_backend/internal/model"
	"course_gating_backend/internal/service"
	"course_gating_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type GatingController struct {
	GatingService  *service.GatingService
	ContentService *service.ContentService
	AuthService    *service.AuthService
}

func NewGatingController(gatingService *service.GatingService, contentService *service.ContentService, authService *service.AuthService) *GatingController {
	return &GatingController{
		GatingService:  gatingService,
		ContentService: contentService,
		AuthService:    authService,
	}
}

// PrerequisiteRequest swagger:model PrerequisiteRequest
type PrerequisiteRequest struct {
	Location string `json:"location" binding:"required"`
}

// RequiredContentRequest 设置小节的前置条件；prereqLocation 为空表示清除
// swagger:model RequiredContentRequest
type RequiredContentRequest struct {
	GatedLocation  string `json:"gatedLocation" binding:"required"`
	PrereqLocation string `json:"prereqLocation"`
	MinScore       *int   `json:"minScore"`
}

// @Summary 添加前置小节
// @Tags 门控
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param courseKey path string true "课程Key"
// @Param body body PrerequisiteRequest true "前置小节位置"
// @Success 201 {object} util.Response{data=model.Milestone}
// @Router /api/teacher/courses/{courseKey}/prerequisites [post]
func (c *GatingController) AddPrerequisite(ctx *gin.Context) {
	var req PrerequisiteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	courseKey := ctx.Param("courseKey")
	if !c.checkSubsection(ctx, courseKey, req.Location) {
		return
	}
	m, err := c.GatingService.AddPrerequisite(ctx.Request.Context(), courseKey, req.Location)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, m)
}

// @Summary 移除前置小节
// @Tags 门控
// @Produce json
// @Security BearerAuth
// @Param courseKey path string true "课程Key"
// @Param location query string true "前置小节位置"
// @Success 200 {object} util.Response
// @Router /api/teacher/courses/{courseKey}/prerequisites [delete]
func (c *GatingController) RemovePrerequisite(ctx *gin.Context) {
	location := ctx.Query("location")
	if location == "" {
		util.BadRequest(ctx, "location is required")
		return
	}
	if err := c.GatingService.RemovePrerequisite(ctx.Request.Context(), ctx.Param("courseKey"), location); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 前置小节列表
// @Tags 门控
// @Produce json
// @Security BearerAuth
// @Param courseKey path string true "课程Key"
// @Success 200 {object} util.Response{data=[]service.Prerequisite}
// @Router /api/teacher/courses/{courseKey}/prerequisites [get]
func (c *GatingController) ListPrerequisites(ctx *gin.Context) {
	prereqs, err := c.GatingService.GetPrerequisites(ctx.Request.Context(), ctx.Param("courseKey"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, prereqs)
}

// @Summary 设置小节的前置条件和最低分
// @Tags 门控
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param courseKey path string true "课程Key"
// @Param body body RequiredContentRequest true "前置条件"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response "最低分不合法或不是前置小节"
// @Router /api/teacher/courses/{courseKey}/required-content [put]
func (c *GatingController) SetRequiredContent(ctx *gin.Context) {
	var req RequiredContentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	courseKey := ctx.Param("courseKey")
	if !c.checkSubsection(ctx, courseKey, req.GatedLocation) {
		return
	}
	err := c.GatingService.SetRequiredContent(ctx.Request.Context(), courseKey, req.GatedLocation, req.PrereqLocation, req.MinScore)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"gatedLocation":  req.GatedLocation,
		"prereqLocation": req.PrereqLocation,
		"minScore":       req.MinScore,
	})
}

// @Summary 查询小节的前置条件
// @Tags 门控
// @Produce json
// @Security BearerAuth
// @Param courseKey path string true "课程Key"
// @Param gated query string true "被门控小节位置"
// @Success 200 {object} util.Response
// @Router /api/teacher/courses/{courseKey}/required-content [get]
func (c *GatingController) GetRequiredContent(ctx *gin.Context) {
	gated := ctx.Query("gated")
	if gated == "" {
		util.BadRequest(ctx, "gated is required")
		return
	}
	prereq, minScore, err := c.GatingService.GetRequiredContent(ctx.Request.Context(), ctx.Param("courseKey"), gated)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"gatedLocation":  gated,
		"prereqLocation": prereq,
		"minScore":       minScore,
	})
}

// @Summary 当前用户被锁定的小节
// @Tags 门控
// @Produce json
// @Security BearerAuth
// @Param courseKey path string true "课程Key"
// @Success 200 {object} util.Response{data=[]string}
// @Router /api/courses/{courseKey}/gated-content [get]
func (c *GatingController) GatedContent(ctx *gin.Context) {
	user := c.AuthService.GetCurrentUser(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	course, err := c.ContentService.GetCourse(ctx.Request.Context(), ctx.Param("courseKey"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	gated, err := c.GatingService.GetGatedContent(ctx.Request.Context(), course, user)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gated)
}

// checkSubsection 只有课程内的小节可以参与门控
func (c *GatingController) checkSubsection(ctx *gin.Context, courseKey, location string) bool {
	block, err := c.ContentService.GetBlock(ctx.Request.Context(), location)
	if err != nil {
		respondError(ctx, err)
		return false
	}
	if block.CourseKey != courseKey || block.Category != model.CategorySequential {
		util.BadRequest(ctx, "location must be a subsection of this course")
		return false
	}
	return true
}
