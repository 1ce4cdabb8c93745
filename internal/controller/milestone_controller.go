package controller

import (
	"course_gating_backend/internal/service"
	"course_gating_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type MilestoneController struct {
	MilestoneService *service.MilestoneService
}

func NewMilestoneController(milestoneService *service.MilestoneService) *MilestoneController {
	return &MilestoneController{MilestoneService: milestoneService}
}

// @Summary 当前用户是否已获得里程碑
// @Tags 里程碑
// @Produce json
// @Security BearerAuth
// @Param id path int true "里程碑ID"
// @Success 200 {object} util.Response
// @Router /api/milestones/{id}/status [get]
func (c *MilestoneController) Status(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid milestone id")
		return
	}

	m, err := c.MilestoneService.GetMilestone(ctx.Request.Context(), uint(id))
	if err != nil {
		respondError(ctx, err)
		return
	}
	has, err := c.MilestoneService.UserHasMilestone(ctx.Request.Context(), user.UserID, m.ID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	status, err := c.MilestoneService.UserMilestoneStatus(ctx.Request.Context(), user.UserID, m.ID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	resp := gin.H{
		"milestone": m,
		"fulfilled": has,
	}
	if status != nil && has {
		resp["collectedAt"] = status.CollectedAt
	}
	util.Success(ctx, resp)
}
