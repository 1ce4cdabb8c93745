package controller

import (
	"course_gating_backend/internal/model"
	"course_gating_backend/internal/util"
	"errors"

	"github.com/gin-gonic/gin"
)

// respondError 将业务错误映射为 HTTP 状态码
func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrCourseNotFound),
		errors.Is(err, util.ErrBlockNotFound),
		errors.Is(err, util.ErrMilestoneNotFound),
		errors.Is(err, util.ErrUserNotFound):
		util.Error(ctx, 404, err.Error())
	case errors.Is(err, util.ErrCourseExists), errors.Is(err, util.ErrEmailRegistered):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case errors.Is(err, model.ErrInvalidKey),
		errors.Is(err, util.ErrInvalidParent),
		errors.Is(err, util.ErrInvalidCategory),
		errors.Is(err, util.ErrNotProblem),
		errors.Is(err, util.ErrInvalidScore),
		errors.Is(err, util.ErrInvalidRelationship),
		errors.Is(err, util.ErrNotPrerequisite),
		errors.Is(err, util.ErrInvalidMinScore):
		util.BadRequest(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
