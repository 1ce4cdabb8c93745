package util

import "errors"

var (
	ErrUserNotFound          = errors.New("用户不存在")
	ErrEmailRegistered       = errors.New("该邮箱已被注册")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrCourseNotFound        = errors.New("course not found")
	ErrCourseExists          = errors.New("course already exists")
	ErrBlockNotFound         = errors.New("content block not found")
	ErrInvalidParent         = errors.New("invalid parent for block category")
	ErrInvalidCategory       = errors.New("invalid block category")
	ErrNoEnclosingSubsection = errors.New("block is not inside a subsection")
	ErrNotProblem            = errors.New("block is not a problem")
	ErrInvalidScore          = errors.New("invalid score")
	ErrMilestoneNotFound     = errors.New("milestone not found")
	ErrInvalidRelationship   = errors.New("invalid milestone relationship")
	ErrNotPrerequisite       = errors.New("content is not a prerequisite")
	ErrInvalidMinScore       = errors.New("min score is not a valid grade percentage")
)
