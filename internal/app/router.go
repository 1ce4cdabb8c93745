package app

import (
	"course_gating_backend/internal/controller"
	"course_gating_backend/internal/middleware"
	"course_gating_backend/internal/model"
	"course_gating_backend/pkg/monitoring"
	"course_gating_backend/pkg/security"
	"course_gating_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
)

type controllers struct {
	auth      *controller.AuthController
	health    *controller.HealthController
	course    *controller.CourseController
	gating    *controller.GatingController
	grade     *controller.GradeController
	milestone *controller.MilestoneController
}

func initControllers(core *Core) *controllers {
	return &controllers{
		auth:      controller.NewAuthController(core.Auth),
		health:    controller.NewHealthController(core.DB, core.Redis),
		course:    controller.NewCourseController(core.Content),
		gating:    controller.NewGatingController(core.Gating, core.Content, core.Auth),
		grade:     controller.NewGradeController(core.Grades, core.Content),
		milestone: controller.NewMilestoneController(core.Milestones),
	}
}

// NewRouter builds the gin engine. limiter may be nil.
func NewRouter(core *Core, limiter *security.Limiter) *gin.Engine {
	cfg := core.Config
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	if limiter != nil {
		router.Use(limiter.Middleware())
	}
	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}
	router.Use(monitoring.MetricsMiddleware())

	c := initControllers(core)

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		authGroup.GET("/me", c.auth.Me)
		authGroup.POST("/courses/:courseKey/problems/answer", c.grade.AnswerProblem)
		authGroup.GET("/courses/:courseKey/gated-content", c.gating.GatedContent)
		authGroup.GET("/courses/:courseKey/subsections/grade", c.grade.GetSubsectionGrade)
		authGroup.GET("/milestones/:id/status", c.milestone.Status)

		// 3. 教师相关接口
		teacher := authGroup.Group("/teacher")
		teacher.Use(middleware.RoleMiddleware(model.Teacher))
		{
			teacher.POST("/courses", c.course.CreateCourse)
			teacher.GET("/courses/:courseKey/outline", c.course.GetOutline)
			teacher.PUT("/courses/:courseKey/gating", c.course.SetGating)
			teacher.POST("/courses/:courseKey/blocks", c.course.CreateBlock)
			teacher.DELETE("/courses/:courseKey/blocks", c.course.DeleteBlock)

			teacher.POST("/courses/:courseKey/prerequisites", c.gating.AddPrerequisite)
			teacher.DELETE("/courses/:courseKey/prerequisites", c.gating.RemovePrerequisite)
			teacher.GET("/courses/:courseKey/prerequisites", c.gating.ListPrerequisites)
			teacher.PUT("/courses/:courseKey/required-content", c.gating.SetRequiredContent)
			teacher.GET("/courses/:courseKey/required-content", c.gating.GetRequiredContent)
			teacher.POST("/courses/:courseKey/recalculate", c.grade.Recalculate)
		}
	}

	return router
}
