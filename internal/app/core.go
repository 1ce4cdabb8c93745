package app

import (
	"course_gating_backend/internal/config"
	"course_gating_backend/internal/repository"
	"course_gating_backend/internal/service"
	"course_gating_backend/internal/signals"
	"course_gating_backend/pkg/database"
	"course_gating_backend/pkg/logger"
	"course_gating_backend/pkg/monitoring"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Core is the storage and service graph shared by the HTTP server and gatingctl.
type Core struct {
	Config     *config.Config
	DB         *gorm.DB
	Redis      *redis.Client
	Signals    *signals.Dispatcher
	Flags      *service.FeatureFlags
	Auth       *service.AuthService
	Content    *service.ContentService
	Milestones *service.MilestoneService
	Gating     *service.GatingService
	Grades     *service.GradeService
}

type repositories struct {
	user      *repository.UserRepository
	course    *repository.CourseRepository
	content   *repository.ContentRepository
	milestone *repository.MilestoneRepository
	grade     *repository.GradeRepository
}

func initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:      repository.NewUserRepository(db),
		course:    repository.NewCourseRepository(db),
		content:   repository.NewContentRepository(db),
		milestone: repository.NewMilestoneRepository(db),
		grade:     repository.NewGradeRepository(db),
	}
}

// NewCore opens the database, runs migrations when asked and wires the services.
// Redis is only dialled when signals are published to it.
func NewCore(cfg *config.Config) (*Core, error) {
	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if cfg.ForceMigrate || cfg.Server.Mode != "release" {
		if err := database.Migrate(db); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		logger.Log.Info("Database migrated")
	}

	var rdb *redis.Client
	if cfg.Signals.PublishToRedis {
		rdb, err = database.InitRedis(&cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
	}

	return Wire(cfg, db, rdb), nil
}

// Wire builds the services on top of already opened connections.
func Wire(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *Core {
	monitoring.Init()

	repos := initRepositories(db)
	dispatcher := signals.NewDispatcher(logger.Log)
	flags := service.NewFeatureFlags(cfg)

	c := &Core{
		Config:  cfg,
		DB:      db,
		Redis:   rdb,
		Signals: dispatcher,
		Flags:   flags,
	}
	c.Auth = service.NewAuthService(repos.user, cfg)
	c.Content = service.NewContentService(repos.course, repos.content, logger.Log)
	c.Milestones = service.NewMilestoneService(repos.milestone, flags, dispatcher, logger.Log)
	c.Content.References = c.Milestones
	c.Gating = service.NewGatingService(c.Milestones, c.Milestones, c.Content, flags, logger.Log)
	c.Grades = service.NewGradeService(repos.grade, c.Content, dispatcher, logger.Log)
	c.Content.Prerequisites = c.Gating
	c.Content.Scores = c.Grades

	service.ConnectGatingHandlers(dispatcher, c.Gating)

	if rdb != nil {
		channel := cfg.Signals.RedisChannel
		signals.NewRedisPublisher(rdb, channel, logger.Log).
			Attach(dispatcher, signals.SubsectionScoreChanged, signals.MilestoneChanged)
		logger.Log.Info("Publishing signals to redis", zap.String("channel", channel))
	}
	return c
}

// ApplyConfig 配置热更新：只刷新运行时开关
func (c *Core) ApplyConfig(cfg *config.Config) {
	c.Flags.Apply(cfg)
	logger.Log.Info("Feature flags updated",
		zap.Bool("gating", cfg.Gating.Enabled),
		zap.Bool("milestones", cfg.Milestones.Enabled))
}

func (c *Core) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if sqlDB, err := c.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
