package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"course_platform_backend/internal/config"
	"course_platform_backend/internal/controller"
	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/service"
	"course_platform_backend/pkg/database"
	"course_platform_backend/pkg/logger"
	"course_platform_backend/pkg/monitoring"
	"course_platform_backend/pkg/muxvideo"
	"course_platform_backend/pkg/security"
	"course_platform_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services
}

type repositories struct {
	user        *repository.UserRepository
	course      *repository.CourseRepository
	chapter     *repository.ChapterRepository
	lesson      *repository.LessonRepository
	enrollment  *repository.EnrollmentRepository
	videoView   *repository.VideoViewRepository
	siteContent *repository.SiteContentRepository
}

type services struct {
	auth        *service.AuthService
	storage     *service.StorageService
	course      *service.CourseService
	lesson      *service.LessonService
	lessonVideo *service.LessonVideoService
	videoView   *service.VideoViewService
	playback    *service.PlaybackService
	enrollment  *service.EnrollmentService
	siteContent *service.SiteContentService
	eventHub    *service.EventHub
}

type controllers struct {
	auth        *controller.AuthController
	course      *controller.CourseController
	lesson      *controller.LessonController
	playback    *controller.PlaybackController
	webhook     *controller.WebhookController
	event       *controller.EventController
	enrollment  *controller.EnrollmentController
	siteContent *controller.SiteContentController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:        repository.NewUserRepository(db),
		course:      repository.NewCourseRepository(db),
		chapter:     repository.NewChapterRepository(db),
		lesson:      repository.NewLessonRepository(db),
		enrollment:  repository.NewEnrollmentRepository(db),
		videoView:   repository.NewVideoViewRepository(db),
		siteContent: repository.NewSiteContentRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)

	muxClient := muxvideo.NewClient(cfg.Mux.TokenID, cfg.Mux.TokenSecret)

	var signer *muxvideo.Signer
	if cfg.Mux.SigningConfigured() {
		var err error
		signer, err = muxvideo.NewSigner(cfg.Mux.SigningKeyID, cfg.Mux.SigningKeyPrivate)
		if err != nil {
			logger.Log.Warn("播放签名密钥无效，播放地址将不可用", zap.Error(err))
		}
	} else {
		logger.Log.Warn("未配置播放签名密钥，播放地址将不可用")
	}

	s.eventHub = service.NewEventHub(rdb)
	go s.eventHub.Run()

	s.videoView = service.NewVideoViewService(repos.videoView, repos.lesson)
	s.lessonVideo = service.NewLessonVideoService(repos.lesson, repos.chapter, muxClient, signer, s.eventHub)
	s.playback = service.NewPlaybackService(repos.lesson, repos.chapter, repos.enrollment, s.videoView, signer, s.storage)
	s.course = service.NewCourseService(repos.course, repos.chapter, repos.lesson, repos.enrollment, s.storage)
	s.lesson = service.NewLessonService(repos.lesson, repos.chapter, s.lessonVideo, s.storage)
	s.enrollment = service.NewEnrollmentService(repos.enrollment, repos.course, repos.user)
	s.siteContent = service.NewSiteContentService(repos.siteContent)

	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		auth:        controller.NewAuthController(s.auth),
		course:      controller.NewCourseController(s.course),
		lesson:      controller.NewLessonController(s.lesson, s.lessonVideo, s.videoView, s.playback, a.Config.Mux.CORSOrigin),
		playback:    controller.NewPlaybackController(s.playback),
		webhook:     controller.NewWebhookController(s.lessonVideo, a.Config.Mux.WebhookSecret),
		event:       controller.NewEventController(s.eventHub, s.course),
		enrollment:  controller.NewEnrollmentController(s.enrollment),
		siteContent: controller.NewSiteContentController(s.siteContent),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 1000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.Server.Mode != "release" || cfg.ForceMigrate
	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// Redis 只服务于跨实例事件转发，单实例部署可以没有
		logger.Log.Warn("Redis unavailable, cross-instance event relay disabled", zap.Error(err))
		rdb = nil
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services)

	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		_, err := tracing.InitTracer("course-platform", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// 断开所有 SSE 订阅，停止事件转发
	if a.services != nil && a.services.eventHub != nil {
		a.services.eventHub.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
