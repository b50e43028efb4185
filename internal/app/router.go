package app

import (
	"course_platform_backend/docs"
	"course_platform_backend/internal/config"
	"course_platform_backend/internal/middleware"
	"course_platform_backend/internal/model"
	"course_platform_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// 1. 公共路由（无需登录）
	api := router.Group("/api")
	{
		api.POST("/register", c.auth.Register)
		api.POST("/login", c.auth.Login)
		api.GET("/content/:key", c.siteContent.GetContent)
		api.GET("/courses", c.course.ListCourses)
		// 课程详情对游客开放，管理员可见未发布内容
		api.GET("/courses/:id", middleware.OptionalAuthMiddleware(cfg), c.course.GetCourse)

		// 视频服务商回调：验签代替登录
		api.POST("/webhooks/mux", c.webhook.HandleMuxWebhook)
	}

	// 2. 需要登录的学员路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/me", c.auth.Me)
		authGroup.GET("/my/enrollments", c.enrollment.MyEnrollments)
		authGroup.POST("/courses/:id/enroll", c.enrollment.EnrollSelf)

		authGroup.GET("/lessons/:id", c.playback.GetLessonDetail)
		authGroup.POST("/lessons/:id/view", c.playback.RecordView)
		authGroup.GET("/lessons/:id/view-status", c.playback.GetViewStatus)
	}

	// 3. 管理员路由
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.Admin))
	{
		// 课程
		admin.GET("/courses", c.course.ListAllCourses)
		admin.POST("/courses", c.course.CreateCourse)
		admin.PUT("/courses/:id", c.course.UpdateCourse)
		admin.DELETE("/courses/:id", c.course.DeleteCourse)
		admin.POST("/courses/:id/cover", c.course.UploadCourseCover)

		// 章节
		admin.POST("/courses/:id/chapters", c.course.CreateChapter)
		admin.PUT("/courses/:id/chapters/reorder", c.course.ReorderChapters)
		admin.PUT("/chapters/:id", c.course.UpdateChapter)
		admin.DELETE("/chapters/:id", c.course.DeleteChapter)

		// 课时
		admin.POST("/chapters/:id/lessons", c.lesson.CreateLesson)
		admin.PUT("/chapters/:id/lessons/reorder", c.lesson.ReorderLessons)
		admin.GET("/lessons/:id", c.lesson.GetLesson)
		admin.PUT("/lessons/:id", c.lesson.UpdateLesson)
		admin.DELETE("/lessons/:id", c.lesson.DeleteLesson)

		// 视频
		admin.POST("/lessons/:id/video/upload", c.lesson.BeginVideoUpload)
		admin.DELETE("/lessons/:id/video", c.lesson.DeleteLessonVideo)
		admin.GET("/lessons/:id/video/urls", c.lesson.GetPlaybackURLs)

		// 附件
		admin.POST("/lessons/:id/attachments", c.lesson.UploadAttachment)
		admin.DELETE("/lessons/:id/attachments", c.lesson.DeleteAttachment)

		// 观看次数
		admin.GET("/lessons/:id/views", c.lesson.ListLessonViews)
		admin.PUT("/lessons/:id/views/:userId", c.lesson.SetViewOverride)
		admin.DELETE("/lessons/:id/views/:userId", c.lesson.ClearViewOverride)

		// 注册
		admin.GET("/enrollments", c.enrollment.SearchEnrollments)
		admin.POST("/enrollments", c.enrollment.Enroll)
		admin.DELETE("/enrollments/:userId/:courseId", c.enrollment.Revoke)

		// 课程事件流
		admin.GET("/courses/:id/events", c.event.StreamCourseEvents)

		// 站点内容
		admin.GET("/content", c.siteContent.ListContents)
		admin.PUT("/content/:key", c.siteContent.SetContent)
	}
}
