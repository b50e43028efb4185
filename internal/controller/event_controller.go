package controller

import (
	"errors"

	"course_platform_backend/internal/service"
	"course_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// EventController 管理后台的课程事件订阅（SSE）
type EventController struct {
	Hub           *service.EventHub
	CourseService *service.CourseService
}

func NewEventController(hub *service.EventHub, courseService *service.CourseService) *EventController {
	return &EventController{Hub: hub, CourseService: courseService}
}

// StreamCourseEvents godoc
// @Summary 订阅课程事件流
// @Description SSE 长连接，推送课程下课时的视频处理状态变化
// @Tags 管理-事件
// @Produce  text/event-stream
// @Security BearerAuth
// @Param   id path int true "课程ID"
// @Success 200 {string} string "事件流"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/admin/courses/{id}/events [get]
func (c *EventController) StreamCourseEvents(ctx *gin.Context) {
	courseID := util.MustParseUint(ctx.Param("id"))

	if _, err := c.CourseService.CourseRepo.FindByID(courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	sub := c.Hub.Subscribe(courseID)
	c.Hub.ServeSSE(ctx, sub)
}
