package controller

import (
	"errors"

	"course_platform_backend/internal/service"
	"course_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type EnrollmentController struct {
	EnrollmentService *service.EnrollmentService
}

func NewEnrollmentController(enrollmentService *service.EnrollmentService) *EnrollmentController {
	return &EnrollmentController{EnrollmentService: enrollmentService}
}

// MyEnrollments godoc
// @Summary 我的课程
// @Description 当前用户已注册的课程列表
// @Tags 注册
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Enrollment} "成功"
// @Router /api/my/enrollments [get]
func (c *EnrollmentController) MyEnrollments(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	enrollments, err := c.EnrollmentService.ListByUser(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, enrollments)
}

// EnrollSelf godoc
// @Summary 注册当前用户到课程
// @Description 学员自助注册。支付对账不在本服务内，注册即生效。
// @Tags 注册
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课程ID"
// @Success 201 {object} util.Response{data=model.Enrollment} "注册成功"
// @Failure 404 {object} util.Response "课程不存在"
// @Failure 409 {object} util.Response "已注册"
// @Router /api/courses/{id}/enroll [post]
func (c *EnrollmentController) EnrollSelf(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID := util.MustParseUint(ctx.Param("id"))

	enrollment, err := c.EnrollmentService.Enroll(claims.UserID, courseID)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrUserNotFound), errors.Is(err, util.ErrCourseNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrAlreadyEnrolled):
			util.Conflict(ctx, "已注册此课程")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Created(ctx, enrollment)
}

// EnrollRequest 注册请求
// swagger:model EnrollRequest
type EnrollRequest struct {
	UserID   uint `json:"userId" binding:"required"`
	CourseID uint `json:"courseId" binding:"required"`
}

// Enroll godoc
// @Summary 注册用户到课程
// @Tags 管理-注册
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body EnrollRequest true "注册信息"
// @Success 201 {object} util.Response{data=model.Enrollment} "注册成功"
// @Failure 404 {object} util.Response "用户或课程不存在"
// @Failure 409 {object} util.Response "已注册"
// @Router /api/admin/enrollments [post]
func (c *EnrollmentController) Enroll(ctx *gin.Context) {
	var req EnrollRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	enrollment, err := c.EnrollmentService.Enroll(req.UserID, req.CourseID)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrUserNotFound), errors.Is(err, util.ErrCourseNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrAlreadyEnrolled):
			util.Conflict(ctx, "该用户已注册此课程")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Created(ctx, enrollment)
}

// Revoke godoc
// @Summary 撤销课程注册
// @Description 撤销注册但保留观看记录，重新注册后额度延续
// @Tags 管理-注册
// @Produce  json
// @Security BearerAuth
// @Param   userId path int true "用户ID"
// @Param   courseId path int true "课程ID"
// @Success 200 {object} util.Response "撤销成功"
// @Failure 404 {object} util.Response "注册记录不存在"
// @Router /api/admin/enrollments/{userId}/{courseId} [delete]
func (c *EnrollmentController) Revoke(ctx *gin.Context) {
	userID := util.MustParseUint(ctx.Param("userId"))
	courseID := util.MustParseUint(ctx.Param("courseId"))

	if err := c.EnrollmentService.Revoke(userID, courseID); err != nil {
		if errors.Is(err, util.ErrNotEnrolled) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}

// SearchEnrollments godoc
// @Summary 注册记录查询
// @Tags 管理-注册
// @Produce  json
// @Security BearerAuth
// @Param   keyword query string false "用户名或邮箱关键字"
// @Param   courseId query int false "课程ID"
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/admin/enrollments [get]
func (c *EnrollmentController) SearchEnrollments(ctx *gin.Context) {
	keyword := ctx.Query("keyword")
	courseID := util.MustParseUint(ctx.DefaultQuery("courseId", "0"))
	page, limit := util.Pagination(ctx, 20)

	enrollments, total, err := c.EnrollmentService.Search(keyword, courseID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: enrollments, Total: total, Page: page, Limit: limit})
}
