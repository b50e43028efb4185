package controller

import (
	"errors"

	"course_platform_backend/internal/service"
	"course_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// PlaybackController 学员侧课时访问：详情、观看上报、额度查询
type PlaybackController struct {
	Playback *service.PlaybackService
}

func NewPlaybackController(playback *service.PlaybackService) *PlaybackController {
	return &PlaybackController{Playback: playback}
}

// GetLessonDetail godoc
// @Summary 课时详情
// @Description 视频就绪且还有观看额度时返回签名播放地址；额度用尽时照常返回详情，playback 为空
// @Tags 课时
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课时ID"
// @Success 200 {object} util.Response{data=service.LessonDetail} "成功"
// @Failure 403 {object} util.Response "未注册该课程"
// @Failure 404 {object} util.Response "课时不存在"
// @Router /api/lessons/{id} [get]
func (c *PlaybackController) GetLessonDetail(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	lessonID := util.MustParseUint(ctx.Param("id"))

	detail, err := c.Playback.GetLessonDetail(ctx.Request.Context(), claims.UserID, lessonID, claims.IsAdmin())
	if err != nil {
		switch {
		case errors.Is(err, util.ErrLessonNotFound), errors.Is(err, util.ErrChapterNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrNotEnrolled):
			util.Forbidden(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, detail)
}

// RecordViewRequest 观看进度上报
// swagger:model RecordViewRequest
type RecordViewRequest struct {
	WatchPercentage int `json:"watchPercentage" binding:"min=0,max=100"`
}

// RecordView godoc
// @Summary 上报观看进度
// @Description 进度达到完整观看阈值时消耗一次观看额度。额度用尽不是错误——
// @Description 返回 200 与当前额度状态，counted 标记本次是否计入。
// @Tags 课时
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课时ID"
// @Param   body body RecordViewRequest true "观看进度"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 403 {object} util.Response "未注册该课程"
// @Failure 404 {object} util.Response "课时不存在"
// @Router /api/lessons/{id}/view [post]
func (c *PlaybackController) RecordView(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	lessonID := util.MustParseUint(ctx.Param("id"))

	var req RecordViewRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	status, err := c.Playback.RecordView(claims.UserID, lessonID, req.WatchPercentage, claims.IsAdmin())
	if err != nil {
		switch {
		case errors.Is(err, util.ErrViewLimitReached):
			// 额度用尽是正常业务结果，带状态返回
			util.Success(ctx, gin.H{
				"counted":    false,
				"viewStatus": status.APIView(),
			})
		case errors.Is(err, util.ErrLessonNotFound), errors.Is(err, util.ErrChapterNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrNotEnrolled):
			util.Forbidden(ctx)
		case errors.Is(err, util.ErrNotAVideoLesson):
			util.BadRequest(ctx, "该课时不是视频课时")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{
		"counted":    req.WatchPercentage >= util.CompletedViewThreshold,
		"viewStatus": status.APIView(),
	})
}

// GetViewStatus godoc
// @Summary 查询观看额度
// @Description 只读查询，不创建观看记录、不刷新最后观看时间
// @Tags 课时
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课时ID"
// @Success 200 {object} util.Response{data=service.ViewStatusResponse} "成功"
// @Failure 403 {object} util.Response "未注册该课程"
// @Failure 404 {object} util.Response "课时不存在"
// @Router /api/lessons/{id}/view-status [get]
func (c *PlaybackController) GetViewStatus(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	lessonID := util.MustParseUint(ctx.Param("id"))

	status, err := c.Playback.GetViewStatus(claims.UserID, lessonID, claims.IsAdmin())
	if err != nil {
		switch {
		case errors.Is(err, util.ErrLessonNotFound), errors.Is(err, util.ErrChapterNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrNotEnrolled):
			util.Forbidden(ctx)
		case errors.Is(err, util.ErrNotAVideoLesson):
			util.BadRequest(ctx, "该课时不是视频课时")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, status.APIView())
}
