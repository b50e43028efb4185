package controller

import (
	"errors"

	"course_platform_backend/internal/model"
	"course_platform_backend/internal/service"
	"course_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// LessonController 管理端课时维护：CRUD、视频上传与删除、附件、观看次数覆盖
type LessonController struct {
	LessonService *service.LessonService
	VideoService  *service.LessonVideoService
	ViewService   *service.VideoViewService
	Playback      *service.PlaybackService
	CORSOrigin    string
}

func NewLessonController(
	lessonService *service.LessonService,
	videoService *service.LessonVideoService,
	viewService *service.VideoViewService,
	playback *service.PlaybackService,
	corsOrigin string,
) *LessonController {
	return &LessonController{
		LessonService: lessonService,
		VideoService:  videoService,
		ViewService:   viewService,
		Playback:      playback,
		CORSOrigin:    corsOrigin,
	}
}

// LessonRequest 创建/更新课时请求
// swagger:model LessonRequest
type LessonRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Type        string `json:"type" binding:"omitempty,oneof=video pdf text"`
	IsPublished *bool  `json:"isPublished"`
	IsFree      *bool  `json:"isFree"`
	ViewLimit   *int   `json:"viewLimit" binding:"omitempty,min=1"`
	PdfURL      string `json:"pdfUrl"`
	TextContent string `json:"textContent"`
}

// GetLesson godoc
// @Summary 管理端课时详情
// @Tags 管理-课时
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课时ID"
// @Success 200 {object} util.Response{data=model.Lesson} "成功"
// @Failure 404 {object} util.Response "课时不存在"
// @Router /api/admin/lessons/{id} [get]
func (c *LessonController) GetLesson(ctx *gin.Context) {
	lessonID := util.MustParseUint(ctx.Param("id"))

	lesson, err := c.LessonService.Get(lessonID)
	if err != nil {
		if errors.Is(err, util.ErrLessonNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, lesson)
}

// CreateLesson godoc
// @Summary 创建课时
// @Tags 管理-课时
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "章节ID"
// @Param   body body LessonRequest true "课时信息"
// @Success 201 {object} util.Response{data=model.Lesson} "创建成功"
// @Failure 404 {object} util.Response "章节不存在"
// @Router /api/admin/chapters/{id}/lessons [post]
func (c *LessonController) CreateLesson(ctx *gin.Context) {
	chapterID := util.MustParseUint(ctx.Param("id"))

	var req LessonRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	lesson := &model.Lesson{
		ChapterID:   chapterID,
		Title:       req.Title,
		Description: req.Description,
		Type:        model.LessonType(req.Type),
		PdfURL:      req.PdfURL,
		TextContent: req.TextContent,
	}
	if lesson.Type == "" {
		lesson.Type = model.LessonVideo
	}
	if req.IsPublished != nil {
		lesson.IsPublished = *req.IsPublished
	}
	if req.IsFree != nil {
		lesson.IsFree = *req.IsFree
	}
	if req.ViewLimit != nil {
		lesson.ViewLimit = *req.ViewLimit
	} else {
		lesson.ViewLimit = 2
	}

	if err := c.LessonService.Create(lesson); err != nil {
		if errors.Is(err, util.ErrChapterNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Created(ctx, lesson)
}

// UpdateLesson godoc
// @Summary 更新课时
// @Description 视频标识与处理状态不可经此接口修改
// @Tags 管理-课时
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课时ID"
// @Param   body body LessonRequest true "课时信息"
// @Success 200 {object} util.Response "更新成功"
// @Failure 404 {object} util.Response "课时不存在"
// @Router /api/admin/lessons/{id} [put]
func (c *LessonController) UpdateLesson(ctx *gin.Context) {
	lessonID := util.MustParseUint(ctx.Param("id"))

	var req LessonRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	updates := map[string]interface{}{
		"title":        req.Title,
		"description":  req.Description,
		"pdf_url":      req.PdfURL,
		"text_content": req.TextContent,
	}
	if req.Type != "" {
		updates["type"] = req.Type
	}
	if req.IsPublished != nil {
		updates["is_published"] = *req.IsPublished
	}
	if req.IsFree != nil {
		updates["is_free"] = *req.IsFree
	}
	if req.ViewLimit != nil {
		updates["view_limit"] = *req.ViewLimit
	}

	if err := c.LessonService.Update(lessonID, updates); err != nil {
		if errors.Is(err, util.ErrLessonNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}

// ReorderLessons godoc
// @Summary 重排章节下的课时
// @Tags 管理-课时
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "章节ID"
// @Param   body body ReorderRequest true "课时顺序"
// @Success 200 {object} util.Response "重排成功"
// @Failure 404 {object} util.Response "章节不存在"
// @Router /api/admin/chapters/{id}/lessons/reorder [put]
func (c *LessonController) ReorderLessons(ctx *gin.Context) {
	chapterID := util.MustParseUint(ctx.Param("id"))

	var req ReorderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.LessonService.Reorder(chapterID, req.OrderedIDs); err != nil {
		if errors.Is(err, util.ErrChapterNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}

// DeleteLesson godoc
// @Summary 删除课时
// @Description 远端视频资产删除失败时整个删除中止
// @Tags 管理-课时
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课时ID"
// @Success 200 {object} util.Response "删除成功"
// @Failure 404 {object} util.Response "课时不存在"
// @Failure 502 {object} util.Response "远端资产删除失败"
// @Router /api/admin/lessons/{id} [delete]
func (c *LessonController) DeleteLesson(ctx *gin.Context) {
	lessonID := util.MustParseUint(ctx.Param("id"))

	if err := c.LessonService.Delete(ctx.Request.Context(), lessonID); err != nil {
		switch {
		case errors.Is(err, util.ErrLessonNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrRemoteAssetDeleteFailed):
			util.Error(ctx, 502, "远端视频资产删除失败，课时未删除")
		case errors.Is(err, util.ErrProviderNotConfigured):
			util.Error(ctx, 503, "视频服务未配置")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}

// ---- 视频 ----

// BeginVideoUpload godoc
// @Summary 创建视频直传会话
// @Description 为课时创建（或替换）视频。返回直传地址，前端直接向其上传文件。
// @Tags 管理-视频
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课时ID"
// @Success 200 {object} util.Response{data=service.UploadSession} "成功"
// @Failure 400 {object} util.Response "非视频课时"
// @Failure 404 {object} util.Response "课时不存在"
// @Failure 503 {object} util.Response "视频服务未配置"
// @Router /api/admin/lessons/{id}/video/upload [post]
func (c *LessonController) BeginVideoUpload(ctx *gin.Context) {
	lessonID := util.MustParseUint(ctx.Param("id"))

	session, err := c.VideoService.BeginUpload(ctx.Request.Context(), lessonID, c.CORSOrigin)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrLessonNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrNotAVideoLesson):
			util.BadRequest(ctx, "该课时不是视频课时")
		case errors.Is(err, util.ErrProviderNotConfigured):
			util.Error(ctx, 503, "视频服务未配置")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, session)
}

// DeleteLessonVideo godoc
// @Summary 删除课时视频
// @Description 删除远端资产并清空课时的视频字段，课时本身保留
// @Tags 管理-视频
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课时ID"
// @Success 200 {object} util.Response "删除成功"
// @Failure 404 {object} util.Response "课时不存在"
// @Failure 502 {object} util.Response "远端资产删除失败"
// @Router /api/admin/lessons/{id}/video [delete]
func (c *LessonController) DeleteLessonVideo(ctx *gin.Context) {
	lessonID := util.MustParseUint(ctx.Param("id"))

	lesson, err := c.LessonService.Get(lessonID)
	if err != nil {
		if errors.Is(err, util.ErrLessonNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	if err := c.VideoService.DeleteVideo(ctx.Request.Context(), lesson); err != nil {
		switch {
		case errors.Is(err, util.ErrRemoteAssetDeleteFailed):
			util.Error(ctx, 502, "远端视频资产删除失败")
		case errors.Is(err, util.ErrProviderNotConfigured):
			util.Error(ctx, 503, "视频服务未配置")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}

// GetPlaybackURLs godoc
// @Summary 管理端播放预览
// @Description 为已就绪的视频签发播放与封面地址，不校验注册与观看额度
// @Tags 管理-视频
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课时ID"
// @Success 200 {object} util.Response{data=service.PlaybackInfo} "成功"
// @Failure 404 {object} util.Response "课时不存在或视频未就绪"
// @Failure 503 {object} util.Response "签名密钥未配置"
// @Router /api/admin/lessons/{id}/video/urls [get]
func (c *LessonController) GetPlaybackURLs(ctx *gin.Context) {
	lessonID := util.MustParseUint(ctx.Param("id"))

	info, err := c.Playback.GetPlaybackURLs(lessonID)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrLessonNotFound), errors.Is(err, util.ErrNotAVideoLesson):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrSigningNotConfigured):
			util.Error(ctx, 503, "播放签名密钥未配置")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, info)
}

// ---- 附件 ----

// UploadAttachment godoc
// @Summary 上传课时附件
// @Tags 管理-课时
// @Accept  multipart/form-data
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课时ID"
// @Param   file formData file true "附件文件"
// @Success 200 {object} util.Response{data=model.Attachment} "上传成功"
// @Failure 400 {object} util.Response "文件类型不支持"
// @Router /api/admin/lessons/{id}/attachments [post]
func (c *LessonController) UploadAttachment(ctx *gin.Context) {
	lessonID := util.MustParseUint(ctx.Param("id"))

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少文件")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	attachment, err := c.LessonService.AddAttachment(ctx.Request.Context(), lessonID, file, fileHeader.Size, fileHeader.Filename, contentType)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrLessonNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrInvalidAttachment):
			util.BadRequest(ctx, "不支持的附件类型")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, attachment)
}

// DeleteAttachment godoc
// @Summary 删除课时附件
// @Tags 管理-课时
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课时ID"
// @Param   key query string true "附件存储键"
// @Success 200 {object} util.Response "删除成功"
// @Failure 404 {object} util.Response "课时或附件不存在"
// @Router /api/admin/lessons/{id}/attachments [delete]
func (c *LessonController) DeleteAttachment(ctx *gin.Context) {
	lessonID := util.MustParseUint(ctx.Param("id"))
	key := ctx.Query("key")
	if key == "" {
		util.BadRequest(ctx, "缺少附件存储键")
		return
	}

	if err := c.LessonService.RemoveAttachment(ctx.Request.Context(), lessonID, key); err != nil {
		switch {
		case errors.Is(err, util.ErrLessonNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrInvalidAttachment):
			util.NotFound(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}

// ---- 观看次数 ----

// ViewLimitRequest 观看次数覆盖请求。0 为合法值（禁止观看）。
// swagger:model ViewLimitRequest
type ViewLimitRequest struct {
	Limit *int `json:"limit" binding:"required,min=0"`
}

// SetViewOverride godoc
// @Summary 为指定用户设置课时观看次数上限
// @Tags 管理-观看次数
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课时ID"
// @Param   userId path int true "用户ID"
// @Param   body body ViewLimitRequest true "观看次数上限"
// @Success 200 {object} util.Response{data=model.VideoView} "设置成功"
// @Failure 404 {object} util.Response "课时不存在"
// @Router /api/admin/lessons/{id}/views/{userId} [put]
func (c *LessonController) SetViewOverride(ctx *gin.Context) {
	lessonID := util.MustParseUint(ctx.Param("id"))
	userID := util.MustParseUint(ctx.Param("userId"))

	var req ViewLimitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	view, err := c.ViewService.SetOverride(userID, lessonID, *req.Limit)
	if err != nil {
		if errors.Is(err, util.ErrLessonNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, view)
}

// ClearViewOverride godoc
// @Summary 清除指定用户的观看次数覆盖，恢复课时默认上限
// @Tags 管理-观看次数
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课时ID"
// @Param   userId path int true "用户ID"
// @Success 200 {object} util.Response "清除成功"
// @Router /api/admin/lessons/{id}/views/{userId} [delete]
func (c *LessonController) ClearViewOverride(ctx *gin.Context) {
	lessonID := util.MustParseUint(ctx.Param("id"))
	userID := util.MustParseUint(ctx.Param("userId"))

	if err := c.ViewService.ClearOverride(userID, lessonID); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ListLessonViews godoc
// @Summary 课时的观看记录列表
// @Tags 管理-观看次数
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课时ID"
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/admin/lessons/{id}/views [get]
func (c *LessonController) ListLessonViews(ctx *gin.Context) {
	lessonID := util.MustParseUint(ctx.Param("id"))
	page, limit := util.Pagination(ctx, 20)

	views, total, err := c.ViewService.ListByLesson(lessonID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: views, Total: total, Page: page, Limit: limit})
}
