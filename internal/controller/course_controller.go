package controller

import (
	"errors"

	"course_platform_backend/internal/model"
	"course_platform_backend/internal/service"
	"course_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	CourseService *service.CourseService
}

func NewCourseController(courseService *service.CourseService) *CourseController {
	return &CourseController{CourseService: courseService}
}

// ListCourses godoc
// @Summary 课程列表
// @Description 学员侧课程列表，只含已发布课程
// @Tags 课程
// @Produce  json
// @Param   keyword query string false "搜索关键字"
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页数量" default(10)
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/courses [get]
func (c *CourseController) ListCourses(ctx *gin.Context) {
	keyword := ctx.Query("keyword")
	page, limit := util.Pagination(ctx, 10)

	courses, total, err := c.CourseService.ListPublished(keyword, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: courses, Total: total, Page: page, Limit: limit})
}

// GetCourse godoc
// @Summary 课程详情
// @Description 课程目录（章节与课时列表）。未发布内容仅管理员可见。
// @Tags 课程
// @Produce  json
// @Param   id path int true "课程ID"
// @Success 200 {object} util.Response{data=service.CourseDetail} "成功"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/courses/{id} [get]
func (c *CourseController) GetCourse(ctx *gin.Context) {
	courseID := util.MustParseUint(ctx.Param("id"))

	var userID uint
	isAdmin := false
	if claims := util.GetUserFromContext(ctx); claims != nil {
		userID = claims.UserID
		isAdmin = claims.IsAdmin()
	}

	detail, err := c.CourseService.GetDetail(userID, courseID, isAdmin)
	if err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, detail)
}

// ---- 管理端 ----

// ListAllCourses godoc
// @Summary 管理端课程列表
// @Tags 管理-课程
// @Produce  json
// @Security BearerAuth
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页数量" default(10)
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/admin/courses [get]
func (c *CourseController) ListAllCourses(ctx *gin.Context) {
	page, limit := util.Pagination(ctx, 10)

	courses, total, err := c.CourseService.ListAll(page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: courses, Total: total, Page: page, Limit: limit})
}

// CourseRequest 创建/更新课程请求
// swagger:model CourseRequest
type CourseRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	IsPublished *bool   `json:"isPublished"`
}

// CreateCourse godoc
// @Summary 创建课程
// @Tags 管理-课程
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body CourseRequest true "课程信息"
// @Success 201 {object} util.Response{data=model.Course} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/admin/courses [post]
func (c *CourseController) CreateCourse(ctx *gin.Context) {
	var req CourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course := &model.Course{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
	}
	if req.IsPublished != nil {
		course.IsPublished = *req.IsPublished
	}

	if err := c.CourseService.Create(course); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, course)
}

// UpdateCourse godoc
// @Summary 更新课程
// @Tags 管理-课程
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课程ID"
// @Param   body body CourseRequest true "课程信息"
// @Success 200 {object} util.Response "更新成功"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/admin/courses/{id} [put]
func (c *CourseController) UpdateCourse(ctx *gin.Context) {
	courseID := util.MustParseUint(ctx.Param("id"))

	var req CourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	updates := map[string]interface{}{
		"title":       req.Title,
		"description": req.Description,
		"price":       req.Price,
	}
	if req.IsPublished != nil {
		updates["is_published"] = *req.IsPublished
	}

	if err := c.CourseService.Update(courseID, updates); err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}

// UploadCourseCover godoc
// @Summary 上传课程封面
// @Tags 管理-课程
// @Accept  multipart/form-data
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课程ID"
// @Param   file formData file true "封面图片"
// @Success 200 {object} util.Response{data=object} "上传成功"
// @Failure 400 {object} util.Response "文件类型不支持"
// @Router /api/admin/courses/{id}/cover [post]
func (c *CourseController) UploadCourseCover(ctx *gin.Context) {
	courseID := util.MustParseUint(ctx.Param("id"))

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
	url, err := c.CourseService.UploadCover(ctx.Request.Context(), courseID, file, fileHeader.Size, fileHeader.Filename, contentType)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrCourseNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrInvalidAttachment):
			util.BadRequest(ctx, "仅支持图片文件")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, gin.H{"imageUrl": url})
}

// DeleteCourse godoc
// @Summary 删除课程
// @Description 课程下仍有托管视频的课时时拒绝删除
// @Tags 管理-课程
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课程ID"
// @Success 200 {object} util.Response "删除成功"
// @Failure 404 {object} util.Response "课程不存在"
// @Failure 409 {object} util.Response "仍有托管视频"
// @Router /api/admin/courses/{id} [delete]
func (c *CourseController) DeleteCourse(ctx *gin.Context) {
	courseID := util.MustParseUint(ctx.Param("id"))

	if err := c.CourseService.Delete(courseID); err != nil {
		switch {
		case errors.Is(err, util.ErrCourseNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrRemoteAssetDeleteFailed):
			util.Conflict(ctx, "请先删除课程下的托管视频")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}

// ---- 章节 ----

// ChapterRequest 创建/更新章节请求
// swagger:model ChapterRequest
type ChapterRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	IsPublished *bool  `json:"isPublished"`
}

// CreateChapter godoc
// @Summary 创建章节
// @Tags 管理-章节
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课程ID"
// @Param   body body ChapterRequest true "章节信息"
// @Success 201 {object} util.Response{data=model.Chapter} "创建成功"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/admin/courses/{id}/chapters [post]
func (c *CourseController) CreateChapter(ctx *gin.Context) {
	courseID := util.MustParseUint(ctx.Param("id"))

	var req ChapterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	chapter := &model.Chapter{
		CourseID:    courseID,
		Title:       req.Title,
		Description: req.Description,
	}
	if req.IsPublished != nil {
		chapter.IsPublished = *req.IsPublished
	}

	if err := c.CourseService.CreateChapter(chapter); err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Created(ctx, chapter)
}

// UpdateChapter godoc
// @Summary 更新章节
// @Tags 管理-章节
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "章节ID"
// @Param   body body ChapterRequest true "章节信息"
// @Success 200 {object} util.Response "更新成功"
// @Failure 404 {object} util.Response "章节不存在"
// @Router /api/admin/chapters/{id} [put]
func (c *CourseController) UpdateChapter(ctx *gin.Context) {
	chapterID := util.MustParseUint(ctx.Param("id"))

	var req ChapterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	updates := map[string]interface{}{
		"title":       req.Title,
		"description": req.Description,
	}
	if req.IsPublished != nil {
		updates["is_published"] = *req.IsPublished
	}

	if err := c.CourseService.UpdateChapter(chapterID, updates); err != nil {
		if errors.Is(err, util.ErrChapterNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}

// ReorderRequest 重排请求：按期望顺序排列的 id 列表
// swagger:model ReorderRequest
type ReorderRequest struct {
	OrderedIDs []uint `json:"orderedIds" binding:"required,min=1"`
}

// ReorderChapters godoc
// @Summary 重排章节
// @Tags 管理-章节
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课程ID"
// @Param   body body ReorderRequest true "章节顺序"
// @Success 200 {object} util.Response "重排成功"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/admin/courses/{id}/chapters/reorder [put]
func (c *CourseController) ReorderChapters(ctx *gin.Context) {
	courseID := util.MustParseUint(ctx.Param("id"))

	var req ReorderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.CourseService.ReorderChapters(courseID, req.OrderedIDs); err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}

// DeleteChapter godoc
// @Summary 删除章节
// @Description 章节下仍有托管视频的课时时拒绝删除
// @Tags 管理-章节
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "章节ID"
// @Success 200 {object} util.Response "删除成功"
// @Failure 404 {object} util.Response "章节不存在"
// @Failure 409 {object} util.Response "仍有托管视频"
// @Router /api/admin/chapters/{id} [delete]
func (c *CourseController) DeleteChapter(ctx *gin.Context) {
	chapterID := util.MustParseUint(ctx.Param("id"))

	if err := c.CourseService.DeleteChapter(chapterID); err != nil {
		switch {
		case errors.Is(err, util.ErrChapterNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrRemoteAssetDeleteFailed):
			util.Conflict(ctx, "请先删除章节下的托管视频")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}
