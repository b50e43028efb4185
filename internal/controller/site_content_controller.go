package controller

import (
	"errors"

	"course_platform_backend/internal/service"
	"course_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SiteContentController struct {
	ContentService *service.SiteContentService
}

func NewSiteContentController(contentService *service.SiteContentService) *SiteContentController {
	return &SiteContentController{ContentService: contentService}
}

// GetContent godoc
// @Summary 读取站点文案
// @Tags 站点内容
// @Produce  json
// @Param   key path string true "文案键"
// @Success 200 {object} util.Response{data=model.SiteContent} "成功"
// @Failure 404 {object} util.Response "文案不存在"
// @Router /api/content/{key} [get]
func (c *SiteContentController) GetContent(ctx *gin.Context) {
	key := ctx.Param("key")

	content, err := c.ContentService.Get(key)
	if err != nil {
		if errors.Is(err, util.ErrContentNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, content)
}

// ListContents godoc
// @Summary 站点文案列表
// @Tags 管理-站点内容
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.SiteContent} "成功"
// @Router /api/admin/content [get]
func (c *SiteContentController) ListContents(ctx *gin.Context) {
	contents, err := c.ContentService.List()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, contents)
}

// ContentRequest 写入站点文案请求
// swagger:model ContentRequest
type ContentRequest struct {
	Body string `json:"body" binding:"required"`
}

// SetContent godoc
// @Summary 写入站点文案
// @Tags 管理-站点内容
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   key path string true "文案键"
// @Param   body body ContentRequest true "文案内容"
// @Success 200 {object} util.Response{data=model.SiteContent} "写入成功"
// @Router /api/admin/content/{key} [put]
func (c *SiteContentController) SetContent(ctx *gin.Context) {
	key := ctx.Param("key")

	var req ContentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	content, err := c.ContentService.Set(key, req.Body)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, content)
}
