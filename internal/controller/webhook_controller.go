package controller

import (
	"encoding/json"
	"io"
	"net/http"

	"course_platform_backend/internal/service"
	"course_platform_backend/pkg/logger"
	"course_platform_backend/pkg/monitoring"
	"course_platform_backend/pkg/muxvideo"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 回调体大小上限，防御异常大包
const maxWebhookBody = 1 << 20

// WebhookController 视频服务商回调入口。
// 验签失败返回 401；其余情况一律返回 200——包括解析失败、未知事件类型和
// 无归属的迟到回调，服务商对非 2xx 会重试，而这些事件重试也不会有不同结果。
type WebhookController struct {
	VideoService  *service.LessonVideoService
	WebhookSecret string
}

func NewWebhookController(videoService *service.LessonVideoService, webhookSecret string) *WebhookController {
	return &WebhookController{
		VideoService:  videoService,
		WebhookSecret: webhookSecret,
	}
}

type webhookEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type uploadEventData struct {
	ID      string `json:"id"`
	AssetID string `json:"asset_id"`
}

type assetEventData struct {
	ID          string  `json:"id"`
	Duration    float64 `json:"duration"`
	PlaybackIDs []struct {
		ID     string `json:"id"`
		Policy string `json:"policy"`
	} `json:"playback_ids"`
	Errors struct {
		Messages []string `json:"messages"`
	} `json:"errors"`
}

// HandleMuxWebhook godoc
// @Summary 视频服务商回调
// @Description 接收 Mux 的处理状态回调并推进课时的视频状态
// @Tags 回调
// @Accept  json
// @Produce  json
// @Success 200 {object} util.Response "已接收"
// @Failure 401 {object} util.Response "签名无效"
// @Router /api/webhooks/mux [post]
func (c *WebhookController) HandleMuxWebhook(ctx *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxWebhookBody))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "unreadable body"})
		return
	}

	if c.WebhookSecret != "" {
		signature := ctx.GetHeader("Mux-Signature")
		if err := muxvideo.VerifySignature(body, signature, c.WebhookSecret); err != nil {
			monitoring.WebhookEventCounter.WithLabelValues("unknown", "rejected").Inc()
			logger.Log.Warn("回调验签失败", zap.Error(err))
			ctx.JSON(http.StatusUnauthorized, gin.H{"message": "invalid signature"})
			return
		}
	}

	// 验签通过后一律确认：解析不了的包重投递也解析不了，
	// 非 2xx 只会招来重投风暴
	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		monitoring.WebhookEventCounter.WithLabelValues("unknown", "malformed").Inc()
		logger.Log.Warn("回调体解析失败", zap.Error(err))
		ctx.JSON(http.StatusOK, gin.H{"message": "received"})
		return
	}

	outcome := c.dispatch(envelope)
	monitoring.WebhookEventCounter.WithLabelValues(envelope.Type, outcome).Inc()
	ctx.JSON(http.StatusOK, gin.H{"message": "received"})
}

// dispatch 路由到对应的状态机处理器，返回用于指标的处理结果
func (c *WebhookController) dispatch(envelope webhookEnvelope) string {
	switch envelope.Type {
	case "video.upload.asset_created":
		var data uploadEventData
		if err := json.Unmarshal(envelope.Data, &data); err != nil || data.ID == "" || data.AssetID == "" {
			return "malformed"
		}
		return outcomeOf(c.VideoService.HandleUploadAssetCreated(data.ID, data.AssetID))

	case "video.asset.ready":
		var data assetEventData
		if err := json.Unmarshal(envelope.Data, &data); err != nil || data.ID == "" {
			return "malformed"
		}
		playbackIDs := make([]string, 0, len(data.PlaybackIDs))
		for _, p := range data.PlaybackIDs {
			playbackIDs = append(playbackIDs, p.ID)
		}
		return outcomeOf(c.VideoService.HandleAssetReady(data.ID, playbackIDs, data.Duration))

	case "video.asset.errored":
		var data assetEventData
		if err := json.Unmarshal(envelope.Data, &data); err != nil || data.ID == "" {
			return "malformed"
		}
		message := ""
		if len(data.Errors.Messages) > 0 {
			message = data.Errors.Messages[0]
		}
		return outcomeOf(c.VideoService.HandleAssetErrored(data.ID, message))

	default:
		// 未订阅关注之外的事件类型也会送达，确认即可
		return "ignored"
	}
}

func outcomeOf(handled bool, err error) string {
	if err != nil {
		logger.Log.Error("回调处理失败", zap.Error(err))
		return "error"
	}
	if !handled {
		return "dropped"
	}
	return "processed"
}
