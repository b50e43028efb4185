package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/util"
	"course_platform_backend/pkg/logger"
	"course_platform_backend/pkg/muxvideo"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LessonVideoService 管理课时视频的上传与处理状态。
// 状态由服务商回调驱动：pending -> ready | error。
// 回调按外部标识（upload id / asset id）反查课时，所以乱序或
// replace 后迟到的旧回调要么落空、要么在已收敛的记录上重复同一写入，
// 两种情况都不需要去重表。
type LessonVideoService struct {
	LessonRepo  *repository.LessonRepository
	ChapterRepo *repository.ChapterRepository
	Mux         *muxvideo.Client
	Signer      *muxvideo.Signer // 可为 nil，事件里退化为未签名封面地址
	Hub         *EventHub
}

func NewLessonVideoService(
	lessonRepo *repository.LessonRepository,
	chapterRepo *repository.ChapterRepository,
	mux *muxvideo.Client,
	signer *muxvideo.Signer,
	hub *EventHub,
) *LessonVideoService {
	return &LessonVideoService{
		LessonRepo:  lessonRepo,
		ChapterRepo: chapterRepo,
		Mux:         mux,
		Signer:      signer,
		Hub:         hub,
	}
}

// UploadSession 返回给管理端的直传会话
type UploadSession struct {
	UploadID  string `json:"uploadId"`
	UploadURL string `json:"uploadUrl"`
}

// BeginUpload 为课时创建（或替换）视频的直传会话。
// 已有资产时先尽力删除远端旧资产——删不掉只记日志，不阻塞新上传；
// 随后原子清空三个 Mux 标识并回到 pending，旧回调从此无处命中。
func (s *LessonVideoService) BeginUpload(ctx context.Context, lessonID uint, corsOrigin string) (*UploadSession, error) {
	if !s.Mux.Configured() {
		return nil, util.ErrProviderNotConfigured
	}

	lesson, err := s.LessonRepo.FindByID(lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLessonNotFound
		}
		return nil, err
	}
	if lesson.Type != model.LessonVideo {
		return nil, util.ErrNotAVideoLesson
	}

	if lesson.MuxAssetID != "" {
		if err := s.Mux.DeleteAsset(ctx, lesson.MuxAssetID); err != nil {
			logger.Log.Warn("replace: 旧资产删除失败，继续创建新上传",
				zap.Uint("lessonId", lesson.ID),
				zap.String("assetId", lesson.MuxAssetID),
				zap.Error(err))
		}
	}

	upload, err := s.Mux.CreateDirectUpload(ctx, corsOrigin)
	if err != nil {
		return nil, fmt.Errorf("create direct upload: %w", err)
	}

	err = s.LessonRepo.Update(lesson.ID, map[string]interface{}{
		"mux_upload_id":   upload.ID,
		"mux_asset_id":    "",
		"mux_playback_id": "",
		"mux_status":      model.VideoPending,
		"duration":        0,
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("视频直传会话已创建",
		zap.Uint("lessonId", lesson.ID),
		zap.String("uploadId", upload.ID))
	return &UploadSession{UploadID: upload.ID, UploadURL: upload.URL}, nil
}

// HandleUploadAssetCreated 上传完成、资产已建立（video.upload.asset_created）。
// 找不到 upload id 说明回调属于被替换的旧上传，静默丢弃。
// handled=false 表示丢弃。
func (s *LessonVideoService) HandleUploadAssetCreated(uploadID, assetID string) (bool, error) {
	lesson, err := s.LessonRepo.FindByMuxUploadID(uploadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Log.Info("丢弃无归属的 upload 回调", zap.String("uploadId", uploadID))
			return false, nil
		}
		return false, err
	}

	err = s.LessonRepo.Update(lesson.ID, map[string]interface{}{
		"mux_asset_id": assetID,
	})
	if err != nil {
		return false, err
	}
	logger.Log.Info("视频资产已建立",
		zap.Uint("lessonId", lesson.ID),
		zap.String("assetId", assetID))
	return true, nil
}

// HandleAssetReady 转码完成（video.asset.ready）。
// 服务商偶见 ready 回调不带 playback id——此时保持 pending 并告警，
// 绝不带着空 playback id 进入 ready。
func (s *LessonVideoService) HandleAssetReady(assetID string, playbackIDs []string, durationSeconds float64) (bool, error) {
	lesson, err := s.LessonRepo.FindByMuxAssetID(assetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Log.Info("丢弃无归属的 asset 回调", zap.String("assetId", assetID))
			return false, nil
		}
		return false, err
	}

	if len(playbackIDs) == 0 {
		logger.Log.Warn("ready 回调缺少 playback id，课时保持 pending",
			zap.Uint("lessonId", lesson.ID),
			zap.String("assetId", assetID))
		return false, nil
	}

	duration := int(math.Round(durationSeconds))
	err = s.LessonRepo.Update(lesson.ID, map[string]interface{}{
		"mux_playback_id": playbackIDs[0],
		"mux_status":      model.VideoReady,
		"duration":        duration,
	})
	if err != nil {
		return false, err
	}

	logger.Log.Info("视频转码完成",
		zap.Uint("lessonId", lesson.ID),
		zap.String("playbackId", playbackIDs[0]),
		zap.Int("duration", duration))
	s.publishStatus(lesson, model.VideoReady, playbackIDs[0], duration)
	return true, nil
}

// HandleAssetErrored 转码失败（video.asset.errored）
func (s *LessonVideoService) HandleAssetErrored(assetID, message string) (bool, error) {
	lesson, err := s.LessonRepo.FindByMuxAssetID(assetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Log.Info("丢弃无归属的 asset 回调", zap.String("assetId", assetID))
			return false, nil
		}
		return false, err
	}

	err = s.LessonRepo.Update(lesson.ID, map[string]interface{}{
		"mux_status": model.VideoError,
	})
	if err != nil {
		return false, err
	}

	logger.Log.Error("视频转码失败",
		zap.Uint("lessonId", lesson.ID),
		zap.String("assetId", assetID),
		zap.String("message", message))
	s.publishStatus(lesson, model.VideoError, "", 0)
	return true, nil
}

// DeleteVideo 删除课时的远端资产并清空视频字段。
// 远端删除失败时返回错误、不动本地记录——调用方（课时删除）据此中止，
// 避免数据库先删、远端资产沦为孤儿。
func (s *LessonVideoService) DeleteVideo(ctx context.Context, lesson *model.Lesson) error {
	if lesson.MuxAssetID != "" {
		if !s.Mux.Configured() {
			return util.ErrProviderNotConfigured
		}
		if err := s.Mux.DeleteAsset(ctx, lesson.MuxAssetID); err != nil {
			logger.Log.Error("远端资产删除失败",
				zap.Uint("lessonId", lesson.ID),
				zap.String("assetId", lesson.MuxAssetID),
				zap.Error(err))
			return fmt.Errorf("%w: %v", util.ErrRemoteAssetDeleteFailed, err)
		}
	}

	// 回到 pending：视频课时没有可播资产时与新建课时同态，
	// ready 必须伴随非空 playback id。
	return s.LessonRepo.Update(lesson.ID, map[string]interface{}{
		"mux_upload_id":   "",
		"mux_asset_id":    "",
		"mux_playback_id": "",
		"mux_status":      model.VideoPending,
		"duration":        0,
	})
}

// publishStatus 向订阅了所属课程的后台会话广播状态变化。
// 广播是尽力而为：任何失败只影响实时性，不影响状态机本身。
func (s *LessonVideoService) publishStatus(lesson *model.Lesson, status model.VideoStatus, playbackID string, duration int) {
	if s.Hub == nil {
		return
	}
	chapter, err := s.ChapterRepo.FindByID(lesson.ChapterID)
	if err != nil {
		logger.Log.Warn("无法确定课时所属课程，跳过事件广播",
			zap.Uint("lessonId", lesson.ID), zap.Error(err))
		return
	}

	data := LessonEventData{
		MuxStatus:  status,
		PlaybackID: playbackID,
		Duration:   duration,
	}
	if playbackID != "" {
		token := ""
		if s.Signer != nil {
			if t, err := s.Signer.Sign(playbackID, muxvideo.AudienceThumbnail); err == nil {
				token = t
			} else {
				logger.Log.Warn("封面令牌签发失败，退化为未签名地址", zap.Error(err))
			}
		}
		data.ThumbnailURL = muxvideo.ThumbnailURL(playbackID, token)
	}

	s.Hub.Publish(LessonEvent{
		Type:     EventLessonUpdated,
		LessonID: lesson.ID,
		CourseID: chapter.CourseID,
		Data:     data,
	})
}
