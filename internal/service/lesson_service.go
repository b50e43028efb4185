package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/util"
	"course_platform_backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LessonService 课时的管理端维护。播放与观看记账在 PlaybackService。
type LessonService struct {
	LessonRepo  *repository.LessonRepository
	ChapterRepo *repository.ChapterRepository
	Video       *LessonVideoService
	Storage     *StorageService
}

func NewLessonService(
	lessonRepo *repository.LessonRepository,
	chapterRepo *repository.ChapterRepository,
	video *LessonVideoService,
	storage *StorageService,
) *LessonService {
	return &LessonService{
		LessonRepo:  lessonRepo,
		ChapterRepo: chapterRepo,
		Video:       video,
		Storage:     storage,
	}
}

func (s *LessonService) Get(lessonID uint) (*model.Lesson, error) {
	lesson, err := s.LessonRepo.FindByID(lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLessonNotFound
		}
		return nil, err
	}
	return lesson, nil
}

// Create 新课时追加到章节末尾。观看次数上限至少为 1。
func (s *LessonService) Create(lesson *model.Lesson) error {
	if _, err := s.ChapterRepo.FindByID(lesson.ChapterID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrChapterNotFound
		}
		return err
	}
	if lesson.ViewLimit < 1 {
		lesson.ViewLimit = 1
	}
	position, err := s.LessonRepo.NextPosition(lesson.ChapterID)
	if err != nil {
		return err
	}
	lesson.Position = position

	// 视频课时在上传完成前不可播放
	if lesson.Type == model.LessonVideo {
		lesson.MuxStatus = model.VideoPending
	}
	return s.LessonRepo.Create(lesson)
}

// Update 更新课时元信息。视频标识与状态只能经由上传/回调链路改变。
func (s *LessonService) Update(lessonID uint, updates map[string]interface{}) error {
	if _, err := s.Get(lessonID); err != nil {
		return err
	}
	for _, forbidden := range []string{"mux_upload_id", "mux_asset_id", "mux_playback_id", "mux_status"} {
		delete(updates, forbidden)
	}
	if v, ok := updates["view_limit"]; ok {
		if limit, ok := v.(int); ok && limit < 1 {
			return fmt.Errorf("view_limit must be at least 1")
		}
	}
	return s.LessonRepo.Update(lessonID, updates)
}

func (s *LessonService) Reorder(chapterID uint, orderedIDs []uint) error {
	if _, err := s.ChapterRepo.FindByID(chapterID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrChapterNotFound
		}
		return err
	}
	return s.LessonRepo.Reorder(chapterID, orderedIDs)
}

// Delete 删除课时。先删远端视频资产，删不掉就中止整个删除，
// 保证不会留下数据库里无人引用、账单上继续计费的孤儿资产。
func (s *LessonService) Delete(ctx context.Context, lessonID uint) error {
	lesson, err := s.Get(lessonID)
	if err != nil {
		return err
	}
	if lesson.MuxAssetID != "" {
		if err := s.Video.DeleteVideo(ctx, lesson); err != nil {
			return err
		}
	}

	attachments, err := lesson.DecodeAttachments()
	if err == nil {
		for _, a := range attachments {
			if err := s.Storage.Delete(ctx, a.URL); err != nil {
				logger.Log.Warn("附件清理失败",
					zap.Uint("lessonId", lesson.ID),
					zap.String("file", a.URL),
					zap.Error(err))
			}
		}
	}
	return s.LessonRepo.Delete(lessonID)
}

// AddAttachment 上传课时附件并追加到附件列表
func (s *LessonService) AddAttachment(ctx context.Context, lessonID uint, reader io.Reader, size int64, filename, contentType string) (*model.Attachment, error) {
	lesson, err := s.Get(lessonID)
	if err != nil {
		return nil, err
	}
	if !util.IsPDF(contentType) && contentType != util.MimeOctetStream && !util.IsImage(contentType) {
		return nil, util.ErrInvalidAttachment
	}

	key := fmt.Sprintf("lessons/%d/attachments/%s%s", lessonID, uuid.New().String(), filepath.Ext(filename))
	if _, err := s.Storage.Upload(ctx, key, reader, size, contentType); err != nil {
		return nil, err
	}

	attachment := model.Attachment{
		URL:  key,
		Name: filename,
		Type: contentType,
	}
	attachments, err := lesson.DecodeAttachments()
	if err != nil {
		return nil, util.ErrInvalidAttachment
	}
	attachments = append(attachments, attachment)

	raw, err := json.Marshal(attachments)
	if err != nil {
		return nil, err
	}
	err = s.LessonRepo.Update(lessonID, map[string]interface{}{"attachments": json.RawMessage(raw)})
	if err != nil {
		return nil, err
	}
	return &attachment, nil
}

// RemoveAttachment 按存储键移除附件
func (s *LessonService) RemoveAttachment(ctx context.Context, lessonID uint, key string) error {
	lesson, err := s.Get(lessonID)
	if err != nil {
		return err
	}
	attachments, err := lesson.DecodeAttachments()
	if err != nil {
		return util.ErrInvalidAttachment
	}

	kept := attachments[:0]
	found := false
	for _, a := range attachments {
		if a.URL == key {
			found = true
			continue
		}
		kept = append(kept, a)
	}
	if !found {
		return util.ErrInvalidAttachment
	}

	if err := s.Storage.Delete(ctx, key); err != nil {
		logger.Log.Warn("附件删除失败，仍从列表移除",
			zap.Uint("lessonId", lessonID),
			zap.String("file", key),
			zap.Error(err))
	}

	raw, err := json.Marshal(kept)
	if err != nil {
		return err
	}
	return s.LessonRepo.Update(lessonID, map[string]interface{}{"attachments": json.RawMessage(raw)})
}
