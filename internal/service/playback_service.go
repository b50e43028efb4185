package service

import (
	"context"
	"errors"

	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/util"
	"course_platform_backend/pkg/logger"
	"course_platform_backend/pkg/muxvideo"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PlaybackService 播放授权：决定一个用户对一个课时能看到什么。
// 注册（enrollment）失败是访问控制问题（403）；
// 次数用尽不是——课时详情照常返回，只是不带播放地址。
type PlaybackService struct {
	LessonRepo     *repository.LessonRepository
	ChapterRepo    *repository.ChapterRepository
	EnrollmentRepo *repository.EnrollmentRepository
	Views          *VideoViewService
	Signer         *muxvideo.Signer // 可为 nil：播放地址省略，封面退化为未签名
	Storage        *StorageService
}

func NewPlaybackService(
	lessonRepo *repository.LessonRepository,
	chapterRepo *repository.ChapterRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	views *VideoViewService,
	signer *muxvideo.Signer,
	storage *StorageService,
) *PlaybackService {
	return &PlaybackService{
		LessonRepo:     lessonRepo,
		ChapterRepo:    chapterRepo,
		EnrollmentRepo: enrollmentRepo,
		Views:          views,
		Signer:         signer,
		Storage:        storage,
	}
}

// PlaybackInfo 签名后的播放资源地址，有效期一小时
type PlaybackInfo struct {
	StreamURL    string `json:"streamUrl,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// AttachmentLink 附件的限时下载链接
type AttachmentLink struct {
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

// LessonDetail 学员课时详情。Playback 仅在视频就绪且还有观看额度时出现。
type LessonDetail struct {
	ID          uint                `json:"id"`
	CourseID    uint                `json:"courseId"`
	ChapterID   uint                `json:"chapterId"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Type        model.LessonType    `json:"type"`
	IsFree      bool                `json:"isFree"`
	MuxStatus   model.VideoStatus   `json:"muxStatus,omitempty"`
	Duration    int                 `json:"duration,omitempty"`
	ViewStatus  *ViewStatusResponse `json:"viewStatus,omitempty"`
	Playback    *PlaybackInfo       `json:"playback,omitempty"`
	PdfURL      string              `json:"pdfUrl,omitempty"`
	TextContent string              `json:"textContent,omitempty"`
	Attachments []AttachmentLink    `json:"attachments,omitempty"`
}

// loadLessonCourse 课时 -> 章节 -> 课程，返回课时与所属课程 id
func (s *PlaybackService) loadLessonCourse(lessonID uint) (*model.Lesson, uint, error) {
	lesson, err := s.LessonRepo.FindByID(lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, util.ErrLessonNotFound
		}
		return nil, 0, err
	}
	chapter, err := s.ChapterRepo.FindByID(lesson.ChapterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, util.ErrChapterNotFound
		}
		return nil, 0, err
	}
	return lesson, chapter.CourseID, nil
}

// Authorize 访问控制门：管理员与免费课时直接放行，其余要求有效注册
func (s *PlaybackService) Authorize(userID uint, lesson *model.Lesson, courseID uint, isAdmin bool) error {
	if isAdmin || lesson.IsFree {
		return nil
	}
	enrolled, err := s.EnrollmentRepo.Exists(userID, courseID)
	if err != nil {
		return err
	}
	if !enrolled {
		return util.ErrNotEnrolled
	}
	return nil
}

// GetLessonDetail 组装学员课时详情。
// 视频课时带观看额度状态；仅当视频就绪且 CanWatch 时带签名播放地址。
// 额度用尽不报错——详情照常返回，前端据 viewStatus 展示提示。
func (s *PlaybackService) GetLessonDetail(ctx context.Context, userID, lessonID uint, isAdmin bool) (*LessonDetail, error) {
	lesson, courseID, err := s.loadLessonCourse(lessonID)
	if err != nil {
		return nil, err
	}
	if err := s.Authorize(userID, lesson, courseID, isAdmin); err != nil {
		return nil, err
	}

	detail := &LessonDetail{
		ID:          lesson.ID,
		CourseID:    courseID,
		ChapterID:   lesson.ChapterID,
		Title:       lesson.Title,
		Description: lesson.Description,
		Type:        lesson.Type,
		IsFree:      lesson.IsFree,
		PdfURL:      lesson.PdfURL,
		TextContent: lesson.TextContent,
	}

	if lesson.Type == model.LessonVideo {
		detail.MuxStatus = lesson.MuxStatus
		detail.Duration = lesson.Duration

		status, err := s.Views.GetStatus(userID, lessonID, isAdmin)
		if err != nil {
			return nil, err
		}
		resp := status.APIView()
		detail.ViewStatus = &resp

		if lesson.MuxStatus == model.VideoReady && lesson.MuxPlaybackID != "" {
			detail.Playback = s.buildPlayback(lesson, status.CanWatch)
		}
	}

	attachments, err := lesson.DecodeAttachments()
	if err != nil {
		logger.Log.Warn("附件列表解析失败", zap.Uint("lessonId", lesson.ID), zap.Error(err))
	}
	for _, a := range attachments {
		link, err := s.Storage.AttachmentURL(ctx, a.URL)
		if err != nil {
			logger.Log.Warn("附件签名地址生成失败",
				zap.Uint("lessonId", lesson.ID),
				zap.String("file", a.URL),
				zap.Error(err))
			link = s.Storage.GetURL(a.URL)
		}
		detail.Attachments = append(detail.Attachments, AttachmentLink{
			Name: a.Name,
			Type: a.Type,
			URL:  link,
		})
	}

	return detail, nil
}

// buildPlayback 签发播放资源地址。
// 封面始终返回（未配置签名密钥时退化为未签名地址）；
// 播放地址仅在 canWatch 且签名密钥可用时返回。
func (s *PlaybackService) buildPlayback(lesson *model.Lesson, canWatch bool) *PlaybackInfo {
	info := &PlaybackInfo{}

	thumbToken := ""
	if s.Signer != nil {
		if t, err := s.Signer.Sign(lesson.MuxPlaybackID, muxvideo.AudienceThumbnail); err == nil {
			thumbToken = t
		} else {
			logger.Log.Warn("封面令牌签发失败", zap.Uint("lessonId", lesson.ID), zap.Error(err))
		}
	}
	info.ThumbnailURL = muxvideo.ThumbnailURL(lesson.MuxPlaybackID, thumbToken)

	if !canWatch {
		return info
	}
	if s.Signer == nil {
		logger.Log.Warn("未配置播放签名密钥，省略播放地址", zap.Uint("lessonId", lesson.ID))
		return info
	}
	token, err := s.Signer.Sign(lesson.MuxPlaybackID, muxvideo.AudienceViewer)
	if err != nil {
		logger.Log.Error("播放令牌签发失败", zap.Uint("lessonId", lesson.ID), zap.Error(err))
		return info
	}
	info.StreamURL = muxvideo.StreamURL(lesson.MuxPlaybackID, token)
	return info
}

// GetPlaybackURLs 管理端预览：不做注册校验，但要求视频已就绪且签名密钥可用
func (s *PlaybackService) GetPlaybackURLs(lessonID uint) (*PlaybackInfo, error) {
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
	if lesson.MuxStatus != model.VideoReady || lesson.MuxPlaybackID == "" {
		return nil, util.ErrLessonNotFound
	}
	if s.Signer == nil {
		return nil, util.ErrSigningNotConfigured
	}

	viewer, err := s.Signer.Sign(lesson.MuxPlaybackID, muxvideo.AudienceViewer)
	if err != nil {
		return nil, err
	}
	thumb, err := s.Signer.Sign(lesson.MuxPlaybackID, muxvideo.AudienceThumbnail)
	if err != nil {
		return nil, err
	}
	return &PlaybackInfo{
		StreamURL:    muxvideo.StreamURL(lesson.MuxPlaybackID, viewer),
		ThumbnailURL: muxvideo.ThumbnailURL(lesson.MuxPlaybackID, thumb),
	}, nil
}

// RecordView 学员上报观看进度。注册校验 + 额度记账。
// 返回的状态总是有效：额度用尽时 err 为 ErrViewLimitReached，状态仍可用于响应。
func (s *PlaybackService) RecordView(userID, lessonID uint, watchPercentage int, isAdmin bool) (*ViewStatus, error) {
	lesson, courseID, err := s.loadLessonCourse(lessonID)
	if err != nil {
		return nil, err
	}
	if err := s.Authorize(userID, lesson, courseID, isAdmin); err != nil {
		return nil, err
	}
	return s.Views.RecordAttempt(userID, lessonID, watchPercentage, isAdmin)
}

// GetViewStatus 学员查询自己的观看额度（只读，不创建记录）
func (s *PlaybackService) GetViewStatus(userID, lessonID uint, isAdmin bool) (*ViewStatus, error) {
	lesson, courseID, err := s.loadLessonCourse(lessonID)
	if err != nil {
		return nil, err
	}
	if err := s.Authorize(userID, lesson, courseID, isAdmin); err != nil {
		return nil, err
	}
	return s.Views.GetStatus(userID, lessonID, isAdmin)
}
