package service

import (
	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/util"
	"course_platform_backend/pkg/logger"
	"course_platform_backend/pkg/monitoring"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// VideoViewService 观看次数台账：跟踪并限制每个用户对每节视频课的完整观看次数。
//
// 只有观看进度 >= 99% 的播放才消耗次数，拖动预览不计；一次调用最多计 1 次，
// 重复事件不会重复扣减。
type VideoViewService struct {
	ViewRepo   *repository.VideoViewRepository
	LessonRepo *repository.LessonRepository
}

func NewVideoViewService(viewRepo *repository.VideoViewRepository, lessonRepo *repository.LessonRepository) *VideoViewService {
	return &VideoViewService{
		ViewRepo:   viewRepo,
		LessonRepo: lessonRepo,
	}
}

// ViewStatus 某用户对某课时的观看配额。
// Unlimited 是内部的"无上限"表示，只在序列化时折算成哨兵值。
type ViewStatus struct {
	ViewCount int
	Limit     int
	Unlimited bool
	CanWatch  bool
	Remaining int
}

// ViewStatusResponse API 响应形态，管理员的无上限显示为固定哨兵值
// swagger:model ViewStatusResponse
type ViewStatusResponse struct {
	ViewCount      int  `json:"viewCount"`
	EffectiveLimit int  `json:"effectiveLimit"`
	CanWatch       bool `json:"canWatch"`
	RemainingViews int  `json:"remainingViews"`
}

// APIView 序列化边界：无上限折算为哨兵值 999
func (s *ViewStatus) APIView() ViewStatusResponse {
	if s.Unlimited {
		return ViewStatusResponse{
			ViewCount:      s.ViewCount,
			EffectiveLimit: util.AdminViewLimitSentinel,
			CanWatch:       true,
			RemainingViews: util.AdminViewLimitSentinel,
		}
	}
	return ViewStatusResponse{
		ViewCount:      s.ViewCount,
		EffectiveLimit: s.Limit,
		CanWatch:       s.CanWatch,
		RemainingViews: s.Remaining,
	}
}

// resolveLimit 有效上限：管理员无上限；否则覆盖值优先于课时默认值
func resolveLimit(lesson *model.Lesson, view *model.VideoView, isAdmin bool) (int, bool) {
	if isAdmin {
		return 0, true
	}
	if view != nil && view.CustomViewLimit != nil {
		return *view.CustomViewLimit, false
	}
	return lesson.ViewLimit, false
}

func buildStatus(viewCount, limit int, unlimited bool) *ViewStatus {
	status := &ViewStatus{
		ViewCount: viewCount,
		Limit:     limit,
		Unlimited: unlimited,
	}
	if unlimited {
		status.CanWatch = true
		return status
	}
	status.CanWatch = viewCount < limit
	status.Remaining = limit - viewCount
	if status.Remaining < 0 {
		status.Remaining = 0
	}
	return status
}

// GetStatus 只读查询观看状态，不会创建记录
func (s *VideoViewService) GetStatus(userID, lessonID uint, isAdmin bool) (*ViewStatus, error) {
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

	view, err := s.ViewRepo.FindByUserAndLesson(userID, lessonID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		view = nil
	}

	viewCount := 0
	if view != nil {
		viewCount = view.ViewCount
	}

	limit, unlimited := resolveLimit(lesson, view, isAdmin)
	return buildStatus(viewCount, limit, unlimited), nil
}

// RecordAttempt 记录一次播放尝试。
//
// 无论结果如何 lastViewedAt 都会刷新；watchPercentage >= 99 视为一次完整观看，
// 此时非管理员在次数耗尽后返回 ErrViewLimitReached（同时带回当前状态）。
// 自增通过条件 UPDATE 原子执行，并发尝试不会超扣。
func (s *VideoViewService) RecordAttempt(userID, lessonID uint, watchPercentage int, isAdmin bool) (*ViewStatus, error) {
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

	view, err := s.ViewRepo.GetOrCreate(userID, lessonID)
	if err != nil {
		return nil, err
	}

	limit, unlimited := resolveLimit(lesson, view, isAdmin)

	// 未看完：只刷新最近观看时间，不消耗次数
	if watchPercentage < util.CompletedViewThreshold {
		if err := s.ViewRepo.TouchLastViewed(userID, lessonID); err != nil {
			return nil, err
		}
		return buildStatus(view.ViewCount, limit, unlimited), nil
	}

	if unlimited {
		if err := s.ViewRepo.Increment(userID, lessonID); err != nil {
			return nil, err
		}
		return buildStatus(view.ViewCount+1, limit, unlimited), nil
	}

	incremented, err := s.ViewRepo.IncrementIfBelow(userID, lessonID, limit)
	if err != nil {
		return nil, err
	}

	if !incremented {
		// 次数已耗尽：lastViewedAt 仍要刷新，随后以带状态的拒绝返回
		if err := s.ViewRepo.TouchLastViewed(userID, lessonID); err != nil {
			return nil, err
		}
		current, err := s.ViewRepo.FindByUserAndLesson(userID, lessonID)
		if err != nil {
			return nil, err
		}
		monitoring.ViewRejectedCounter.Inc()
		logger.Log.Info("view attempt rejected, limit reached",
			zap.Uint("userId", userID),
			zap.Uint("lessonId", lessonID),
			zap.Int("viewCount", current.ViewCount),
			zap.Int("limit", limit))
		return buildStatus(current.ViewCount, limit, false), util.ErrViewLimitReached
	}

	current, err := s.ViewRepo.FindByUserAndLesson(userID, lessonID)
	if err != nil {
		return nil, err
	}
	return buildStatus(current.ViewCount, limit, false), nil
}

// SetOverride 管理员为某用户单独设置上限；0 合法（禁止观看），与未设置不同
func (s *VideoViewService) SetOverride(userID, lessonID uint, limit int) (*model.VideoView, error) {
	if _, err := s.LessonRepo.FindByID(lessonID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLessonNotFound
		}
		return nil, err
	}
	return s.ViewRepo.SetCustomLimit(userID, lessonID, limit)
}

// ClearOverride 清除覆盖，回落到课时默认上限
func (s *VideoViewService) ClearOverride(userID, lessonID uint) error {
	return s.ViewRepo.ClearCustomLimit(userID, lessonID)
}

// ListByLesson 管理端查看某课时的观看消耗情况
func (s *VideoViewService) ListByLesson(lessonID uint, page, limit int) ([]model.VideoView, int64, error) {
	return s.ViewRepo.ListByLesson(lessonID, page, limit)
}
