package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/util"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CourseService 课程与章节的管理、学员侧目录组装
type CourseService struct {
	CourseRepo     *repository.CourseRepository
	ChapterRepo    *repository.ChapterRepository
	LessonRepo     *repository.LessonRepository
	EnrollmentRepo *repository.EnrollmentRepository
	Storage        *StorageService
}

func NewCourseService(
	courseRepo *repository.CourseRepository,
	chapterRepo *repository.ChapterRepository,
	lessonRepo *repository.LessonRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	storage *StorageService,
) *CourseService {
	return &CourseService{
		CourseRepo:     courseRepo,
		ChapterRepo:    chapterRepo,
		LessonRepo:     lessonRepo,
		EnrollmentRepo: enrollmentRepo,
		Storage:        storage,
	}
}

// LessonSummary 课程目录里的课时条目。
// 不暴露视频服务商的内部标识，播放信息走课时详情接口。
type LessonSummary struct {
	ID        uint              `json:"id"`
	Title     string            `json:"title"`
	Type      model.LessonType  `json:"type"`
	Position  int               `json:"position"`
	IsFree    bool              `json:"isFree"`
	Duration  int               `json:"duration,omitempty"`
	MuxStatus model.VideoStatus `json:"muxStatus,omitempty"`
}

type ChapterOutline struct {
	ID          uint            `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Position    int             `json:"position"`
	Lessons     []LessonSummary `json:"lessons"`
}

type CourseDetail struct {
	ID          uint             `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	ImageURL    string           `json:"imageUrl,omitempty"`
	Price       float64          `json:"price"`
	IsPublished bool             `json:"isPublished"`
	Enrolled    bool             `json:"enrolled"`
	Chapters    []ChapterOutline `json:"chapters"`
}

// ListPublished 学员课程列表
func (s *CourseService) ListPublished(keyword string, page, limit int) ([]model.Course, int64, error) {
	return s.CourseRepo.FindPublished(keyword, page, limit)
}

// ListAll 管理端课程列表（含未发布）
func (s *CourseService) ListAll(page, limit int) ([]model.Course, int64, error) {
	return s.CourseRepo.FindAll(page, limit)
}

// GetDetail 组装课程目录。
// 非管理员只能访问已发布课程，且目录里滤掉未发布的章节与课时。
func (s *CourseService) GetDetail(userID, courseID uint, isAdmin bool) (*CourseDetail, error) {
	course, err := s.CourseRepo.FindByIDWithContent(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	if !course.IsPublished && !isAdmin {
		return nil, util.ErrCourseNotFound
	}

	enrolled := false
	if userID != 0 {
		enrolled, err = s.EnrollmentRepo.Exists(userID, courseID)
		if err != nil {
			return nil, err
		}
	}

	detail := &CourseDetail{
		ID:          course.ID,
		Title:       course.Title,
		Description: course.Description,
		ImageURL:    course.ImageURL,
		Price:       course.Price,
		IsPublished: course.IsPublished,
		Enrolled:    enrolled,
	}
	for _, ch := range course.Chapters {
		if !ch.IsPublished && !isAdmin {
			continue
		}
		outline := ChapterOutline{
			ID:          ch.ID,
			Title:       ch.Title,
			Description: ch.Description,
			Position:    ch.Position,
			Lessons:     []LessonSummary{},
		}
		for _, l := range ch.Lessons {
			if !l.IsPublished && !isAdmin {
				continue
			}
			summary := LessonSummary{
				ID:       l.ID,
				Title:    l.Title,
				Type:     l.Type,
				Position: l.Position,
				IsFree:   l.IsFree,
			}
			if l.Type == model.LessonVideo {
				summary.Duration = l.Duration
				summary.MuxStatus = l.MuxStatus
			}
			outline.Lessons = append(outline.Lessons, summary)
		}
		detail.Chapters = append(detail.Chapters, outline)
	}
	return detail, nil
}

func (s *CourseService) Create(course *model.Course) error {
	return s.CourseRepo.Create(course)
}

func (s *CourseService) Update(courseID uint, updates map[string]interface{}) error {
	if _, err := s.CourseRepo.FindByID(courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrCourseNotFound
		}
		return err
	}
	return s.CourseRepo.Update(courseID, updates)
}

// UploadCover 上传课程封面图并更新记录
func (s *CourseService) UploadCover(ctx context.Context, courseID uint, reader io.Reader, size int64, filename, contentType string) (string, error) {
	if !util.IsImage(contentType) {
		return "", util.ErrInvalidAttachment
	}
	if _, err := s.CourseRepo.FindByID(courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", util.ErrCourseNotFound
		}
		return "", err
	}

	key := fmt.Sprintf("courses/%d/cover/%s%s", courseID, uuid.New().String(), filepath.Ext(filename))
	url, err := s.Storage.Upload(ctx, key, reader, size, contentType)
	if err != nil {
		return "", err
	}
	if err := s.CourseRepo.Update(courseID, map[string]interface{}{"image_url": url}); err != nil {
		return "", err
	}
	return url, nil
}

// Delete 删除课程。仍有课时托管着远端视频资产时拒绝，
// 避免数据库记录没了、服务商侧资产成为付费孤儿。
func (s *CourseService) Delete(courseID uint) error {
	course, err := s.CourseRepo.FindByIDWithContent(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrCourseNotFound
		}
		return err
	}
	for _, ch := range course.Chapters {
		for _, l := range ch.Lessons {
			if l.MuxAssetID != "" {
				return fmt.Errorf("%w: lesson %d still has a hosted video", util.ErrRemoteAssetDeleteFailed, l.ID)
			}
		}
	}
	return s.CourseRepo.Delete(courseID)
}

// ---- 章节 ----

func (s *CourseService) CreateChapter(chapter *model.Chapter) error {
	if _, err := s.CourseRepo.FindByID(chapter.CourseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrCourseNotFound
		}
		return err
	}
	position, err := s.ChapterRepo.NextPosition(chapter.CourseID)
	if err != nil {
		return err
	}
	chapter.Position = position
	return s.ChapterRepo.Create(chapter)
}

func (s *CourseService) UpdateChapter(chapterID uint, updates map[string]interface{}) error {
	if _, err := s.ChapterRepo.FindByID(chapterID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrChapterNotFound
		}
		return err
	}
	return s.ChapterRepo.Update(chapterID, updates)
}

// ReorderChapters 按给定顺序重排课程下的章节
func (s *CourseService) ReorderChapters(courseID uint, orderedIDs []uint) error {
	if _, err := s.CourseRepo.FindByID(courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrCourseNotFound
		}
		return err
	}
	return s.ChapterRepo.Reorder(courseID, orderedIDs)
}

// DeleteChapter 删除章节，仍有课时托管远端视频资产时拒绝
func (s *CourseService) DeleteChapter(chapterID uint) error {
	if _, err := s.ChapterRepo.FindByID(chapterID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrChapterNotFound
		}
		return err
	}
	lessons, err := s.LessonRepo.FindByChapter(chapterID)
	if err != nil {
		return err
	}
	for _, l := range lessons {
		if l.MuxAssetID != "" {
			return fmt.Errorf("%w: lesson %d still has a hosted video", util.ErrRemoteAssetDeleteFailed, l.ID)
		}
	}
	return s.ChapterRepo.Delete(chapterID)
}
