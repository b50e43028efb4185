package util

import "errors"

var (
	ErrUserNotFound      = errors.New("用户不存在")
	ErrEmailRegistered   = errors.New("该邮箱已被注册")
	ErrCourseNotFound    = errors.New("course not found")
	ErrChapterNotFound   = errors.New("chapter not found")
	ErrLessonNotFound    = errors.New("lesson not found")
	ErrNotEnrolled       = errors.New("not enrolled in this course")
	ErrAlreadyEnrolled   = errors.New("already enrolled in this course")
	ErrNotAVideoLesson   = errors.New("lesson is not a video lesson")
	ErrViewLimitReached  = errors.New("view limit reached")
	ErrContentNotFound   = errors.New("site content not found")
	ErrInvalidAttachment = errors.New("invalid attachment file")

	// 视频服务商相关
	ErrProviderNotConfigured   = errors.New("video provider credentials missing")
	ErrSigningNotConfigured    = errors.New("playback signing key missing")
	ErrRemoteAssetDeleteFailed = errors.New("remote video asset deletion failed")
)
