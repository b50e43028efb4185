package model

import "time"

// VideoView 记录某用户对某课时的观看消耗
// (user_id, lesson_id) 复合唯一；首次播放尝试时懒创建，只随用户或课时级联删除。
// swagger:model VideoView
type VideoView struct {
	BaseModel
	UserID   uint `gorm:"uniqueIndex:idx_video_view_user_lesson;type:bigint unsigned;not null" json:"userId"`
	LessonID uint `gorm:"uniqueIndex:idx_video_view_user_lesson;type:bigint unsigned;not null" json:"lessonId"`

	// ViewCount 已消耗的完整观看次数，只增不减
	ViewCount int `gorm:"default:0;not null" json:"viewCount"`

	// CustomViewLimit 管理员为该用户单独设置的上限；nil 表示无覆盖，
	// 0 是合法值（完全禁止该用户观看），与 nil 含义不同。
	CustomViewLimit *int `json:"customViewLimit"`

	// LastViewedAt 每次播放尝试都会刷新，无论是否计入观看次数
	LastViewedAt time.Time `json:"lastViewedAt"`
}

func (VideoView) TableName() string {
	return "video_views"
}
