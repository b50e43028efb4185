package repository

import (
	"course_platform_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type VideoViewRepository struct {
	DB *gorm.DB
}

func NewVideoViewRepository(db *gorm.DB) *VideoViewRepository {
	return &VideoViewRepository{DB: db}
}

// FindByUserAndLesson 只读查询，不存在时返回 gorm.ErrRecordNotFound
func (r *VideoViewRepository) FindByUserAndLesson(userID, lessonID uint) (*model.VideoView, error) {
	var view model.VideoView
	err := r.DB.Where("user_id = ? AND lesson_id = ?", userID, lessonID).
		First(&view).Error
	return &view, err
}

// GetOrCreate 懒创建观看记录（首次播放尝试时）。
// 并发的首次播放可能同时走到插入并撞上唯一索引，此时重读已有记录即可。
func (r *VideoViewRepository) GetOrCreate(userID, lessonID uint) (*model.VideoView, error) {
	var view model.VideoView
	err := r.DB.Where(model.VideoView{UserID: userID, LessonID: lessonID}).
		Attrs(model.VideoView{LastViewedAt: time.Now()}).
		FirstOrCreate(&view).Error
	if err != nil {
		if ferr := r.DB.Where("user_id = ? AND lesson_id = ?", userID, lessonID).
			First(&view).Error; ferr == nil {
			return &view, nil
		}
		return nil, err
	}
	return &view, nil
}

// TouchLastViewed 刷新最近观看时间，不影响计数
func (r *VideoViewRepository) TouchLastViewed(userID, lessonID uint) error {
	return r.DB.Model(&model.VideoView{}).
		Where("user_id = ? AND lesson_id = ?", userID, lessonID).
		Update("last_viewed_at", time.Now()).
		Error
}

// IncrementIfBelow 原子条件自增：仅当 view_count < limit 时 +1。
// 并发的完整观看通过这条 UPDATE 串行化，检查和自增之间没有竞态窗口。
// 返回是否自增成功。
func (r *VideoViewRepository) IncrementIfBelow(userID, lessonID uint, limit int) (bool, error) {
	res := r.DB.Model(&model.VideoView{}).
		Where("user_id = ? AND lesson_id = ? AND view_count < ?", userID, lessonID, limit).
		Updates(map[string]interface{}{
			"view_count":     gorm.Expr("view_count + 1"),
			"last_viewed_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Increment 无条件自增（管理员不受上限约束）
func (r *VideoViewRepository) Increment(userID, lessonID uint) error {
	return r.DB.Model(&model.VideoView{}).
		Where("user_id = ? AND lesson_id = ?", userID, lessonID).
		Updates(map[string]interface{}{
			"view_count":     gorm.Expr("view_count + 1"),
			"last_viewed_at": time.Now(),
		}).Error
}

// SetCustomLimit 设置管理员覆盖上限；0 合法，表示禁止观看
func (r *VideoViewRepository) SetCustomLimit(userID, lessonID uint, limit int) (*model.VideoView, error) {
	view, err := r.GetOrCreate(userID, lessonID)
	if err != nil {
		return nil, err
	}
	err = r.DB.Model(&model.VideoView{}).
		Where("id = ?", view.ID).
		Update("custom_view_limit", limit).
		Error
	if err != nil {
		return nil, err
	}
	view.CustomViewLimit = &limit
	return view, nil
}

// ClearCustomLimit 清除覆盖，回落到课时默认上限；不触碰 view_count
func (r *VideoViewRepository) ClearCustomLimit(userID, lessonID uint) error {
	return r.DB.Model(&model.VideoView{}).
		Where("user_id = ? AND lesson_id = ?", userID, lessonID).
		Update("custom_view_limit", nil).
		Error
}

// ListByLesson 管理端查看某课时所有学员的观看情况
func (r *VideoViewRepository) ListByLesson(lessonID uint, page, limit int) ([]model.VideoView, int64, error) {
	var views []model.VideoView
	var total int64

	query := r.DB.Model(&model.VideoView{}).Where("lesson_id = ?", lessonID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("last_viewed_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&views).Error
	return views, total, err
}
