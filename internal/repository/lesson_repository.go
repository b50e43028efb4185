package repository

import (
	"course_platform_backend/internal/model"

	"gorm.io/gorm"
)

type LessonRepository struct {
	DB *gorm.DB
}

func NewLessonRepository(db *gorm.DB) *LessonRepository {
	return &LessonRepository{DB: db}
}

func (r *LessonRepository) Create(lesson *model.Lesson) error {
	return r.DB.Create(lesson).Error
}

func (r *LessonRepository) FindByID(id uint) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.DB.First(&lesson, id).Error
	return &lesson, err
}

// FindByMuxUploadID 回调按外部标识反查课时。
// 按 upload id（而不是课时 id）查找，使 replace 后迟到的旧回调自然落空。
func (r *LessonRepository) FindByMuxUploadID(uploadID string) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.DB.Where("mux_upload_id = ?", uploadID).First(&lesson).Error
	return &lesson, err
}

func (r *LessonRepository) FindByMuxAssetID(assetID string) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.DB.Where("mux_asset_id = ?", assetID).First(&lesson).Error
	return &lesson, err
}

func (r *LessonRepository) FindByChapter(chapterID uint) ([]model.Lesson, error) {
	var lessons []model.Lesson
	err := r.DB.Where("chapter_id = ?", chapterID).
		Order("position ASC").
		Find(&lessons).Error
	return lessons, err
}

// NextPosition 新课时追加到章节末尾
func (r *LessonRepository) NextPosition(chapterID uint) (int, error) {
	var max *int
	err := r.DB.Model(&model.Lesson{}).
		Where("chapter_id = ?", chapterID).
		Select("MAX(position)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 1, nil
	}
	return *max + 1, nil
}

func (r *LessonRepository) Update(id uint, updates map[string]interface{}) error {
	return r.DB.Model(&model.Lesson{}).Where("id = ?", id).Updates(updates).Error
}

func (r *LessonRepository) Reorder(chapterID uint, orderedIDs []uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		for i, id := range orderedIDs {
			err := tx.Model(&model.Lesson{}).
				Where("id = ? AND chapter_id = ?", id, chapterID).
				Update("position", i+1).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *LessonRepository) Delete(id uint) error {
	return r.DB.Delete(&model.Lesson{}, id).Error
}
