package repository

import (
	"course_platform_backend/internal/model"

	"gorm.io/gorm"
)

type ChapterRepository struct {
	DB *gorm.DB
}

func NewChapterRepository(db *gorm.DB) *ChapterRepository {
	return &ChapterRepository{DB: db}
}

func (r *ChapterRepository) Create(chapter *model.Chapter) error {
	return r.DB.Create(chapter).Error
}

func (r *ChapterRepository) FindByID(id uint) (*model.Chapter, error) {
	var chapter model.Chapter
	err := r.DB.First(&chapter, id).Error
	return &chapter, err
}

func (r *ChapterRepository) FindByCourse(courseID uint) ([]model.Chapter, error) {
	var chapters []model.Chapter
	err := r.DB.Where("course_id = ?", courseID).
		Order("position ASC").
		Find(&chapters).Error
	return chapters, err
}

// NextPosition 新章节追加到末尾
func (r *ChapterRepository) NextPosition(courseID uint) (int, error) {
	var max *int
	err := r.DB.Model(&model.Chapter{}).
		Where("course_id = ?", courseID).
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

func (r *ChapterRepository) Update(id uint, updates map[string]interface{}) error {
	return r.DB.Model(&model.Chapter{}).Where("id = ?", id).Updates(updates).Error
}

// Reorder 批量更新章节顺序
func (r *ChapterRepository) Reorder(courseID uint, orderedIDs []uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		for i, id := range orderedIDs {
			err := tx.Model(&model.Chapter{}).
				Where("id = ? AND course_id = ?", id, courseID).
				Update("position", i+1).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ChapterRepository) Delete(id uint) error {
	return r.DB.Delete(&model.Chapter{}, id).Error
}
