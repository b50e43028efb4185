package repository

import (
	"course_platform_backend/internal/model"

	"gorm.io/gorm"
)

type SiteContentRepository struct {
	DB *gorm.DB
}

func NewSiteContentRepository(db *gorm.DB) *SiteContentRepository {
	return &SiteContentRepository{DB: db}
}

func (r *SiteContentRepository) FindByKey(key string) (*model.SiteContent, error) {
	var content model.SiteContent
	err := r.DB.Where("`key` = ?", key).First(&content).Error
	return &content, err
}

func (r *SiteContentRepository) FindAll() ([]model.SiteContent, error) {
	var contents []model.SiteContent
	err := r.DB.Order("`key` ASC").Find(&contents).Error
	return contents, err
}

// Upsert 按 key 创建或更新文案
func (r *SiteContentRepository) Upsert(key, body string) (*model.SiteContent, error) {
	var content model.SiteContent
	err := r.DB.Where(model.SiteContent{Key: key}).
		Assign(map[string]interface{}{"body": body}).
		FirstOrCreate(&content).Error
	if err != nil {
		return nil, err
	}
	content.Body = body
	return &content, nil
}
