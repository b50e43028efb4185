package service

import (
	"errors"

	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/util"

	"gorm.io/gorm"
)

// SiteContentService 站点文案（首页介绍、FAQ 等）的读写
type SiteContentService struct {
	ContentRepo *repository.SiteContentRepository
}

func NewSiteContentService(contentRepo *repository.SiteContentRepository) *SiteContentService {
	return &SiteContentService{ContentRepo: contentRepo}
}

func (s *SiteContentService) Get(key string) (*model.SiteContent, error) {
	content, err := s.ContentRepo.FindByKey(key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrContentNotFound
		}
		return nil, err
	}
	return content, nil
}

func (s *SiteContentService) List() ([]model.SiteContent, error) {
	return s.ContentRepo.FindAll()
}

// Set 写入（或创建）指定 key 的文案
func (s *SiteContentService) Set(key, body string) (*model.SiteContent, error) {
	return s.ContentRepo.Upsert(key, body)
}
