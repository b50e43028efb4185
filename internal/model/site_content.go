package model

// SiteContent 后台可编辑的站点文案（首页介绍、FAQ 等）
// swagger:model SiteContent
type SiteContent struct {
	BaseModel
	Key  string `gorm:"size:100;unique;not null" json:"key"`
	Body string `gorm:"type:text" json:"body"`
}

func (SiteContent) TableName() string {
	return "site_contents"
}
