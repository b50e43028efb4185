package model

import "encoding/json"

type LessonType string

const (
	LessonVideo LessonType = "video"
	LessonPDF   LessonType = "pdf"
	LessonText  LessonType = "text"
)

// VideoStatus 视频处理状态：pending -> ready | error
// ready/error 是单次上传的终态，重新上传会先清空标识并回到 pending
type VideoStatus string

const (
	VideoPending VideoStatus = "pending"
	VideoReady   VideoStatus = "ready"
	VideoError   VideoStatus = "error"
)

// Attachment 课时附件（存储在 lessons.attachments JSON 列中）
type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// swagger:model Lesson
type Lesson struct {
	BaseModel
	ChapterID   uint       `gorm:"index;type:bigint unsigned;not null" json:"chapterId"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Position    int        `gorm:"default:0" json:"position"`
	IsPublished bool       `gorm:"default:false" json:"isPublished"`
	Type        LessonType `gorm:"size:20;default:'video';not null" json:"type"`
	IsFree      bool       `gorm:"default:false" json:"isFree"`

	// ViewLimit 非管理员默认可完整观看的次数，>= 1
	ViewLimit int `gorm:"default:2;not null" json:"viewLimit"`

	// 视频字段仅在 Type == video 时有意义。
	// 标识单调推进：uploadId -> assetId -> playbackId；replace 时全部清空。
	MuxUploadID   string      `gorm:"size:255;index" json:"muxUploadId,omitempty"`
	MuxAssetID    string      `gorm:"size:255;index" json:"muxAssetId,omitempty"`
	MuxPlaybackID string      `gorm:"size:255" json:"muxPlaybackId,omitempty"`
	MuxStatus     VideoStatus `gorm:"size:20;default:'ready';not null" json:"muxStatus"`
	Duration      int         `gorm:"default:0" json:"duration,omitempty"` // 秒，ready 时写入

	PdfURL      string          `gorm:"size:255" json:"pdfUrl,omitempty"`
	TextContent string          `gorm:"type:text" json:"textContent,omitempty"`
	Attachments json.RawMessage `gorm:"type:json" json:"attachments,omitempty"` // []Attachment
}

func (Lesson) TableName() string {
	return "lessons"
}

// DecodeAttachments 解析附件列表，列为空时返回 nil
func (l *Lesson) DecodeAttachments() ([]Attachment, error) {
	if len(l.Attachments) == 0 {
		return nil, nil
	}
	var list []Attachment
	if err := json.Unmarshal(l.Attachments, &list); err != nil {
		return nil, err
	}
	return list, nil
}
