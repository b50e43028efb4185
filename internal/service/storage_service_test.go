package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"course_platform_backend/pkg/muxvideo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageUploadAndDelete(t *testing.T) {
	cfg := testStorageConfig(t)
	svc := NewStorageService(cfg)

	url, err := svc.Upload(context.Background(), "lessons/1/attachments/notes.pdf",
		strings.NewReader("%PDF-1.4"), 8, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/lessons/1/attachments/notes.pdf", url)

	data, err := os.ReadFile(filepath.Join(cfg.Storage.LocalPath, "lessons/1/attachments/notes.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	require.NoError(t, svc.Delete(context.Background(), "lessons/1/attachments/notes.pdf"))
	_, err = os.Stat(filepath.Join(cfg.Storage.LocalPath, "lessons/1/attachments/notes.pdf"))
	assert.True(t, os.IsNotExist(err))
}

func TestAttachmentURLOutlivesPlaybackToken(t *testing.T) {
	// 附件链接嵌在课时详情里，学员看完视频后还要能下载讲义，
	// 有效期必须长于播放令牌
	assert.Greater(t, attachmentURLTTL, muxvideo.TokenTTL)

	svc := NewStorageService(testStorageConfig(t))
	url, err := svc.AttachmentURL(context.Background(), "lessons/1/attachments/notes.pdf")
	require.NoError(t, err)
	// 本地存储没有签名机制，退化为公开地址
	assert.Equal(t, "/uploads/lessons/1/attachments/notes.pdf", url)
}

func TestUnknownStorageTypeFallsBackToLocal(t *testing.T) {
	cfg := testStorageConfig(t)
	cfg.Storage.Type = "s3"

	svc := NewStorageService(cfg)
	_, ok := svc.Provider.(*LocalStorageProvider)
	assert.True(t, ok)
}
