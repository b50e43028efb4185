package muxvideo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.mux.com"
	// 服务商调用必须有限超时，避免回调/上传链路被拖死
	defaultTimeout = 15 * time.Second
)

// Client Mux Video REST API 的轻量客户端，只覆盖本系统用到的三个接口：
// 创建直传会话、删除资产、（签名在 signer.go 中）。
type Client struct {
	tokenID     string
	tokenSecret string
	baseURL     string
	httpClient  *http.Client
}

func NewClient(tokenID, tokenSecret string) *Client {
	return &Client{
		tokenID:     tokenID,
		tokenSecret: tokenSecret,
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
	}
}

// Configured API 凭据是否就绪
func (c *Client) Configured() bool {
	return c.tokenID != "" && c.tokenSecret != ""
}

// Upload 直传会话：管理端把视频原始字节上传到 URL，
// 服务商异步转码并通过 webhook 通知结果。
type Upload struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type createUploadRequest struct {
	CORSOrigin       string           `json:"cors_origin,omitempty"`
	NewAssetSettings newAssetSettings `json:"new_asset_settings"`
}

type newAssetSettings struct {
	PlaybackPolicy []string `json:"playback_policy"`
}

type uploadEnvelope struct {
	Data Upload `json:"data"`
}

// CreateDirectUpload 创建一个要求 signed 播放策略的直传会话
func (c *Client) CreateDirectUpload(ctx context.Context, corsOrigin string) (*Upload, error) {
	body, err := json.Marshal(createUploadRequest{
		CORSOrigin: corsOrigin,
		NewAssetSettings: newAssetSettings{
			PlaybackPolicy: []string{"signed"},
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/video/v1/uploads", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.tokenID, c.tokenSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("mux create upload: status %d: %s", resp.StatusCode, string(data))
	}

	var envelope uploadEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, err
	}
	if envelope.Data.ID == "" || envelope.Data.URL == "" {
		return nil, fmt.Errorf("mux create upload: empty id or url in response")
	}
	return &envelope.Data, nil
}

// DeleteAsset 删除远端资产。404 视为已删除成功（幂等）。
func (c *Client) DeleteAsset(ctx context.Context, assetID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/video/v1/assets/"+assetID, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.tokenID, c.tokenSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("mux delete asset: status %d: %s", resp.StatusCode, string(data))
	}
	return nil
}

// SetBaseURL 测试用
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}
