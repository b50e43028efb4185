package muxvideo

import (
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenAudience 播放令牌的受众。viewer 与 thumbnail 是两类互不通用的令牌。
type TokenAudience string

const (
	AudienceViewer    TokenAudience = "v"
	AudienceThumbnail TokenAudience = "t"
)

// 播放/封面令牌的固定有效期
const TokenTTL = time.Hour

// Signer 用 Mux signing key 对 playback id 签发短时效访问令牌
type Signer struct {
	keyID      string
	privateKey *rsa.PrivateKey
}

// NewSigner keyID 为 Mux signing key id，privateKeyBase64 为 base64 编码的 RSA 私钥 PEM
func NewSigner(keyID, privateKeyBase64 string) (*Signer, error) {
	pemBytes, err := base64.StdEncoding.DecodeString(privateKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("decode signing key: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return &Signer{keyID: keyID, privateKey: key}, nil
}

// Sign 为 playbackID 签发指定受众的令牌
func (s *Signer) Sign(playbackID string, aud TokenAudience) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": playbackID,
		"aud": string(aud),
		"kid": s.keyID,
		"exp": now.Add(TokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(s.privateKey)
}

// StreamURL HLS 播放地址；token 为空时返回未签名地址
func StreamURL(playbackID, token string) string {
	u := fmt.Sprintf("https://stream.mux.com/%s.m3u8", playbackID)
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	return u
}

// ThumbnailURL 封面图地址；token 为空时返回未签名地址
func ThumbnailURL(playbackID, token string) string {
	u := fmt.Sprintf("https://image.mux.com/%s/thumbnail.jpg", playbackID)
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	return u
}
