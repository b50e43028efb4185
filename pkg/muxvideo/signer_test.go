package muxvideo

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return key, base64.StdEncoding.EncodeToString(pemBytes)
}

func TestNewSignerRejectsBadKey(t *testing.T) {
	_, err := NewSigner("key-1", "not base64!!!")
	assert.Error(t, err)

	_, err = NewSigner("key-1", base64.StdEncoding.EncodeToString([]byte("not a pem")))
	assert.Error(t, err)
}

func TestSignProducesVerifiableToken(t *testing.T) {
	key, encoded := newTestKey(t)
	signer, err := NewSigner("key-1", encoded)
	require.NoError(t, err)

	raw, err := signer.Sign("pb-1", AudienceViewer)
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	require.NoError(t, err)
	require.True(t, token.Valid)

	assert.Equal(t, "pb-1", claims["sub"])
	assert.Equal(t, "v", claims["aud"])
	assert.Equal(t, "key-1", claims["kid"])
	assert.NotZero(t, claims["exp"])
}

func TestAudiencesAreDistinct(t *testing.T) {
	_, encoded := newTestKey(t)
	signer, err := NewSigner("key-1", encoded)
	require.NoError(t, err)

	viewer, err := signer.Sign("pb-1", AudienceViewer)
	require.NoError(t, err)
	thumb, err := signer.Sign("pb-1", AudienceThumbnail)
	require.NoError(t, err)
	assert.NotEqual(t, viewer, thumb)
}

func TestResourceURLs(t *testing.T) {
	assert.Equal(t, "https://stream.mux.com/pb-1.m3u8", StreamURL("pb-1", ""))
	assert.Equal(t, "https://image.mux.com/pb-1/thumbnail.jpg", ThumbnailURL("pb-1", ""))

	signed := StreamURL("pb-1", "abc+def")
	assert.True(t, strings.HasPrefix(signed, "https://stream.mux.com/pb-1.m3u8?token="))
	assert.NotContains(t, signed, "+", "token 需要做 query 转义")
}
