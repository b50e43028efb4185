package muxvideo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigured(t *testing.T) {
	assert.True(t, NewClient("id", "secret").Configured())
	assert.False(t, NewClient("", "").Configured())
	assert.False(t, NewClient("id", "").Configured())
}

func TestCreateDirectUpload(t *testing.T) {
	var got createUploadRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/video/v1/uploads", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "token-id", user)
		require.Equal(t, "token-secret", pass)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"upload-1","url":"https://storage.example.com/upload-1"}}`))
	}))
	defer srv.Close()

	client := NewClient("token-id", "token-secret")
	client.SetBaseURL(srv.URL)

	upload, err := client.CreateDirectUpload(context.Background(), "https://admin.example.com")
	require.NoError(t, err)
	assert.Equal(t, "upload-1", upload.ID)
	assert.Equal(t, "https://storage.example.com/upload-1", upload.URL)

	assert.Equal(t, "https://admin.example.com", got.CORSOrigin)
	assert.Equal(t, []string{"signed"}, got.NewAssetSettings.PlaybackPolicy)
}

func TestCreateDirectUploadSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"messages":["bad credentials"]}}`))
	}))
	defer srv.Close()

	client := NewClient("token-id", "wrong")
	client.SetBaseURL(srv.URL)

	_, err := client.CreateDirectUpload(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestCreateDirectUploadRejectsEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	client := NewClient("token-id", "token-secret")
	client.SetBaseURL(srv.URL)

	_, err := client.CreateDirectUpload(context.Background(), "")
	assert.Error(t, err)
}

func TestDeleteAsset(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		path = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient("token-id", "token-secret")
	client.SetBaseURL(srv.URL)

	require.NoError(t, client.DeleteAsset(context.Background(), "asset-1"))
	assert.Equal(t, "/video/v1/assets/asset-1", path)
}

func TestDeleteAssetTreats404AsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient("token-id", "token-secret")
	client.SetBaseURL(srv.URL)

	assert.NoError(t, client.DeleteAsset(context.Background(), "gone"))
}

func TestDeleteAssetSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient("token-id", "token-secret")
	client.SetBaseURL(srv.URL)

	err := client.DeleteAsset(context.Background(), "asset-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}
