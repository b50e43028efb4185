package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/util"
	"course_platform_backend/pkg/muxvideo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMuxAPI 顶替视频服务商的 REST 端点
type fakeMuxAPI struct {
	mu           sync.Mutex
	deleted      []string
	deleteStatus int // 0 表示 204
	uploadStatus int // 0 表示 201
}

func (f *fakeMuxAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/video/v1/uploads":
			if f.uploadStatus != 0 {
				w.WriteHeader(f.uploadStatus)
				return
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"data":{"id":"upload-new","url":"https://storage.example.com/upload-new"}}`))

		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/video/v1/assets/"):
			f.mu.Lock()
			f.deleted = append(f.deleted, strings.TrimPrefix(r.URL.Path, "/video/v1/assets/"))
			f.mu.Unlock()
			if f.deleteStatus != 0 {
				w.WriteHeader(f.deleteStatus)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (f *fakeMuxAPI) deletedAssets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func newVideoServiceForTest(t *testing.T, f *fixtures, api *fakeMuxAPI) (*LessonVideoService, *EventHub) {
	t.Helper()

	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	client := muxvideo.NewClient("token-id", "token-secret")
	client.SetBaseURL(srv.URL)

	hub := NewEventHub(nil)
	svc := NewLessonVideoService(
		repository.NewLessonRepository(f.db),
		repository.NewChapterRepository(f.db),
		client,
		nil,
		hub,
	)
	return svc, hub
}

func reloadLesson(t *testing.T, f *fixtures) *model.Lesson {
	t.Helper()
	var lesson model.Lesson
	require.NoError(t, f.db.First(&lesson, f.lesson.ID).Error)
	return &lesson
}

func TestBeginUploadCreatesSession(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)
	svc, _ := newVideoServiceForTest(t, f, &fakeMuxAPI{})

	session, err := svc.BeginUpload(context.Background(), f.lesson.ID, "https://admin.example.com")
	require.NoError(t, err)
	assert.Equal(t, "upload-new", session.UploadID)
	assert.Equal(t, "https://storage.example.com/upload-new", session.UploadURL)

	lesson := reloadLesson(t, f)
	assert.Equal(t, "upload-new", lesson.MuxUploadID)
	assert.Equal(t, model.VideoPending, lesson.MuxStatus)
	assert.Empty(t, lesson.MuxAssetID)
	assert.Empty(t, lesson.MuxPlaybackID)
	assert.Zero(t, lesson.Duration)
}

func TestBeginUploadReplaceClearsOldIdentifiers(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)
	api := &fakeMuxAPI{}
	svc, _ := newVideoServiceForTest(t, f, api)

	require.NoError(t, db.Model(f.lesson).Updates(map[string]interface{}{
		"mux_upload_id":   "upload-old",
		"mux_asset_id":    "asset-old",
		"mux_playback_id": "pb-old",
		"mux_status":      model.VideoReady,
		"duration":        300,
	}).Error)

	_, err := svc.BeginUpload(context.Background(), f.lesson.ID, "")
	require.NoError(t, err)

	// 旧资产已请求删除，三个标识全部换新/清空
	assert.Equal(t, []string{"asset-old"}, api.deletedAssets())
	lesson := reloadLesson(t, f)
	assert.Equal(t, "upload-new", lesson.MuxUploadID)
	assert.Empty(t, lesson.MuxAssetID)
	assert.Empty(t, lesson.MuxPlaybackID)
	assert.Equal(t, model.VideoPending, lesson.MuxStatus)
	assert.Zero(t, lesson.Duration)
}

func TestBeginUploadContinuesWhenOldAssetDeleteFails(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)
	svc, _ := newVideoServiceForTest(t, f, &fakeMuxAPI{deleteStatus: http.StatusInternalServerError})

	require.NoError(t, db.Model(f.lesson).Updates(map[string]interface{}{
		"mux_asset_id": "asset-old",
	}).Error)

	// replace 时旧资产删除是尽力而为，失败不阻塞新上传
	session, err := svc.BeginUpload(context.Background(), f.lesson.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "upload-new", session.UploadID)
}

func TestBeginUploadRequiresCredentials(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)

	hub := NewEventHub(nil)
	svc := NewLessonVideoService(
		repository.NewLessonRepository(db),
		repository.NewChapterRepository(db),
		muxvideo.NewClient("", ""),
		nil,
		hub,
	)

	_, err := svc.BeginUpload(context.Background(), f.lesson.ID, "")
	assert.ErrorIs(t, err, util.ErrProviderNotConfigured)
}

func TestBeginUploadRejectsNonVideoLessons(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)
	svc, _ := newVideoServiceForTest(t, f, &fakeMuxAPI{})

	text := &model.Lesson{ChapterID: f.chapter.ID, Title: "讲义", Type: model.LessonText, ViewLimit: 1}
	require.NoError(t, db.Create(text).Error)

	_, err := svc.BeginUpload(context.Background(), text.ID, "")
	assert.ErrorIs(t, err, util.ErrNotAVideoLesson)
}

func TestUploadAssetCreatedBindsAsset(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)
	svc, _ := newVideoServiceForTest(t, f, &fakeMuxAPI{})

	require.NoError(t, db.Model(f.lesson).Updates(map[string]interface{}{
		"mux_upload_id": "upload-1",
		"mux_status":    model.VideoPending,
	}).Error)

	handled, err := svc.HandleUploadAssetCreated("upload-1", "asset-1")
	require.NoError(t, err)
	assert.True(t, handled)

	lesson := reloadLesson(t, f)
	assert.Equal(t, "asset-1", lesson.MuxAssetID)
	assert.Equal(t, model.VideoPending, lesson.MuxStatus)
}

func TestStaleCallbacksAreDropped(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)
	svc, _ := newVideoServiceForTest(t, f, &fakeMuxAPI{})

	// replace 之后迟到的旧回调按外部标识反查会落空，静默丢弃
	handled, err := svc.HandleUploadAssetCreated("upload-stale", "asset-stale")
	require.NoError(t, err)
	assert.False(t, handled)

	handled, err = svc.HandleAssetReady("asset-stale", []string{"pb-stale"}, 60)
	require.NoError(t, err)
	assert.False(t, handled)

	handled, err = svc.HandleAssetErrored("asset-stale", "boom")
	require.NoError(t, err)
	assert.False(t, handled)

	// 现有课时不受影响
	lesson := reloadLesson(t, f)
	assert.Empty(t, lesson.MuxPlaybackID)
}

func TestAssetReadyCompletesStateMachine(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)
	svc, hub := newVideoServiceForTest(t, f, &fakeMuxAPI{})

	require.NoError(t, db.Model(f.lesson).Updates(map[string]interface{}{
		"mux_upload_id": "upload-1",
		"mux_asset_id":  "asset-1",
		"mux_status":    model.VideoPending,
	}).Error)

	sub := hub.Subscribe(f.course.ID)
	defer hub.Unsubscribe(sub)

	handled, err := svc.HandleAssetReady("asset-1", []string{"pb-1", "pb-extra"}, 123.6)
	require.NoError(t, err)
	assert.True(t, handled)

	lesson := reloadLesson(t, f)
	assert.Equal(t, model.VideoReady, lesson.MuxStatus)
	assert.Equal(t, "pb-1", lesson.MuxPlaybackID)
	assert.Equal(t, 124, lesson.Duration) // 四舍五入到秒

	// 状态变化广播给课程订阅者
	select {
	case event := <-sub.Ch:
		assert.Equal(t, EventLessonUpdated, event.Type)
		assert.Equal(t, f.lesson.ID, event.LessonID)
		assert.Equal(t, f.course.ID, event.CourseID)
		assert.Equal(t, model.VideoReady, event.Data.MuxStatus)
		assert.Equal(t, "pb-1", event.Data.PlaybackID)
	default:
		t.Fatal("期望收到 lesson:updated 事件")
	}
}

func TestAssetReadyWithoutPlaybackIDsStaysPending(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)
	svc, _ := newVideoServiceForTest(t, f, &fakeMuxAPI{})

	require.NoError(t, db.Model(f.lesson).Updates(map[string]interface{}{
		"mux_asset_id": "asset-1",
		"mux_status":   model.VideoPending,
	}).Error)

	// 异常回调：ready 但没有 playback id，绝不能进入 ready 状态
	handled, err := svc.HandleAssetReady("asset-1", nil, 60)
	require.NoError(t, err)
	assert.False(t, handled)

	lesson := reloadLesson(t, f)
	assert.Equal(t, model.VideoPending, lesson.MuxStatus)
	assert.Empty(t, lesson.MuxPlaybackID)
}

func TestAssetErroredMarksLesson(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)
	svc, hub := newVideoServiceForTest(t, f, &fakeMuxAPI{})

	require.NoError(t, db.Model(f.lesson).Updates(map[string]interface{}{
		"mux_asset_id": "asset-1",
		"mux_status":   model.VideoPending,
	}).Error)

	sub := hub.Subscribe(f.course.ID)
	defer hub.Unsubscribe(sub)

	handled, err := svc.HandleAssetErrored("asset-1", "input file corrupt")
	require.NoError(t, err)
	assert.True(t, handled)

	lesson := reloadLesson(t, f)
	assert.Equal(t, model.VideoError, lesson.MuxStatus)

	select {
	case event := <-sub.Ch:
		assert.Equal(t, model.VideoError, event.Data.MuxStatus)
	default:
		t.Fatal("期望收到 lesson:updated 事件")
	}
}

func TestDeleteVideoAbortsOnRemoteFailure(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)
	svc, _ := newVideoServiceForTest(t, f, &fakeMuxAPI{deleteStatus: http.StatusInternalServerError})

	require.NoError(t, db.Model(f.lesson).Updates(map[string]interface{}{
		"mux_asset_id":    "asset-1",
		"mux_playback_id": "pb-1",
	}).Error)

	err := svc.DeleteVideo(context.Background(), reloadLesson(t, f))
	require.ErrorIs(t, err, util.ErrRemoteAssetDeleteFailed)

	// 远端删除失败时本地记录保持原样，不会产生孤儿资产
	lesson := reloadLesson(t, f)
	assert.Equal(t, "asset-1", lesson.MuxAssetID)
	assert.Equal(t, "pb-1", lesson.MuxPlaybackID)
}

func TestDeleteVideoTreats404AsSuccess(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)
	svc, _ := newVideoServiceForTest(t, f, &fakeMuxAPI{deleteStatus: http.StatusNotFound})

	require.NoError(t, db.Model(f.lesson).Updates(map[string]interface{}{
		"mux_asset_id":    "asset-gone",
		"mux_playback_id": "pb-1",
		"mux_status":      model.VideoReady,
		"duration":        300,
	}).Error)

	// 远端已不存在视为删除成功（幂等）
	require.NoError(t, svc.DeleteVideo(context.Background(), reloadLesson(t, f)))

	lesson := reloadLesson(t, f)
	assert.Empty(t, lesson.MuxAssetID)
	assert.Empty(t, lesson.MuxPlaybackID)
	// 没有可播资产就不能留在 ready，回到 pending 与新建课时同态
	assert.Equal(t, model.VideoPending, lesson.MuxStatus)
	assert.Zero(t, lesson.Duration)
}

func TestCallbackHandlersAreIdempotent(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)
	svc, hub := newVideoServiceForTest(t, f, &fakeMuxAPI{})

	require.NoError(t, db.Model(f.lesson).Updates(map[string]interface{}{
		"mux_upload_id": "upload-1",
		"mux_asset_id":  "asset-1",
		"mux_status":    model.VideoPending,
	}).Error)

	sub := hub.Subscribe(f.course.ID)
	defer hub.Unsubscribe(sub)

	// 服务商会重发回调，同一回调落两次必须收敛到同一状态
	for i := 0; i < 2; i++ {
		handled, err := svc.HandleAssetReady("asset-1", []string{"pb-1"}, 100)
		require.NoError(t, err)
		assert.True(t, handled)
	}

	lesson := reloadLesson(t, f)
	assert.Equal(t, model.VideoReady, lesson.MuxStatus)
	assert.Equal(t, "pb-1", lesson.MuxPlaybackID)
	assert.Equal(t, 100, lesson.Duration)

	// 重复回调至多多发一条内容相同的广播
	assert.LessOrEqual(t, len(sub.Ch), 2)
	for len(sub.Ch) > 0 {
		event := <-sub.Ch
		assert.Equal(t, model.VideoReady, event.Data.MuxStatus)
		assert.Equal(t, "pb-1", event.Data.PlaybackID)
	}

	for i := 0; i < 2; i++ {
		handled, err := svc.HandleAssetErrored("asset-1", "input file corrupt")
		require.NoError(t, err)
		assert.True(t, handled)
	}
	lesson = reloadLesson(t, f)
	assert.Equal(t, model.VideoError, lesson.MuxStatus)
}

func TestLessonDeleteAbortsWhenRemoteDeleteFails(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)
	videoSvc, _ := newVideoServiceForTest(t, f, &fakeMuxAPI{deleteStatus: http.StatusInternalServerError})

	lessonSvc := NewLessonService(
		repository.NewLessonRepository(db),
		repository.NewChapterRepository(db),
		videoSvc,
		NewStorageService(testStorageConfig(t)),
	)

	require.NoError(t, db.Model(f.lesson).Updates(map[string]interface{}{
		"mux_asset_id": "asset-1",
	}).Error)

	err := lessonSvc.Delete(context.Background(), f.lesson.ID)
	require.ErrorIs(t, err, util.ErrRemoteAssetDeleteFailed)

	// 整个删除中止，课时仍在
	var count int64
	require.NoError(t, db.Model(&model.Lesson{}).Where("id = ?", f.lesson.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
