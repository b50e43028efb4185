package service

import (
	"sync"
	"testing"
	"time"

	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAttemptOnlyCompletedViewsCount(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)
	svc := newViewService(db)

	// 拖动预览、中途退出都不消耗次数
	for _, pct := range []int{0, 10, 50, 98} {
		status, err := svc.RecordAttempt(f.student.ID, f.lesson.ID, pct, false)
		require.NoError(t, err)
		assert.Equal(t, 0, status.ViewCount)
		assert.True(t, status.CanWatch)
	}

	// 达到阈值才算一次完整观看
	status, err := svc.RecordAttempt(f.student.ID, f.lesson.ID, 99, false)
	require.NoError(t, err)
	assert.Equal(t, 1, status.ViewCount)
	assert.Equal(t, 1, status.Remaining)

	status, err = svc.RecordAttempt(f.student.ID, f.lesson.ID, 100, false)
	require.NoError(t, err)
	assert.Equal(t, 2, status.ViewCount)
	assert.False(t, status.CanWatch)
}

func TestRecordAttemptRejectsWhenLimitReached(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)
	svc := newViewService(db)

	for i := 0; i < 2; i++ {
		_, err := svc.RecordAttempt(f.student.ID, f.lesson.ID, 100, false)
		require.NoError(t, err)
	}

	status, err := svc.RecordAttempt(f.student.ID, f.lesson.ID, 100, false)
	require.ErrorIs(t, err, util.ErrViewLimitReached)
	// 拒绝时依然带回当前状态
	require.NotNil(t, status)
	assert.Equal(t, 2, status.ViewCount)
	assert.False(t, status.CanWatch)
	assert.Equal(t, 0, status.Remaining)

	// 计数没有超扣
	var view model.VideoView
	require.NoError(t, db.Where("user_id = ? AND lesson_id = ?", f.student.ID, f.lesson.ID).First(&view).Error)
	assert.Equal(t, 2, view.ViewCount)
}

func TestRecordAttemptRefreshesLastViewedOnRejection(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)
	svc := newViewService(db)

	for i := 0; i < 2; i++ {
		_, err := svc.RecordAttempt(f.student.ID, f.lesson.ID, 100, false)
		require.NoError(t, err)
	}

	var before model.VideoView
	require.NoError(t, db.Where("user_id = ? AND lesson_id = ?", f.student.ID, f.lesson.ID).First(&before).Error)

	time.Sleep(10 * time.Millisecond)
	_, err := svc.RecordAttempt(f.student.ID, f.lesson.ID, 100, false)
	require.ErrorIs(t, err, util.ErrViewLimitReached)

	var after model.VideoView
	require.NoError(t, db.Where("user_id = ? AND lesson_id = ?", f.student.ID, f.lesson.ID).First(&after).Error)
	assert.True(t, after.LastViewedAt.After(before.LastViewedAt), "被拒绝的尝试也要刷新最近观看时间")
}

func TestRecordAttemptConcurrentNeverOvercounts(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)
	svc := newViewService(db)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordAttempt(f.student.ID, f.lesson.ID, 100, false)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	counted := 0
	rejected := 0
	for err := range errs {
		switch {
		case err == nil:
			counted++
		case assert.ErrorIs(t, err, util.ErrViewLimitReached):
			rejected++
		}
	}
	assert.Equal(t, 2, counted)
	assert.Equal(t, attempts-2, rejected)

	var view model.VideoView
	require.NoError(t, db.Where("user_id = ? AND lesson_id = ?", f.student.ID, f.lesson.ID).First(&view).Error)
	assert.Equal(t, 2, view.ViewCount)
}

func TestCustomLimitOverride(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)
	svc := newViewService(db)

	// 调高到 3：第三次完整观看仍然成功
	_, err := svc.SetOverride(f.student.ID, f.lesson.ID, 3)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.RecordAttempt(f.student.ID, f.lesson.ID, 100, false)
		require.NoError(t, err)
	}
	_, err = svc.RecordAttempt(f.student.ID, f.lesson.ID, 100, false)
	require.ErrorIs(t, err, util.ErrViewLimitReached)

	// 清除覆盖后回到课时默认上限 2，已消耗 3 次，直接不可看
	require.NoError(t, svc.ClearOverride(f.student.ID, f.lesson.ID))
	status, err := svc.GetStatus(f.student.ID, f.lesson.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Limit)
	assert.False(t, status.CanWatch)
	assert.Equal(t, 0, status.Remaining)
}

func TestCustomLimitZeroBlocksPlayback(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)
	svc := newViewService(db)

	// 0 是合法覆盖值，与"未设置"不同：完全禁止观看
	_, err := svc.SetOverride(f.student.ID, f.lesson.ID, 0)
	require.NoError(t, err)

	status, err := svc.GetStatus(f.student.ID, f.lesson.ID, false)
	require.NoError(t, err)
	assert.False(t, status.CanWatch)
	assert.Equal(t, 0, status.Limit)

	_, err = svc.RecordAttempt(f.student.ID, f.lesson.ID, 100, false)
	require.ErrorIs(t, err, util.ErrViewLimitReached)
}

func TestAdminUnlimitedViews(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)
	svc := newViewService(db)

	// 管理员不受上限约束，远超默认上限也不会被拒
	for i := 0; i < 5; i++ {
		status, err := svc.RecordAttempt(f.admin.ID, f.lesson.ID, 100, true)
		require.NoError(t, err)
		assert.True(t, status.CanWatch)
		assert.True(t, status.Unlimited)
	}

	status, err := svc.GetStatus(f.admin.ID, f.lesson.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 5, status.ViewCount)

	// 无上限只在序列化边界折算为哨兵值
	resp := status.APIView()
	assert.Equal(t, util.AdminViewLimitSentinel, resp.EffectiveLimit)
	assert.Equal(t, util.AdminViewLimitSentinel, resp.RemainingViews)
	assert.True(t, resp.CanWatch)
}

func TestGetStatusIsReadOnly(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)
	svc := newViewService(db)

	status, err := svc.GetStatus(f.student.ID, f.lesson.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 0, status.ViewCount)
	assert.Equal(t, 2, status.Limit)
	assert.True(t, status.CanWatch)

	// 查询不创建观看记录
	var count int64
	require.NoError(t, db.Model(&model.VideoView{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestViewAccountingRejectsNonVideoLessons(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)
	svc := newViewService(db)

	text := &model.Lesson{ChapterID: f.chapter.ID, Title: "课程讲义", Type: model.LessonText, ViewLimit: 2}
	require.NoError(t, db.Create(text).Error)

	_, err := svc.GetStatus(f.student.ID, text.ID, false)
	assert.ErrorIs(t, err, util.ErrNotAVideoLesson)

	_, err = svc.RecordAttempt(f.student.ID, text.ID, 100, false)
	assert.ErrorIs(t, err, util.ErrNotAVideoLesson)
}

func TestViewQuotaSurvivesReEnrollment(t *testing.T) {
	db := newTestDB(t)
	f := seedCourse(t, db)
	svc := newViewService(db)

	for i := 0; i < 2; i++ {
		_, err := svc.RecordAttempt(f.student.ID, f.lesson.ID, 100, false)
		require.NoError(t, err)
	}

	// 撤销注册再重新注册，观看记录保留，额度不会清零重来
	enrollments := NewEnrollmentService(
		repository.NewEnrollmentRepository(db),
		repository.NewCourseRepository(db),
		repository.NewUserRepository(db),
	)
	require.NoError(t, enrollments.Revoke(f.student.ID, f.course.ID))
	_, err := enrollments.Enroll(f.student.ID, f.course.ID)
	require.NoError(t, err)

	status, err := svc.GetStatus(f.student.ID, f.lesson.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 2, status.ViewCount)
	assert.False(t, status.CanWatch)
}
