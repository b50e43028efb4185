package service

import (
	"fmt"
	"testing"

	"course_platform_backend/internal/config"
	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB 每个测试一个独立的内存库。
// 连接池收到 1，并发用例里的语句会在单连接上串行执行，
// 不会被 SQLite 的锁竞争干扰。
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.Chapter{},
		&model.Lesson{},
		&model.Enrollment{},
		&model.VideoView{},
		&model.SiteContent{},
	)
	require.NoError(t, err)

	t.Cleanup(func() { sqlDB.Close() })
	return db
}

type fixtures struct {
	db      *gorm.DB
	student *model.User
	admin   *model.User
	course  *model.Course
	chapter *model.Chapter
	lesson  *model.Lesson
}

// seedCourse 一个学员、一个管理员、一门已发布课程和一节默认可看 2 次的视频课时，
// 学员已注册该课程
func seedCourse(t *testing.T, db *gorm.DB) *fixtures {
	t.Helper()

	student := &model.User{Name: "小王", Email: "student@example.com", Password: "x", Role: model.Student}
	require.NoError(t, db.Create(student).Error)

	admin := &model.User{Name: "管理员", Email: "admin@example.com", Password: "x", Role: model.Admin}
	require.NoError(t, db.Create(admin).Error)

	course := &model.Course{Title: "Go 进阶", IsPublished: true}
	require.NoError(t, db.Create(course).Error)

	chapter := &model.Chapter{CourseID: course.ID, Title: "第一章", Position: 1, IsPublished: true}
	require.NoError(t, db.Create(chapter).Error)

	lesson := &model.Lesson{
		ChapterID:   chapter.ID,
		Title:       "并发基础",
		Type:        model.LessonVideo,
		ViewLimit:   2,
		IsPublished: true,
		MuxStatus:   model.VideoReady,
		Position:    1,
	}
	require.NoError(t, db.Create(lesson).Error)

	require.NoError(t, db.Create(&model.Enrollment{UserID: student.ID, CourseID: course.ID}).Error)

	return &fixtures{
		db:      db,
		student: student,
		admin:   admin,
		course:  course,
		chapter: chapter,
		lesson:  lesson,
	}
}

// testStorageConfig 本地存储指向测试临时目录
func testStorageConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Storage: config.StorageConfig{
			Type:      "local",
			LocalPath: t.TempDir(),
		},
	}
}

func newViewService(db *gorm.DB) *VideoViewService {
	return NewVideoViewService(
		repository.NewVideoViewRepository(db),
		repository.NewLessonRepository(db),
	)
}
