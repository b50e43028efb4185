package database

import (
	"course_platform_backend/internal/config"
	"course_platform_backend/internal/model"
	"fmt"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB 连接数据库。migrate 为 true 时执行 AutoMigrate 并补种默认数据：
// release 模式默认不迁移，通过 --migrate 标志显式触发。
func InitDB(cfg *config.DatabaseConfig, migrate bool) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	if migrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
		log.Println("Database migration completed")
	}

	return db, nil
}

// Migrate 建表并补种默认站点文案
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.Chapter{},
		&model.Lesson{},
		&model.Enrollment{},
		&model.VideoView{},
		&model.SiteContent{},
	)
	if err != nil {
		return err
	}

	// 默认站点文案
	var count int64
	db.Model(&model.SiteContent{}).Count(&count)
	if count == 0 {
		defaults := []model.SiteContent{
			{Key: "home.hero", Body: "系统化的视频课程，随时随地学习。"},
			{Key: "home.about", Body: "课程由一线讲师录制，购买后在有效观看次数内可反复回看。"},
			{Key: "player.limit_notice", Body: "每节课默认可完整观看 2 次，如需更多次数请联系管理员。"},
		}
		for _, c := range defaults {
			db.Create(&c)
		}
	}
	return nil
}
