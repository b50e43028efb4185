// 创建初始管理员账号脚本
//
// 自助注册的账号一律是学员角色，首次部署后需要用本脚本种一个管理员，
// 之后的管理员可以由已有管理员在后台创建。
//
// 用法: go run scripts/seed_admin.go -name 管理员 -email admin@example.com -password <密码>

package main

import (
	"errors"
	"flag"
	"log"

	"course_platform_backend/internal/config"
	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"
	"course_platform_backend/pkg/database"
	"course_platform_backend/pkg/logger"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func main() {
	name := flag.String("name", "管理员", "管理员显示名")
	email := flag.String("email", "", "管理员邮箱（必填）")
	password := flag.String("password", "", "初始密码（必填，至少 8 位）")
	flag.Parse()

	if *email == "" || len(*password) < 8 {
		log.Fatal("必须提供 -email 和至少 8 位的 -password")
	}

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}
	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database, true)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	users := repository.NewUserRepository(db)
	if _, err := users.FindByEmail(*email); err == nil {
		log.Fatalf("邮箱 %s 已被占用", *email)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Fatalf("查询用户失败: %v", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("密码加密失败: %v", err)
	}

	admin := &model.User{
		Name:     *name,
		Email:    *email,
		Password: string(hashed),
		Role:     model.Admin,
	}
	if err := users.Create(admin); err != nil {
		log.Fatalf("创建管理员失败: %v", err)
	}

	log.Printf("管理员已创建: %s (id=%d)", admin.Email, admin.ID)
}
