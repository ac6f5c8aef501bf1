// @title 认证考试练习平台 API
// @version 1.0
// @description 题库浏览、限时模拟考试、成绩分析与试卷购买的后端服务。
// @termsOfService http://swagger.io/terms/

// @contact.name API支持
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description 格式为 "Bearer {token}"

package main

import (
	"flag"
	"log"
	"path/filepath"

	"exam_practice_backend/internal/app"
	"exam_practice_backend/internal/config"
	"exam_practice_backend/pkg/configwatcher"
	"exam_practice_backend/pkg/logger"
)

func main() {
	// 命令行参数
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	migrate := flag.Bool("migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	seed := flag.Bool("seed", false, "数据库为空时写入内置题库")
	configDir := flag.String("config", "configs", "配置文件目录")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 设置迁移标志
	cfg.ForceMigrate = *migrate || *migrateOnly || *seed
	cfg.MigrateOnly = *migrateOnly
	cfg.Seed = *seed

	application := app.NewApp(cfg)
	defer logger.Sync()

	// 迁移完成后直接退出
	if *migrateOnly {
		log.Println("数据库迁移完成，退出程序")
		return
	}

	go configwatcher.WatchConfig(filepath.Join(*configDir, "config.yaml"), application.ApplyConfig)

	application.Run()
}
