// 手动把 YAML 题库导入空数据库
//
// 内置题库可以用 -seed 启动参数写入，此脚本用于导入其他题库文件，
// 格式与 internal/repository/fixtures/catalog.yaml 相同。
//
// 用法: go run scripts/import_catalog.go path/to/catalog.yaml

package main

import (
	"log"
	"os"

	"exam_practice_backend/internal/config"
	"exam_practice_backend/internal/repository"
	"exam_practice_backend/pkg/database"
	"exam_practice_backend/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("用法: go run scripts/import_catalog.go <catalog.yaml>")
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatalf("无法读取题库文件: %v", err)
	}

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	cfg.ForceMigrate = true

	logger.InitLogger(cfg)
	defer logger.Sync()

	catalog, err := repository.LoadMemoryCatalog(data)
	if err != nil {
		log.Fatalf("解析题库失败: %v", err)
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	if err := catalog.Seed(db); err != nil {
		logger.Log.Fatal("Catalog import failed", zap.Error(err))
	}
	logger.Log.Info("Catalog imported", zap.String("file", os.Args[1]))
}
