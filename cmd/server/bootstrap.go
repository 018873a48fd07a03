package main

import (
	"fmt"

	"github.com/postdesk/internal/config"
	"github.com/postdesk/internal/db"
	"github.com/postdesk/internal/storage"
	"gorm.io/gorm"
)

// openDatabase 初始化全局连接并返回它
func openDatabase(cfg config.AppConfig) (*gorm.DB, error) {
	if err := db.Init(cfg.DatabaseDriver, cfg.DatabasePath); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	return db.DB, nil
}

func openBlobStore(cfg config.StorageConfig) (storage.BlobStore, error) {
	switch cfg.Driver {
	case "", "local":
		return storage.NewLocalStore(cfg.UploadDir, cfg.UploadURLPath)
	case "s3":
		return storage.NewS3Store(storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			PublicURL:       cfg.S3PublicURL,
			BasePath:        cfg.S3BasePath,
			ForcePathStyle:  cfg.S3ForcePathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
