package storage

import (
	"context"
	"fmt"

	"reelpress/internal/adapters/storage/gcs"
	"reelpress/internal/adapters/storage/localfs"
	"reelpress/internal/adapters/storage/s3"
	"reelpress/internal/config"
)

func NewProvider(ctx context.Context, cfg config.StorageConfig) (Provider, error) {
	switch cfg.Provider {
	case "localfs":
		if cfg.LocalRoot == "" {
			return nil, fmt.Errorf("localfs storage requires a root directory")
		}
		return localfs.New(cfg.LocalRoot), nil

	case "s3":
		return s3.New(ctx, s3.Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Bucket:          cfg.Bucket,
		})

	case "gcs":
		return gcs.New(ctx, gcs.Config{
			Bucket:  cfg.Bucket,
			KeyFile: cfg.GCSKeyFile,
		})

	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
}
