package minio

import (
	"Parley/internal/api/config"
	"Parley/internal/pkg/consts"
	"context"
	"fmt"
	log "log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const initTimeout = 10 * time.Second

var (
	// Client 全局 MinIO 客户端实例
	Client *minio.Client
	// MainBucket 聊天图片存储桶
	MainBucket string
)

// Init 初始化客户端，服务端内网地址优先
func Init(cfg config.MinIOConfig) error {
	endpoint, useSSL := cfg.InternalEndpoint, cfg.InternalUseSSL
	if endpoint == "" {
		endpoint, useSSL = cfg.ExternalEndpoint, true
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return fmt.Errorf("init minio client: %w", err)
	}
	Client = client
	MainBucket = cfg.MainBucket

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err = ensureBucket(ctx, MainBucket); err != nil {
		return err
	}
	log.Info("MinIO initialized", "endpoint", endpoint, "bucket", MainBucket)
	return nil
}

// ensureBucket 建桶，并把上传目录设为匿名只读，消息里的图片链接可直接访问
func ensureBucket(ctx context.Context, bucket string) error {
	exists, err := Client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err = Client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
		log.Info("MinIO bucket created", "bucket", bucket)
	}
	if err = Client.SetBucketPolicy(ctx, bucket, publicReadPolicy(bucket, consts.UploadPathPrefix)); err != nil {
		return fmt.Errorf("set bucket policy %s: %w", bucket, err)
	}
	return nil
}

func publicReadPolicy(bucket, prefix string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/%s*"]}]}`, bucket, prefix)
}
