package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"go_audit_backend/config"
	"go_audit_backend/pkg/logging"
	"go_audit_backend/utils"
)

// Service archives submitted audit documents to object storage before they
// are handed to the knowledge service, so the vectorized source can always
// be re-read.
type Service struct {
	Client       *minio.Client
	Bucket       string
	StorageType  string
	KeyGenerator *utils.ObjectKeyGenerator
}

func InitStorageService(cfg *config.Config) (*Service, error) {
	var minioClient *minio.Client
	var err error

	switch cfg.StorageType {
	case "minio":
		minioClient, err = utils.CreateMinIOClient(cfg)
	case "s3":
		minioClient, err = utils.CreateS3Client(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.StorageType)
	}
	if err != nil {
		logging.Logger.Error("fail InitStorageService", "error", err)
		return nil, err
	}

	ss := &Service{
		Client:       minioClient,
		Bucket:       cfg.BucketName,
		StorageType:  cfg.StorageType,
		KeyGenerator: utils.NewObjectKeyGenerator("audits"),
	}
	if err := ss.EnsureBucketExists(cfg.BucketRegion); err != nil {
		logging.Logger.Error("fail InitStorageService", "error", err)
		return nil, err
	}
	logging.Logger.Info("Storage service initialized",
		"type", cfg.StorageType,
		"bucket", cfg.BucketName,
	)
	return ss, nil
}

func (ss *Service) EnsureBucketExists(region string) error {
	ctx := context.Background()
	exists, err := ss.Client.BucketExists(ctx, ss.Bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	err = ss.Client.MakeBucket(ctx, ss.Bucket, minio.MakeBucketOptions{Region: region})
	if err != nil {
		if ss.StorageType == "s3" {
			logging.Logger.Warn("could not create S3 bucket (might exist or no permission)",
				"bucket", ss.Bucket, "error", err)
			return nil
		}
		return err
	}
	logging.Logger.Info("Bucket created", "bucket", ss.Bucket)
	return nil
}

// ArchiveDocument stores the merged document text and returns its object key.
func (ss *Service) ArchiveDocument(ctx context.Context, fileName, content string) (string, error) {
	key := ss.KeyGenerator.GenerateKey(fileName)
	reader := strings.NewReader(content)
	_, err := ss.Client.PutObject(ctx, ss.Bucket, key, reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		logging.Logger.Error("fail ArchiveDocument", "key", key, "error", err)
		return "", err
	}
	return key, nil
}

// PresignedDownload returns a time-limited URL for an archived document.
func (ss *Service) PresignedDownload(fileKey string, expiration time.Time) (string, error) {
	duration := time.Until(expiration)
	if duration <= 0 {
		return "", fmt.Errorf("expiration in the past")
	}
	presignedURL, err := ss.Client.PresignedGetObject(context.Background(), ss.Bucket, fileKey, duration, nil)
	if err != nil {
		logging.Logger.Error("fail PresignedDownload", "error", err)
		return "", err
	}
	return presignedURL.String(), nil
}
