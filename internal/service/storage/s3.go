package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"attendance/internal/config"
	"attendance/internal/logger"
	"attendance/internal/model"
)

// S3Store uploads snapshots to a bucket.
type S3Store struct {
	uploader   *s3manager.Uploader
	bucketName string
	prefix     string
	logger     *logger.Logger
}

// NewS3Store creates a session from the AWS settings in cfg.
func NewS3Store(cfg *config.Config, logger *logger.Logger) (*S3Store, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}

	return &S3Store{
		uploader:   s3manager.NewUploader(sess),
		bucketName: cfg.AWSBucket,
		prefix:     "unauthorized/",
		logger:     logger,
	}, nil
}

// Save uploads data and returns the object location.
func (s *S3Store) Save(ctx context.Context, camera model.CameraID, taken time.Time, data []byte) (string, error) {
	key := s.prefix + taken.Format("2006-01-02") + "/" + SnapshotName(camera, taken)

	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	s.logger.Debug("Uploaded unauthorized snapshot to %s", out.Location)
	return out.Location, nil
}
