// Package backup copies the journal's store encodings to S3-compatible
// object storage (AWS S3 or MinIO). Each run writes every file under a new
// timestamped prefix so earlier backups are never overwritten.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// ErrBucketRequired is returned when no bucket is configured.
var ErrBucketRequired = errors.New("backup bucket required")

// defaultRegion is used when Config.Region is empty.
const defaultRegion = "us-east-1"

// stampLayout names the per-run prefix.
const stampLayout = "20060102T150405Z"

// Config holds the backup target.
type Config struct {
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Region          string `yaml:"region" mapstructure:"region"`
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"` // optional; enables a custom endpoint such as MinIO
	Prefix          string `yaml:"prefix" mapstructure:"prefix"`
	PathStyle       bool   `yaml:"path_style" mapstructure:"path_style"`
	AccessKeyID     string `yaml:"-" mapstructure:"access_key_id"` // optional; falls back to the default credential chain
	SecretAccessKey string `yaml:"-" mapstructure:"secret_access_key"`
}

// ObjectPutter is the part of the S3 client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Exporter supplies the files to back up, keyed by file name.
type Exporter interface {
	Export() (map[string][]byte, error)
}

// NewClient builds an S3 client for cfg. Extra option functions are applied
// after the ones derived from cfg.
func NewClient(ctx context.Context, cfg Config, optFns ...func(*s3.Options)) (*s3.Client, error) {
	if cfg.Bucket == "" {
		return nil, ErrBucketRequired
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	opts := []func(*s3.Options){func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}}
	return s3.NewFromConfig(awsCfg, append(opts, optFns...)...), nil
}

// Uploader writes backup runs to one bucket.
type Uploader struct {
	client ObjectPutter
	bucket string
	prefix string
	now    func() time.Time
	log    *zap.Logger
}

// NewUploader returns an Uploader for cfg.Bucket and cfg.Prefix.
func NewUploader(client ObjectPutter, cfg Config, logger *zap.Logger) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, ErrBucketRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		now:    time.Now,
		log:    logger.With(zap.String("component", "backup"), zap.String("bucket", cfg.Bucket)),
	}, nil
}

// Backup exports src and uploads the result. It returns the object keys
// written, in file name order.
func (u *Uploader) Backup(ctx context.Context, src Exporter) ([]string, error) {
	files, err := src.Export()
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return u.Upload(ctx, files)
}

// Upload writes files under <prefix>/<UTC timestamp>/<name>. It stops at the
// first failed object.
func (u *Uploader) Upload(ctx context.Context, files map[string][]byte) ([]string, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	stamp := u.now().UTC().Format(stampLayout)
	keys := make([]string, 0, len(names))
	for _, name := range names {
		data := files[name]
		key := path.Join(u.prefix, stamp, name)
		_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(u.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
			ContentType:   aws.String("application/json"),
		})
		if err != nil {
			return keys, fmt.Errorf("put %s: %w", key, err)
		}
		u.log.Debug("object uploaded", zap.String("key", key), zap.Int("bytes", len(data)))
		keys = append(keys, key)
	}
	u.log.Info("backup complete", zap.Int("objects", len(keys)), zap.String("stamp", stamp))
	return keys, nil
}
