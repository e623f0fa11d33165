package s3

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// Config 是 S3 相容儲存服務的連線設定
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
	// Buckets 將邏輯儲存桶名稱對應到實際的 S3 儲存桶，沒有對應時直接使用邏輯名稱
	Buckets      map[string]string
	UsePathStyle bool
}

// Storage 以 S3 實作 backend.StorageClient
type Storage struct {
	// Client 是 S3 客戶端。
	Client *s3.Client
	// PublicEndpoint 是儲存桶的公開 Endpoint。
	PublicEndpoint *url.URL

	buckets map[string]string
	logger  *zap.Logger
}

type Option func(*Storage)

// WithLogger 設定 logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Storage) {
		s.logger = logger
	}
}

// WithBuckets 設定邏輯儲存桶與實際儲存桶的對應
func WithBuckets(buckets map[string]string) Option {
	return func(s *Storage) {
		s.buckets = buckets
	}
}

// NewStorage 以既有的 S3 客戶端建立 Storage
func NewStorage(client *s3.Client, publicBaseURL string, opts ...Option) (*Storage, error) {
	const op = "NewStorage"
	publicEndpoint, err := url.Parse(publicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to parse public base URL, err=%w", op, err)
	}
	s := &Storage{Client: client, PublicEndpoint: publicEndpoint, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open 依設定建立 S3 客戶端與 Storage
func Open(ctx context.Context, config Config, opts ...Option) (*Storage, error) {
	const op = "s3.Open"
	cfg, err := awsCfg.LoadDefaultConfig(
		ctx,
		awsCfg.WithBaseEndpoint(config.Endpoint),
		awsCfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, "")),
		awsCfg.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to load AWS config, err=%w", op, err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = config.UsePathStyle
	})
	return NewStorage(client, config.PublicBaseURL, append([]Option{WithBuckets(config.Buckets)}, opts...)...)
}

func (s *Storage) bucket(name string) string {
	if physical, ok := s.buckets[name]; ok && physical != "" {
		return physical
	}
	return name
}

// Upload 將檔案上傳到指定的儲存桶
func (s *Storage) Upload(ctx context.Context, bucket, path, contentType string, data []byte) error {
	const op = "s3.Storage.Upload"
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket(bucket)),
		Key:         aws.String(path),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("[%s] Fail to upload file to S3, bucket=%s, err=%w", op, bucket, err)
	}
	s.logger.Debug("File uploaded",
		zap.String("op", op),
		zap.String("bucket", bucket),
		zap.String("path", path),
		zap.String("size", FormatBytes(int64(len(data)))),
	)
	return nil
}

// PublicURL 回傳檔案的公開網址：<public base>/<bucket>/<path>
func (s *Storage) PublicURL(bucket, path string) string {
	return s.PublicEndpoint.JoinPath(s.bucket(bucket), path).String()
}
