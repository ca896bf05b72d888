package clients

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/elastic-io/mediagate/internal/types"
)

// ObjectStore 对象存储能力：按 key 写入和删除，返回可公开访问的 URL
type ObjectStore interface {
	Put(ctx context.Context, body []byte, contentType, category string) (*types.UploadResult, error)
	// PutFile 从本地路径上传，调用方负责文件的生命周期
	PutFile(ctx context.Context, path, contentType, category string) (*types.UploadResult, error)
	Delete(ctx context.Context, key string) error
	Configured() bool
}

// StoreConfig 对象存储配置，任一必填项为空则存储处于未配置状态
type StoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Token     string
	Region    string
	Bucket    string
	PublicURL string
}

func (c StoreConfig) complete() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != "" && c.Bucket != "" && c.PublicURL != ""
}

type S3Options struct {
	S3ForcePathStyle   bool
	DisableSSL         bool
	InsecureSkipVerify bool
}

type s3Store struct {
	client   *s3.S3
	uploader *s3manager.Uploader
	cfg      StoreConfig
}

// NewS3Store 创建 S3 兼容的对象存储客户端，配置不完整时返回未配置的客户端
func NewS3Store(cfg StoreConfig, opts ...S3Options) (ObjectStore, error) {
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	if !cfg.complete() {
		return &s3Store{cfg: cfg}, nil
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		Endpoint:         aws.String(cfg.Endpoint),
		S3ForcePathStyle: aws.Bool(true),
		HTTPClient:       &http.Client{},
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, cfg.Token),
	}
	if len(opts) > 0 {
		if v1 := opts[0].S3ForcePathStyle; v1 {
			awsCfg.S3ForcePathStyle = &v1
		}
		if v2 := opts[0].DisableSSL; v2 {
			awsCfg.DisableSSL = &v2
		}
		if v3 := opts[0].InsecureSkipVerify; v3 {
			awsCfg.HTTPClient.Transport = &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: v3,
				},
			}
		}
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 client: %w", err)
	}
	client := s3.New(sess)
	return &s3Store{
		client:   client,
		uploader: s3manager.NewUploaderWithClient(client),
		cfg:      cfg,
	}, nil
}

func (s *s3Store) Configured() bool {
	return s.client != nil
}

// NewKey 生成 uploads/<category>/<毫秒时间戳>-<[0,1e9) 随机数>
func NewKey(category string) string {
	return fmt.Sprintf("uploads/%s/%d-%d", category, time.Now().UnixMilli(), rand.Intn(1e9))
}

func (s *s3Store) url(key string) string {
	return s.cfg.PublicURL + "/" + key
}

func notConfigured() *types.UploadResult {
	return &types.UploadResult{Success: false, Message: types.ErrStoreNotConfigured.Error()}
}

func (s *s3Store) Put(ctx context.Context, body []byte, contentType, category string) (*types.UploadResult, error) {
	if !s.Configured() {
		return notConfigured(), nil
	}
	return s.upload(ctx, bytes.NewReader(body), contentType, category)
}

func (s *s3Store) PutFile(ctx context.Context, path, contentType, category string) (*types.UploadResult, error) {
	if !s.Configured() {
		return notConfigured(), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", types.ErrFilesystem, path, err)
	}
	defer file.Close()

	return s.upload(ctx, file, contentType, category)
}

func (s *s3Store) upload(ctx context.Context, body io.Reader, contentType, category string) (*types.UploadResult, error) {
	key := NewKey(category)
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: put %s: %w", types.ErrStoreTransport, key, err)
	}
	return &types.UploadResult{
		Success: true,
		URL:     s.url(key),
		Key:     key,
		Message: "uploaded",
	}, nil
}

// Delete 按 key 精确删除，未配置时什么也不做
func (s *s3Store) Delete(ctx context.Context, key string) error {
	if !s.Configured() {
		return nil
	}
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%w: delete %s: %w", types.ErrStoreTransport, key, err)
	}
	return nil
}
