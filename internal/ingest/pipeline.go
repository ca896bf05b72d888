// Package ingest drives a multipart stream part by part, transcoding and
// storing image parts and collecting scalar form fields.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"github.com/elastic-io/mediagate/internal/clients"
	"github.com/elastic-io/mediagate/internal/tempfile"
	"github.com/elastic-io/mediagate/internal/types"
	"go.uber.org/zap"
)

const (
	// CategoryListings 转码后图片的存储分类
	CategoryListings = "listings"
	// CategoryRaw 原样上传的存储分类，与 CategoryListings 不同，保持兼容
	CategoryRaw = "listing"
)

// AllowedContentTypes 进入转码上传流程的图片类型
var AllowedContentTypes = []string{"image/jpeg", "image/png", "image/webp"}

// FailurePolicy 单个图片分段失败时的处理方式
type FailurePolicy string

const (
	// PolicyAbort 任何分段失败都终止整个请求
	PolicyAbort FailurePolicy = "abort"
	// PolicySkip 解码失败、大小越界、存储未配置时跳过该分段继续处理
	PolicySkip FailurePolicy = "skip"
)

func ParsePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(strings.ToLower(s)); p {
	case PolicyAbort, PolicySkip:
		return p, nil
	case "":
		return PolicyAbort, nil
	}
	return "", fmt.Errorf("unknown failure policy %q", s)
}

// Transcoder 由 transcode.Transcoder 实现
type Transcoder interface {
	Transcode(data []byte, contentType string) ([]byte, string, error)
}

type Config struct {
	Limits Limits
	Policy FailurePolicy
}

func DefaultConfig() Config {
	return Config{Limits: DefaultLimits(), Policy: PolicyAbort}
}

// Pipeline 单个请求内严格顺序处理分段；Pipeline 本身无状态，可被并发请求共享
type Pipeline struct {
	transcoder Transcoder
	store      clients.ObjectStore
	temp       *tempfile.Dir
	cfg        Config
	logger     *zap.Logger
}

func New(transcoder Transcoder, store clients.ObjectStore, temp *tempfile.Dir, cfg Config, logger *zap.Logger) *Pipeline {
	if cfg.Policy == "" {
		cfg.Policy = PolicyAbort
	}
	return &Pipeline{
		transcoder: transcoder,
		store:      store,
		temp:       temp,
		cfg:        cfg,
		logger:     logger,
	}
}

// WithStore 返回使用另一个存储的 Pipeline，其余配置共享
func (p *Pipeline) WithStore(store clients.ObjectStore) *Pipeline {
	cp := *p
	cp.store = store
	return &cp
}

// Ingest 转码并上传所有图片分段，收集表单字段
func (p *Pipeline) Ingest(ctx context.Context, mr *multipart.Reader) (*types.Result, error) {
	res := &types.Result{
		Images: []types.ProcessedImage{},
		URLs:   []string{},
		Fields: types.FieldMap{},
	}

	order := 0
	err := p.eachPart(ctx, mr, func(part *multipart.Part) error {
		if part.FileName() == "" {
			value, err := io.ReadAll(part)
			if err != nil {
				return fmt.Errorf("read field %q: %w", part.FormName(), err)
			}
			res.Fields[part.FormName()] = parseFieldValue(string(value))
			return nil
		}

		contentType := partContentType(part)
		if !isAllowedImage(contentType) {
			p.logger.Debug("Ignoring non-image file part",
				zap.String("field", part.FormName()),
				zap.String("filename", part.FileName()),
				zap.String("content_type", contentType))
			_, err := io.Copy(io.Discard, part)
			return err
		}

		idx := order
		order++
		url, err := p.processImage(ctx, part, contentType)
		if err != nil {
			return p.partFailure(&res.Skipped, idx, part, contentType, err)
		}
		res.Images = append(res.Images, types.ProcessedImage{URL: url, Order: idx})
		res.URLs = append(res.URLs, url)
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("Multipart ingest completed",
		zap.Int("images", len(res.Images)),
		zap.Int("fields", len(res.Fields)),
		zap.Int("skipped", len(res.Skipped)))
	return res, nil
}

func (p *Pipeline) processImage(ctx context.Context, part *multipart.Part, contentType string) (string, error) {
	data, err := p.cfg.Limits.read(part)
	if err != nil {
		return "", err
	}

	// 转码是纯 CPU 操作，前后检查一次取消信号
	if err := ctx.Err(); err != nil {
		return "", err
	}
	out, format, err := p.transcoder.Transcode(data, contentType)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	return p.upload(ctx, out, "."+format, "image/"+format, CategoryListings)
}

// upload 写临时文件、上传、删除临时文件；临时文件在任何退出路径上都会被删除
func (p *Pipeline) upload(ctx context.Context, data []byte, ext, contentType, category string) (string, error) {
	var res *types.UploadResult
	err := p.temp.With(data, ext, func(path string) error {
		var err error
		res, err = p.store.PutFile(ctx, path, contentType, category)
		return err
	})
	if err != nil {
		return "", err
	}
	if !res.Success {
		return "", fmt.Errorf("%w: %s", types.ErrStoreNotConfigured, res.Message)
	}

	p.logger.Debug("Object stored",
		zap.String("key", res.Key),
		zap.String("category", category),
		zap.Int("size", len(data)))
	return res.URL, nil
}

// eachPart 顺序读取分段，每个分段处理完毕并关闭后才读取下一个
func (p *Pipeline) eachPart(ctx context.Context, mr *multipart.Reader, fn func(*multipart.Part) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read next part: %w", err)
		}

		err = fn(part)
		part.Close()
		if err != nil {
			return err
		}
	}
}

// partFailure 在 skip 策略下记录可跳过的错误，其余错误原样返回
func (p *Pipeline) partFailure(skipped *[]types.SkippedPart, order int, part *multipart.Part, contentType string, err error) error {
	if p.cfg.Policy != PolicySkip || !skippable(err) {
		p.logger.Error("Image part failed, aborting request",
			zap.Int("order", order),
			zap.String("filename", part.FileName()),
			zap.Error(err))
		return err
	}

	p.logger.Warn("Image part skipped",
		zap.Int("order", order),
		zap.String("filename", part.FileName()),
		zap.Error(err))
	*skipped = append(*skipped, types.SkippedPart{
		Order:       order,
		Filename:    part.FileName(),
		ContentType: contentType,
		Reason:      err.Error(),
	})
	return nil
}

func skippable(err error) bool {
	return errors.Is(err, types.ErrUnsupportedImage) ||
		errors.Is(err, types.ErrImageTooSmall) ||
		errors.Is(err, types.ErrImageTooLarge) ||
		errors.Is(err, types.ErrStoreNotConfigured)
}

func partContentType(part *multipart.Part) string {
	ct := part.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mediaType
}

func isAllowedImage(contentType string) bool {
	for _, allowed := range AllowedContentTypes {
		if contentType == allowed {
			return true
		}
	}
	return false
}
