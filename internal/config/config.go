package config

import (
	"fmt"
	"time"

	"github.com/elastic-io/mediagate/internal/clients"
	"github.com/elastic-io/mediagate/internal/ingest"
	"github.com/elastic-io/mediagate/internal/service"
	"github.com/elastic-io/mediagate/internal/transcode"
	"github.com/elastic-io/mediagate/internal/types"
	"github.com/elastic-io/mediagate/internal/utils"
	"github.com/urfave/cli"
)

type Config struct {
	Endpoint     string
	CertFile     string
	KeyFile      string
	BodyLimit    int
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
	Modules      []string

	Store clients.StoreConfig

	TempDir           string
	MinImageSize      string
	MaxImageSize      string
	EnforceSizeLimits bool
	FailurePolicy     string

	MaxWidth    int
	MaxHeight   int
	PNGQuality  int
	WebPQuality int

	Service service.UploadService
}

func New(ctx *cli.Context) *Config {
	c := &Config{BodyLimit: 64 * types.MB}
	c.Endpoint = ctx.String("endpoint")
	c.CertFile = ctx.String("cert")
	c.KeyFile = ctx.String("key")
	c.ReadTimeout = ctx.Int("read-timeout")
	c.WriteTimeout = ctx.Int("write-timeout")
	c.IdleTimeout = ctx.Int("idle-timeout")
	c.Modules = ctx.StringSlice("mod")

	c.Store = clients.StoreConfig{
		Endpoint:  ctx.GlobalString("s3-endpoint"),
		AccessKey: ctx.GlobalString("s3-access-key"),
		SecretKey: ctx.GlobalString("s3-secret-key"),
		Token:     ctx.GlobalString("s3-token"),
		Region:    ctx.GlobalString("s3-region"),
		Bucket:    ctx.GlobalString("s3-bucket"),
		PublicURL: ctx.GlobalString("s3-public-url"),
	}

	c.TempDir = ctx.GlobalString("tmp")
	c.MinImageSize = ctx.GlobalString("min-image-size")
	c.MaxImageSize = ctx.GlobalString("max-image-size")
	c.EnforceSizeLimits = ctx.GlobalBool("enforce-size-limits")
	c.FailurePolicy = ctx.GlobalString("failure-policy")

	c.MaxWidth = ctx.GlobalInt("max-width")
	c.MaxHeight = ctx.GlobalInt("max-height")
	c.PNGQuality = ctx.GlobalInt("png-quality")
	c.WebPQuality = ctx.GlobalInt("webp-quality")
	return c
}

// Limits 解析图片大小限制，未设置时使用默认值
func (c *Config) Limits() (ingest.Limits, error) {
	limits := ingest.DefaultLimits()
	limits.Enforce = c.EnforceSizeLimits

	var err error
	if c.MinImageSize != "" {
		if limits.Min, err = parseSize(c.MinImageSize); err != nil {
			return limits, fmt.Errorf("invalid min-image-size: %w", err)
		}
	}
	if c.MaxImageSize != "" {
		if limits.Max, err = parseSize(c.MaxImageSize); err != nil {
			return limits, fmt.Errorf("invalid max-image-size: %w", err)
		}
	}
	if limits.Min > limits.Max {
		return limits, fmt.Errorf("min-image-size %d is larger than max-image-size %d", limits.Min, limits.Max)
	}
	return limits, nil
}

func (c *Config) Ingest() (ingest.Config, error) {
	limits, err := c.Limits()
	if err != nil {
		return ingest.Config{}, err
	}
	policy, err := ingest.ParsePolicy(c.FailurePolicy)
	if err != nil {
		return ingest.Config{}, err
	}
	return ingest.Config{Limits: limits, Policy: policy}, nil
}

// Transcode 未设置的项沿用默认值
func (c *Config) Transcode() transcode.Options {
	opts := transcode.DefaultOptions()
	if c.MaxWidth > 0 {
		opts.MaxWidth = c.MaxWidth
	}
	if c.MaxHeight > 0 {
		opts.MaxHeight = c.MaxHeight
	}
	if c.PNGQuality > 0 {
		opts.PNGQuality = c.PNGQuality
	}
	if c.WebPQuality > 0 {
		opts.WebPQuality = float32(c.WebPQuality)
	}
	return opts
}

func (c *Config) Timeouts() (read, write, idle time.Duration) {
	return time.Duration(c.ReadTimeout) * time.Second,
		time.Duration(c.WriteTimeout) * time.Second,
		time.Duration(c.IdleTimeout) * time.Second
}

func parseSize(s string) (int, error) {
	return utils.ParseSize(utils.SplitSize(s))
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if len(c.Modules) == 0 {
		return fmt.Errorf("at least one module is required")
	}
	if c.TempDir == "" {
		return fmt.Errorf("tmp directory is required")
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return fmt.Errorf("cert and key must be set together")
	}
	if _, err := c.Ingest(); err != nil {
		return err
	}
	if c.PNGQuality < 0 || c.PNGQuality > 100 {
		return fmt.Errorf("png-quality must be within [0, 100]")
	}
	if c.WebPQuality < 0 || c.WebPQuality > 100 {
		return fmt.Errorf("webp-quality must be within [0, 100]")
	}
	if c.Service == nil {
		return fmt.Errorf("upload service is required")
	}
	return nil
}
