package transcode

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/elastic-io/mediagate/internal/types"
	"github.com/ericpauley/go-quantize/quantize"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
)

const (
	FormatPNG  = "png"
	FormatWebP = "webp"
)

// Options 转码参数
type Options struct {
	MaxWidth  int
	MaxHeight int

	PNGQuality int

	WebPQuality      float32
	WebPAlphaQuality int
	WebPMethod       int
}

func DefaultOptions() Options {
	return Options{
		MaxWidth:         1920,
		MaxHeight:        1920,
		PNGQuality:       90,
		WebPQuality:      92,
		WebPAlphaQuality: 100,
		WebPMethod:       6,
	}
}

// Transcoder 把任意输入图片转成尺寸受限的 png 或 webp
type Transcoder struct {
	opts   Options
	logger *zap.Logger
}

func NewTranscoder(opts Options, logger *zap.Logger) *Transcoder {
	return &Transcoder{opts: opts, logger: logger}
}

// Transcode 返回编码后的数据和格式（"png" 或 "webp"）
func (t *Transcoder) Transcode(data []byte, contentType string) ([]byte, string, error) {
	src, srcFormat, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", types.ErrUnsupportedImage, err)
	}
	// png 的 tRNS 透明度解码后才可见；旋转会转成 NRGBA，须在旋转前判断
	alpha := hasAlpha(src.ColorModel())
	srcBounds := src.Bounds()

	// 只有 jpeg 携带 EXIF 方向，AutoOrientation 按方向旋转，输出不再携带方向信息
	if srcFormat == "jpeg" {
		src, err = imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", types.ErrUnsupportedImage, err)
		}
	}

	// Fit 只缩小不放大
	img := imaging.Fit(src, t.opts.MaxWidth, t.opts.MaxHeight, imaging.Lanczos)

	var (
		buf    bytes.Buffer
		format string
	)
	if alpha && strings.EqualFold(contentType, "image/png") {
		format = FormatPNG
		err = t.encodePNG(&buf, img)
	} else {
		format = FormatWebP
		err = t.encodeWebP(&buf, img)
	}
	if err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", format, err)
	}

	t.logger.Debug("Image transcoded",
		zap.String("source_format", srcFormat),
		zap.String("content_type", contentType),
		zap.Bool("alpha", alpha),
		zap.Int("source_width", srcBounds.Dx()),
		zap.Int("source_height", srcBounds.Dy()),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
		zap.String("format", format),
		zap.Int("input_size", len(data)),
		zap.Int("output_size", buf.Len()),
	)

	return buf.Bytes(), format, nil
}

func (t *Transcoder) encodeWebP(buf *bytes.Buffer, img image.Image) error {
	opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, t.opts.WebPQuality)
	if err != nil {
		return err
	}
	opts.Lossless = false
	opts.AlphaQuality = t.opts.WebPAlphaQuality
	opts.Method = t.opts.WebPMethod
	// libwebp 中 near_lossless=100 表示关闭
	opts.NearLossless = 100
	opts.UseSharpYuv = true
	return webp.Encode(buf, img, opts)
}

func (t *Transcoder) encodePNG(buf *bytes.Buffer, img *image.NRGBA) error {
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	return enc.Encode(buf, t.palettize(img))
}

// palettize 生成调色板图片：颜色不超过256时使用精确调色板，
// 否则按质量决定的颜色数做中位切分量化并抖动
func (t *Transcoder) palettize(img *image.NRGBA) *image.Paletted {
	bounds := img.Bounds()
	if p := exactPalette(img, 256); p != nil {
		dst := image.NewPaletted(bounds, p)
		draw.Draw(dst, bounds, img, bounds.Min, draw.Src)
		return dst
	}

	q := quantize.MedianCutQuantizer{AddTransparent: true}
	p := q.Quantize(make(color.Palette, 0, paletteSize(t.opts.PNGQuality)), img)
	dst := image.NewPaletted(bounds, p)
	draw.FloydSteinberg.Draw(dst, bounds, img, bounds.Min)
	return dst
}

func paletteSize(quality int) int {
	n := 256 * quality / 100
	if n < 2 {
		return 2
	}
	if n > 256 {
		return 256
	}
	return n
}

func exactPalette(img *image.NRGBA, max int) color.Palette {
	seen := make(map[color.NRGBA]struct{}, max)
	p := make(color.Palette, 0, max)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.NRGBAAt(x, y)
			if _, ok := seen[c]; ok {
				continue
			}
			if len(p) == max {
				return nil
			}
			seen[c] = struct{}{}
			p = append(p, c)
		}
	}
	return p
}

// hasAlpha 根据解码器报告的颜色模型判断是否带 alpha 通道
func hasAlpha(m color.Model) bool {
	if p, ok := m.(color.Palette); ok {
		for _, c := range p {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
		return false
	}
	switch m {
	case color.NRGBAModel, color.NRGBA64Model, color.AlphaModel, color.Alpha16Model, color.NYCbCrAModel:
		return true
	}
	return false
}
