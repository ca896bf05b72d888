package ingest

import (
	"context"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/elastic-io/mediagate/internal/types"
	"go.uber.org/zap"
)

// IngestRaw 原样上传图片分段，不转码；非文件和非图片分段直接丢弃
func (p *Pipeline) IngestRaw(ctx context.Context, mr *multipart.Reader) (*types.RawResult, error) {
	res := &types.RawResult{URLs: []string{}}

	var skipped []types.SkippedPart
	order := 0
	err := p.eachPart(ctx, mr, func(part *multipart.Part) error {
		contentType := partContentType(part)
		if part.FileName() == "" || !isAllowedImage(contentType) {
			_, err := io.Copy(io.Discard, part)
			return err
		}

		idx := order
		order++
		data, err := p.cfg.Limits.read(part)
		if err == nil {
			var url string
			url, err = p.upload(ctx, data, rawExt(part.FileName(), contentType), contentType, CategoryRaw)
			if err == nil {
				res.URLs = append(res.URLs, url)
				return nil
			}
		}
		return p.partFailure(&skipped, idx, part, contentType, err)
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("Raw multipart ingest completed",
		zap.Int("urls", len(res.URLs)),
		zap.Int("skipped", len(skipped)))
	return res, nil
}

// maxExtLen 临时文件扩展名的最大长度，包含开头的点
const maxExtLen = 8

var contentTypeExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// rawExt 沿用客户端文件名的扩展名；过长或含字母数字以外的字符时按 content type 取扩展名
func rawExt(filename, contentType string) string {
	ext := filepath.Ext(filename)
	if len(ext) < 2 || len(ext) > maxExtLen {
		return contentTypeExt[contentType]
	}
	if strings.IndexFunc(ext[1:], func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}) >= 0 {
		return contentTypeExt[contentType]
	}
	return ext
}
