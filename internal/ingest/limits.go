package ingest

import (
	"fmt"
	"io"

	"github.com/elastic-io/mediagate/internal/types"
)

const (
	MinImageSize = 5 * types.KB
	MaxImageSize = 5 * types.MB
)

// Limits 图片分段的大小校验点，Enforce 为 false 时只读取不校验
type Limits struct {
	Min     int
	Max     int
	Enforce bool
}

func DefaultLimits() Limits {
	return Limits{Min: MinImageSize, Max: MaxImageSize}
}

// read 读取整个分段；开启校验时最多读 Max+1 字节，超大分段不会被完整缓冲
func (l Limits) read(r io.Reader) ([]byte, error) {
	if !l.Enforce {
		return io.ReadAll(r)
	}

	data, err := io.ReadAll(io.LimitReader(r, int64(l.Max)+1))
	if err != nil {
		return nil, err
	}
	if len(data) > l.Max {
		return nil, fmt.Errorf("%w: more than %d bytes", types.ErrImageTooLarge, l.Max)
	}
	if len(data) < l.Min {
		return nil, fmt.Errorf("%w: %d bytes, minimum %d", types.ErrImageTooSmall, len(data), l.Min)
	}
	return data, nil
}
