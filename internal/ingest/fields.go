package ingest

import (
	"encoding/json"
	"strings"
)

// parseFieldValue 以 { 或 [ 开头的值尝试按 JSON 解析，失败则保留原始字符串
func parseFieldValue(raw string) any {
	if !strings.HasPrefix(raw, "{") && !strings.HasPrefix(raw, "[") {
		return raw
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
