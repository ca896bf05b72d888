package types

// ProcessedImage 一张已转码并上传成功的图片
type ProcessedImage struct {
	URL string `json:"url"`
	// Order 是该图片之前出现过的图片文件分段数量（从0开始）
	Order int `json:"order"`
}

// UploadResult 对象存储单次 put 的结果
//
// URL 和 Key 仅在 Success 为 true 时有值
type UploadResult struct {
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Key     string `json:"key,omitempty"`
	Message string `json:"message"`
}

// FieldMap 表单字段，值为字符串或由 JSON 字符串解析出的结构
type FieldMap map[string]any

// SkippedPart 在 skip 策略下被跳过的图片分段
type SkippedPart struct {
	Order       int    `json:"order"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Reason      string `json:"reason"`
}

// Result 转码上传管道的输出
type Result struct {
	Images  []ProcessedImage `json:"images"`
	URLs    []string         `json:"urls"`
	Fields  FieldMap         `json:"fields"`
	Skipped []SkippedPart    `json:"skipped,omitempty"`
}

// RawResult 原样上传管道的输出
type RawResult struct {
	URLs []string `json:"urls"`
}
