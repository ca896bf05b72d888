package types

import "time"

type RecordState string

const (
	RecordPending   RecordState = "pending"
	RecordCompleted RecordState = "completed"
	RecordFailed    RecordState = "failed"
)

// UploadRecord 记录一次请求内成功写入对象存储的 key
//
//go:generate easyjson -all journal.go
type UploadRecord struct {
	RequestID string
	Key       string
	URL       string
	Category  string
	State     RecordState
	CreatedAt time.Time
}
