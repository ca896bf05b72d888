// Package journal durably records the objects each request wrote to the
// object store, so that uploads left behind by failed requests can be swept.
package journal

import (
	"fmt"

	"github.com/elastic-io/mediagate/internal/types"
)

// Entry 一条上传记录
type Entry = types.UploadRecord

// Journal 上传记录的持久化接口
type Journal interface {
	// Record 写入一条 pending 记录
	Record(e Entry) error
	// Finish 把某个请求的所有记录置为终态；completed 的记录不再需要，直接删除
	Finish(requestID string, state types.RecordState) error
	// List 列出指定状态的记录，state 为空时列出全部
	List(state types.RecordState) ([]Entry, error)
	Remove(requestID, key string) error
	Close() error
}

// None 关闭记录功能时使用的后端名
const None = "none"

type backend func(string) (Journal, error)

var Backends = map[string]backend{}

func BackendRegister(name string, be backend) {
	if _, ok := Backends[name]; ok {
		panic(fmt.Errorf("journal backend %s already registered", name))
	}
	Backends[name] = be
}

func NewJournal(engine, path string) (Journal, error) {
	if engine == "" || engine == None {
		return Nop{}, nil
	}
	if backend, ok := Backends[engine]; ok {
		return backend(path)
	}
	return nil, fmt.Errorf("journal backend %s not found", engine)
}

// EntryKey 后端存储使用的键，同一请求的记录共享前缀
func EntryKey(requestID, key string) string {
	return RequestPrefix(requestID) + key
}

func RequestPrefix(requestID string) string {
	return requestID + "/"
}

// Nop 不做任何记录
type Nop struct{}

func (Nop) Record(Entry) error                      { return nil }
func (Nop) Finish(string, types.RecordState) error  { return nil }
func (Nop) List(types.RecordState) ([]Entry, error) { return nil, nil }
func (Nop) Remove(string, string) error             { return nil }
func (Nop) Close() error                            { return nil }
