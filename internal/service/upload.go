package service

import (
	"context"
	"mime/multipart"

	"github.com/elastic-io/mediagate/internal/clients"
	"github.com/elastic-io/mediagate/internal/ingest"
	"github.com/elastic-io/mediagate/internal/journal"
	"github.com/elastic-io/mediagate/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type UploadService interface {
	Ingest(ctx context.Context, mr *multipart.Reader) (*types.Result, error)
	IngestRaw(ctx context.Context, mr *multipart.Reader) (*types.RawResult, error)
	Delete(ctx context.Context, key string) error
}

// uploadService 为每个请求分配 id，并把成功写入的对象记入 journal
type uploadService struct {
	pipeline *ingest.Pipeline
	store    clients.ObjectStore
	journal  journal.Journal
	logger   *zap.Logger
}

func NewUploadService(pipeline *ingest.Pipeline, store clients.ObjectStore, j journal.Journal, logger *zap.Logger) UploadService {
	if j == nil {
		j = journal.Nop{}
	}
	return &uploadService{
		pipeline: pipeline,
		store:    store,
		journal:  j,
		logger:   logger,
	}
}

func (s *uploadService) Ingest(ctx context.Context, mr *multipart.Reader) (*types.Result, error) {
	rs := s.begin()
	res, err := s.pipeline.WithStore(rs).Ingest(ctx, mr)
	s.finish(rs, err)
	return res, err
}

func (s *uploadService) IngestRaw(ctx context.Context, mr *multipart.Reader) (*types.RawResult, error) {
	rs := s.begin()
	res, err := s.pipeline.WithStore(rs).IngestRaw(ctx, mr)
	s.finish(rs, err)
	return res, err
}

func (s *uploadService) Delete(ctx context.Context, key string) error {
	if !s.store.Configured() {
		return types.ErrStoreNotConfigured
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return err
	}
	s.logger.Info("Object deleted", zap.String("key", key))
	return nil
}

func (s *uploadService) begin() *recordingStore {
	return &recordingStore{
		ObjectStore: s.store,
		requestID:   uuid.New().String(),
		journal:     s.journal,
		logger:      s.logger,
	}
}

// finish 把本次请求的记录置为终态，journal 出错只记日志
func (s *uploadService) finish(rs *recordingStore, err error) {
	if rs.recorded == 0 {
		return
	}
	state := types.RecordCompleted
	if err != nil {
		state = types.RecordFailed
		s.logger.Warn("Request failed after storing objects, left for sweep",
			zap.String("request_id", rs.requestID),
			zap.Int("objects", rs.recorded),
			zap.Error(err))
	}
	if jerr := s.journal.Finish(rs.requestID, state); jerr != nil {
		s.logger.Error("Failed to finish journal records",
			zap.String("request_id", rs.requestID),
			zap.Error(jerr))
	}
}

// recordingStore 包装对象存储，每次成功写入后记录一条 pending 记录
//
// 单个请求内分段顺序处理，recorded 无需加锁
type recordingStore struct {
	clients.ObjectStore
	requestID string
	journal   journal.Journal
	logger    *zap.Logger
	recorded  int
}

func (r *recordingStore) Put(ctx context.Context, body []byte, contentType, category string) (*types.UploadResult, error) {
	res, err := r.ObjectStore.Put(ctx, body, contentType, category)
	r.record(res, err, category)
	return res, err
}

func (r *recordingStore) PutFile(ctx context.Context, path, contentType, category string) (*types.UploadResult, error) {
	res, err := r.ObjectStore.PutFile(ctx, path, contentType, category)
	r.record(res, err, category)
	return res, err
}

func (r *recordingStore) record(res *types.UploadResult, err error, category string) {
	if err != nil || res == nil || !res.Success {
		return
	}
	jerr := r.journal.Record(journal.Entry{
		RequestID: r.requestID,
		Key:       res.Key,
		URL:       res.URL,
		Category:  category,
		State:     types.RecordPending,
	})
	if jerr != nil {
		r.logger.Error("Failed to record upload",
			zap.String("request_id", r.requestID),
			zap.String("key", res.Key),
			zap.Error(jerr))
		return
	}
	r.recorded++
}
