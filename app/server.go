package app

import (
	"context"
	"fmt"
	"time"

	"github.com/elastic-io/mediagate/internal/api"
	"github.com/elastic-io/mediagate/internal/clients"
	"github.com/elastic-io/mediagate/internal/ingest"
	"github.com/elastic-io/mediagate/internal/journal"
	"github.com/elastic-io/mediagate/internal/log"
	"github.com/elastic-io/mediagate/internal/monitor"
	"github.com/elastic-io/mediagate/internal/options"
	"github.com/elastic-io/mediagate/internal/service"
	"github.com/elastic-io/mediagate/internal/tempfile"
	"github.com/elastic-io/mediagate/internal/transcode"
	"github.com/elastic-io/mediagate/internal/utils"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const monitorInterval = time.Minute

// Server 对外提供上传接口的进程
type Server struct {
	opts    *options.Options
	journal journal.Journal
	server  *api.Server
	cancel  context.CancelFunc
}

// Components 由配置构建出的存储、管道和 journal，serve 和 sweep 共用
type Components struct {
	Store    clients.ObjectStore
	Pipeline *ingest.Pipeline
	Journal  journal.Journal
}

func Build(opts *options.Options) (*Components, error) {
	c := opts.Config
	logger := log.Named("ingest")

	store, err := clients.NewS3Store(c.Store, clients.S3Options{
		S3ForcePathStyle:   true,
		InsecureSkipVerify: opts.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object store: %w", err)
	}
	if !store.Configured() {
		logger.Warn("Object store is not configured, uploads will fail",
			zap.String("endpoint", c.Store.Endpoint),
			zap.String("bucket", c.Store.Bucket))
	}

	ic, err := c.Ingest()
	if err != nil {
		return nil, err
	}
	transcoder := transcode.NewTranscoder(c.Transcode(), log.Named("transcode"))
	pipeline := ingest.New(transcoder, store, tempfile.NewDir(opts.Tmpdir), ic, logger)

	j, err := journal.NewJournal(opts.Journal, opts.JournalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}

	return &Components{Store: store, Pipeline: pipeline, Journal: j}, nil
}

func NewServer(opts *options.Options) (App, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	comps, err := Build(opts)
	if err != nil {
		return nil, err
	}
	opts.Config.Service = service.NewUploadService(comps.Pipeline, comps.Store, comps.Journal, log.Named("service"))
	if err := opts.Config.Validate(); err != nil {
		comps.Journal.Close()
		return nil, err
	}

	return &Server{opts: opts, journal: comps.Journal}, nil
}

func (s *Server) Run() error {
	server := api.New(s.opts.Config)
	if err := server.Init(); err != nil {
		return err
	}
	s.server = server

	if limit := s.opts.MemoryLimit; limit != "" {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		w := monitor.NewWatcher(uint64(utils.MustParseSize(limit)), monitorInterval, nil)
		utils.SafeGo(func() { w.Run(ctx) })
	}
	return server.Serve()
}

func (s *Server) Stop() error {
	var err error
	if s.cancel != nil {
		s.cancel()
	}
	if s.server != nil {
		err = multierr.Append(err, s.server.Done())
	}
	if s.journal != nil {
		err = multierr.Append(err, s.journal.Close())
	}
	return err
}
