package service

import (
	"context"
	"fmt"
	"time"

	"github.com/elastic-io/mediagate/internal/clients"
	"github.com/elastic-io/mediagate/internal/journal"
	"github.com/elastic-io/mediagate/internal/types"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type SweepOptions struct {
	DryRun bool
	// PendingAge 大于 0 时，早于该时长的 pending 记录也视为孤儿（进程在请求中途退出）
	PendingAge time.Duration
}

type SweepReport struct {
	Found   int
	Deleted int
	Keys    []string
}

// Sweeper 删除失败请求遗留的对象
type Sweeper struct {
	store   clients.ObjectStore
	journal journal.Journal
	logger  *zap.Logger
	now     func() time.Time
}

func NewSweeper(store clients.ObjectStore, j journal.Journal, logger *zap.Logger) *Sweeper {
	return &Sweeper{store: store, journal: j, logger: logger, now: time.Now}
}

func (s *Sweeper) orphans(pendingAge time.Duration) ([]journal.Entry, error) {
	entries, err := s.journal.List(types.RecordFailed)
	if err != nil {
		return nil, fmt.Errorf("list failed records: %w", err)
	}
	if pendingAge <= 0 {
		return entries, nil
	}

	pending, err := s.journal.List(types.RecordPending)
	if err != nil {
		return nil, fmt.Errorf("list pending records: %w", err)
	}
	cutoff := s.now().Add(-pendingAge)
	for _, e := range pending {
		if e.CreatedAt.Before(cutoff) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Sweep 单个对象删除失败不影响其他对象，所有错误合并返回
func (s *Sweeper) Sweep(ctx context.Context, opts SweepOptions) (*SweepReport, error) {
	if !opts.DryRun && !s.store.Configured() {
		return nil, types.ErrStoreNotConfigured
	}

	entries, err := s.orphans(opts.PendingAge)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Found: len(entries)}
	var errs error
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return report, multierr.Append(errs, err)
		}
		report.Keys = append(report.Keys, e.Key)
		if opts.DryRun {
			s.logger.Info("Orphaned object",
				zap.String("request_id", e.RequestID),
				zap.String("key", e.Key),
				zap.String("state", string(e.State)),
				zap.Time("created_at", e.CreatedAt))
			continue
		}

		if err := s.store.Delete(ctx, e.Key); err != nil {
			s.logger.Warn("Failed to delete orphaned object", zap.String("key", e.Key), zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		if err := s.journal.Remove(e.RequestID, e.Key); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("remove record %s: %w", e.Key, err))
			continue
		}
		report.Deleted++
	}

	s.logger.Info("Sweep completed",
		zap.Bool("dry_run", opts.DryRun),
		zap.Int("found", report.Found),
		zap.Int("deleted", report.Deleted))
	return report, errs
}
