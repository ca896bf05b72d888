package monitor

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/elastic-io/mediagate/internal/log"
	"github.com/elastic-io/mediagate/internal/types"
	"go.uber.org/zap"
)

type Level int

const (
	LevelNormal Level = iota
	LevelNotice
	LevelWarning
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelNotice:
		return "notice"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	}
	return "normal"
}

// Classify 按占用 limit 的比例分级：50%、70%、90%
func Classify(alloc, limit uint64) Level {
	if limit == 0 {
		return LevelNormal
	}
	switch {
	case alloc > limit/10*9:
		return LevelCritical
	case alloc > limit/10*7:
		return LevelWarning
	case alloc > limit/2:
		return LevelNotice
	}
	return LevelNormal
}

// Watcher 定期采样堆内存，转码会整张缓冲图片，高水位时主动 GC
type Watcher struct {
	limit    uint64
	interval time.Duration
	// onPressure 连续 3 次处于 critical 时调用
	onPressure func()
	logger     *zap.Logger

	lastGC       time.Time
	highMemCount int
}

func NewWatcher(limit uint64, interval time.Duration, onPressure func()) *Watcher {
	return &Watcher{
		limit:      limit,
		interval:   interval,
		onPressure: onPressure,
		logger:     log.Named("monitor"),
	}
}

func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			w.observe(m)
		}
	}
}

func (w *Watcher) observe(m runtime.MemStats) Level {
	level := Classify(m.Alloc, w.limit)
	fields := []zap.Field{
		zap.Uint64("alloc_mb", m.Alloc/types.MB),
		zap.Uint64("sys_mb", m.Sys/types.MB),
		zap.Uint32("num_gc", m.NumGC),
		zap.String("level", level.String()),
	}

	switch level {
	case LevelCritical:
		w.logger.Warn("Memory usage critical", fields...)
		runtime.GC()
		debug.FreeOSMemory()
		w.lastGC = time.Now()

		w.highMemCount++
		if w.highMemCount >= 3 {
			w.highMemCount = 0
			if w.onPressure != nil {
				w.onPressure()
			}
		}
	case LevelWarning:
		w.logger.Info("Memory usage high", fields...)
		if time.Since(w.lastGC) > 30*time.Second {
			runtime.GC()
			w.lastGC = time.Now()
		}
		w.highMemCount = 0
	default:
		w.logger.Debug("Memory usage", fields...)
		w.highMemCount = 0
	}
	return level
}
