package monitor

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	const limit = 1000

	assert.Equal(t, LevelNormal, Classify(100, limit))
	assert.Equal(t, LevelNormal, Classify(500, limit))
	assert.Equal(t, LevelNotice, Classify(600, limit))
	assert.Equal(t, LevelWarning, Classify(800, limit))
	assert.Equal(t, LevelCritical, Classify(950, limit))
	assert.Equal(t, LevelNormal, Classify(950, 0))
}

func TestObservePressure(t *testing.T) {
	calls := 0
	w := NewWatcher(1000, time.Minute, func() { calls++ })

	critical := runtime.MemStats{Alloc: 990}
	assert.Equal(t, LevelCritical, w.observe(critical))
	assert.Equal(t, LevelCritical, w.observe(critical))
	assert.Equal(t, 0, calls)
	w.observe(critical)
	assert.Equal(t, 1, calls)

	// 回落后计数清零
	w.observe(critical)
	w.observe(runtime.MemStats{Alloc: 10})
	w.observe(critical)
	w.observe(critical)
	assert.Equal(t, 1, calls)
}

func TestRunStopsOnCancel(t *testing.T) {
	w := NewWatcher(1<<40, time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "critical", LevelCritical.String())
	assert.Equal(t, "normal", Level(42).String())
}
