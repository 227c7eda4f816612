package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"footerscan/internal/config"
)

func daemonConfig(t *testing.T, watch bool) *config.Config {
	t.Helper()
	return &config.Config{
		Input: config.InputConfig{Directory: t.TempDir(), Extensions: []string{".png"}},
		OCR:   config.OCRConfig{URL: "http://localhost:1"},
		Daemon: config.DaemonConfig{
			Watch:    watch,
			Debounce: config.Duration(50 * time.Millisecond),
		},
	}
}

func TestNewValidation(t *testing.T) {
	cfg := daemonConfig(t, false)
	_, err := New(nil, func() int { return 0 }, nil)
	assert.Error(t, err)
	_, err = New(cfg, nil, nil)
	assert.Error(t, err)
	_, err = New(cfg, func() int { return 0 }, nil)
	assert.NoError(t, err)
}

func TestWatcherDebouncesIntoSingleRun(t *testing.T) {
	cfg := daemonConfig(t, true)

	var runs atomic.Int64
	d, err := New(cfg, func() int { runs.Add(1); return 0 }, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() { _ = d.Start(ctx); close(done) }()

	// Burst of file drops inside one debounce window.
	for i := 0; i < 3; i++ {
		path := filepath.Join(cfg.Input.Directory, "page.png")
		require.NoError(t, os.WriteFile(path, []byte{byte(i)}, 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 20*time.Millisecond)
	// No further runs after the window closes.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int64(1), runs.Load())

	cancel()
	require.NoError(t, d.Stop(context.Background()))
	<-done
}

func TestRequestRunCoalesces(t *testing.T) {
	cfg := daemonConfig(t, false)

	var runs atomic.Int64
	block := make(chan struct{})
	d, err := New(cfg, func() int {
		runs.Add(1)
		<-block
		return 0
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Start(ctx) }()

	d.requestRun("test")
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 10*time.Millisecond)

	// While the first run blocks, many requests collapse into one pending run.
	for i := 0; i < 5; i++ {
		d.requestRun("test")
	}
	close(block)

	assert.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(2), runs.Load())
}
