package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/blockwarm/pkg/warm"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

// newTestEngine builds an engine with default settings, closed with the test.
func newTestEngine(t *testing.T) *warm.Engine {
	t.Helper()

	engine, err := warm.New(warm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

// startDaemon creates a daemon and runs Serve on a goroutine. The returned
// stop function cancels the daemon and fails the test if Serve does not
// return promptly.
func startDaemon(t *testing.T, cfg Config) (*Daemon, func()) {
	t.Helper()

	d, err := New(cfg, newTestEngine(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Serve(ctx) }()

	stop := func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("daemon did not stop")
		}
	}
	return d, stop
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()

	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(path, data, 0644))
}

// ============================================================================
// Constructor
// ============================================================================

func TestNew_RequiresEngine(t *testing.T) {
	_, err := New(Config{Dirs: []string{t.TempDir()}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil engine")
}

func TestNew_RequiresDirs(t *testing.T) {
	_, err := New(Config{}, newTestEngine(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no directories")
}

func TestNew_MissingDirectory(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")

	_, err := New(Config{Dirs: []string{missing}}, newTestEngine(t))
	require.Error(t, err)
}

func TestNew_RejectsFileAsDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain.bin")
	writeFile(t, file, 16)

	_, err := New(Config{Dirs: []string{file}}, newTestEngine(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestNew_RecursiveWatchesSubdirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0755))

	d, err := New(Config{Dirs: []string{root}, Recursive: true}, newTestEngine(t))
	require.NoError(t, err)
	defer d.Stop()

	assert.Equal(t, 3, d.Stats().Dirs)
}

func TestNew_FlatWatchesOnlyRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0755))

	d, err := New(Config{Dirs: []string{root}}, newTestEngine(t))
	require.NoError(t, err)
	defer d.Stop()

	assert.Equal(t, 1, d.Stats().Dirs)
}

// ============================================================================
// Event handling
// ============================================================================

func TestServe_WarmsCreatedFile(t *testing.T) {
	root := t.TempDir()
	d, stop := startDaemon(t, Config{Dirs: []string{root}, Debounce: 50 * time.Millisecond})
	defer stop()

	const size = 8192
	writeFile(t, filepath.Join(root, "data.bin"), size)

	waitFor(t, 5*time.Second, func() bool {
		return d.Stats().FilesWarmed == 1
	}, "file was never warmed")

	stats := d.Stats()
	assert.Equal(t, int64(size), stats.BytesWarmed)
	assert.Zero(t, stats.Failures)
	assert.Greater(t, stats.Events, int64(0))
}

func TestServe_DebouncesWriteBursts(t *testing.T) {
	root := t.TempDir()
	d, stop := startDaemon(t, Config{Dirs: []string{root}, Debounce: 250 * time.Millisecond})
	defer stop()

	// Back-to-back rewrites land well inside one debounce window.
	path := filepath.Join(root, "burst.bin")
	for i := 0; i < 3; i++ {
		writeFile(t, path, 4096)
	}

	waitFor(t, 5*time.Second, func() bool {
		return d.Stats().FilesWarmed >= 1
	}, "file was never warmed")

	// Allow a stray second warm to surface before asserting.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int64(1), d.Stats().FilesWarmed)
}

func TestServe_RemoveCancelsPendingWarm(t *testing.T) {
	root := t.TempDir()
	d, stop := startDaemon(t, Config{Dirs: []string{root}, Debounce: 500 * time.Millisecond})
	defer stop()

	path := filepath.Join(root, "gone.bin")
	writeFile(t, path, 4096)

	waitFor(t, 5*time.Second, func() bool {
		return d.Stats().Events > 0
	}, "create event never arrived")

	require.NoError(t, os.Remove(path))

	// Well past the debounce interval: the pending warm must not fire.
	time.Sleep(800 * time.Millisecond)
	assert.Zero(t, d.Stats().FilesWarmed)
}

func TestServe_RecursiveWarmsNewSubdirectory(t *testing.T) {
	root := t.TempDir()
	d, stop := startDaemon(t, Config{
		Dirs:      []string{root},
		Recursive: true,
		Debounce:  50 * time.Millisecond,
	})
	defer stop()

	sub := filepath.Join(root, "incoming")
	require.NoError(t, os.Mkdir(sub, 0755))

	waitFor(t, 5*time.Second, func() bool {
		return d.Stats().Dirs == 2
	}, "subdirectory was never watched")

	writeFile(t, filepath.Join(sub, "nested.bin"), 4096)

	waitFor(t, 5*time.Second, func() bool {
		return d.Stats().FilesWarmed == 1
	}, "nested file was never warmed")
}

func TestServe_WarmExisting(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "old1.bin"), 4096)
	writeFile(t, filepath.Join(root, "old2.bin"), 2048)

	d, stop := startDaemon(t, Config{
		Dirs:         []string{root},
		Debounce:     50 * time.Millisecond,
		WarmExisting: true,
	})
	defer stop()

	waitFor(t, 5*time.Second, func() bool {
		return d.Stats().FilesWarmed == 2
	}, "existing files were never warmed")

	assert.Equal(t, int64(4096+2048), d.Stats().BytesWarmed)
}

// ============================================================================
// Lifecycle
// ============================================================================

func TestServe_ReturnsOnContextCancel(t *testing.T) {
	d, err := New(Config{Dirs: []string{t.TempDir()}}, newTestEngine(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Serve(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestStop_Idempotent(t *testing.T) {
	d, err := New(Config{Dirs: []string{t.TempDir()}}, newTestEngine(t))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- d.Serve(context.Background()) }()

	d.Stop()
	d.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}

func TestStats_ExposesEngineAndPool(t *testing.T) {
	root := t.TempDir()
	d, stop := startDaemon(t, Config{Dirs: []string{root}, Debounce: 50 * time.Millisecond})
	defer stop()

	writeFile(t, filepath.Join(root, "data.bin"), 4096)

	waitFor(t, 5*time.Second, func() bool {
		return d.Stats().FilesWarmed == 1
	}, "file was never warmed")

	assert.Equal(t, int64(1), d.EngineStats().Batches)
	assert.Equal(t, int64(4096), d.EngineStats().BytesRead)
	assert.GreaterOrEqual(t, d.PoolStats().Opens, int64(1))
}