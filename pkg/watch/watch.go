// Package watch keeps directories warm. A Daemon subscribes to filesystem
// notifications on a set of directories and re-warms files as they are
// created or modified, so the page cache is already hot when consumers open
// them. Bursty writers (editors, copy tools) are absorbed by a per-file
// debounce: a file is warmed once it has stayed quiet for the configured
// interval, not once per write.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/blockwarm/internal/logger"
	"github.com/marmos91/blockwarm/internal/telemetry"
	"github.com/marmos91/blockwarm/pkg/fdpool"
	"github.com/marmos91/blockwarm/pkg/warm"
)

// DefaultDebounce is how long a file must stay quiet after its last event
// before it is warmed.
const DefaultDebounce = 500 * time.Millisecond

// Config holds the daemon configuration.
type Config struct {
	// Dirs are the directories to watch. At least one is required.
	Dirs []string

	// Recursive also watches subdirectories, including ones created while
	// the daemon is running.
	Recursive bool

	// Debounce is the quiet interval a file must reach after its last
	// event before it is warmed. Warming once per write burst avoids
	// reading half-written files. Default 500ms.
	Debounce time.Duration

	// Plan tunes how files are chopped into block requests, including the
	// priority assigned to watch-triggered reads.
	Plan warm.PlanConfig

	// WarmExisting warms the files already present under Dirs when the
	// daemon starts, instead of only reacting to new events.
	WarmExisting bool
}

// Stats is a snapshot of daemon counters.
type Stats struct {
	Dirs        int   `json:"dirs"`         // directories currently watched
	Events      int64 `json:"events"`       // filesystem events received
	FilesWarmed int64 `json:"files_warmed"` // files whose warm batch completed
	BytesWarmed int64 `json:"bytes_warmed"` // bytes read by completed warms
	Failures    int64 `json:"failures"`     // warms that failed to plan, submit, or read
}

// Daemon wires a filesystem watcher to a warm engine.
//
// Lifecycle: New registers the watches, Serve runs the event loop until the
// context is cancelled or Stop is called, then waits for in-flight warms to
// finish. Serve may be called once.
type Daemon struct {
	config  Config
	engine  *warm.Engine
	watcher *fsnotify.Watcher

	// mu guards timers, dirs and stopped. stopped flips once at shutdown
	// so no warm is started after Serve began waiting for the in-flight
	// ones.
	mu      sync.Mutex
	timers  map[string]*time.Timer
	dirs    map[string]struct{}
	stopped bool

	events      atomic.Int64
	filesWarmed atomic.Int64
	bytesWarmed atomic.Int64
	failures    atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// New creates a daemon watching the configured directories. The watches are
// registered immediately; events are consumed once Serve runs.
func New(cfg Config, engine *warm.Engine) (*Daemon, error) {
	if engine == nil {
		return nil, fmt.Errorf("watch: nil engine")
	}
	if len(cfg.Dirs) == 0 {
		return nil, fmt.Errorf("watch: no directories configured")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}

	d := &Daemon{
		config:   cfg,
		engine:   engine,
		watcher:  watcher,
		timers:   make(map[string]*time.Timer),
		dirs:     make(map[string]struct{}),
		shutdown: make(chan struct{}),
	}

	for _, dir := range cfg.Dirs {
		if err := d.addRoot(dir); err != nil {
			_ = watcher.Close()
			return nil, err
		}
	}

	return d, nil
}

// addRoot registers a configured directory and, when recursive, every
// directory below it.
func (d *Daemon) addRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch: %s: not a directory", root)
	}

	if !d.config.Recursive {
		return d.watchDir(root)
	}

	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("watch: %w", err)
		}
		if entry.IsDir() {
			return d.watchDir(path)
		}
		return nil
	})
}

// watchDir registers one directory with the underlying watcher.
func (d *Daemon) watchDir(path string) error {
	if err := d.watcher.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	d.mu.Lock()
	d.dirs[path] = struct{}{}
	d.mu.Unlock()

	logger.Debug("watching directory", logger.KeyPath, path)
	return nil
}

// Serve runs the event loop. It blocks until the context is cancelled or
// Stop is called, then stops pending debounce timers and waits for in-flight
// warms to complete before returning.
func (d *Daemon) Serve(ctx context.Context) error {
	logger.Info("watch daemon started",
		"dirs", len(d.config.Dirs),
		"recursive", d.config.Recursive,
		"debounce", d.config.Debounce.String(),
	)

	if d.config.WarmExisting {
		d.warmExisting(ctx)
	}

	// Monitor context cancellation
	go func() {
		select {
		case <-ctx.Done():
			d.Stop()
		case <-d.shutdown:
		}
	}()

	for {
		select {
		case event, ok := <-d.watcher.Events:
			if !ok {
				return d.drain()
			}
			d.handleEvent(ctx, event)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return d.drain()
			}
			logger.Error("watch error", logger.KeyError, err)
		}
	}
}

// Stop shuts the daemon down. Safe to call multiple times; Serve returns
// once in-flight warms have finished.
func (d *Daemon) Stop() {
	d.shutdownOnce.Do(func() {
		close(d.shutdown)
		// Closing the watcher closes its channels, which unblocks Serve.
		_ = d.watcher.Close()
	})
}

// drain stops pending timers, waits for in-flight warms and returns.
// Runs on the Serve goroutine after the watcher channels close.
func (d *Daemon) drain() error {
	d.mu.Lock()
	d.stopped = true
	for path, timer := range d.timers {
		timer.Stop()
		delete(d.timers, path)
	}
	d.mu.Unlock()

	d.wg.Wait()

	logger.Info("watch daemon stopped",
		"events", d.events.Load(),
		"files_warmed", d.filesWarmed.Load(),
		logger.KeyBytes, d.bytesWarmed.Load(),
	)
	return nil
}

// handleEvent dispatches one filesystem event.
func (d *Daemon) handleEvent(ctx context.Context, event fsnotify.Event) {
	d.events.Add(1)

	switch {
	case event.Op&fsnotify.Create == fsnotify.Create,
		event.Op&fsnotify.Write == fsnotify.Write:
		// Fall through to stat below.

	case event.Op&fsnotify.Remove == fsnotify.Remove,
		event.Op&fsnotify.Rename == fsnotify.Rename:
		d.cancelPending(event.Name)
		d.forgetDir(event.Name)
		return

	default:
		// Chmod and friends do not change content.
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		// Gone between the event and the stat; nothing left to warm.
		d.cancelPending(event.Name)
		return
	}

	if info.IsDir() {
		if d.config.Recursive && event.Op&fsnotify.Create == fsnotify.Create {
			d.watchTree(ctx, event.Name)
		}
		return
	}

	d.scheduleWarm(ctx, event.Name, event.Op.String())
}

// watchTree registers a directory created while running, plus everything
// below it. Files already inside are scheduled for warming: they landed
// before the watch was in place, so no event will ever arrive for them.
func (d *Daemon) watchTree(ctx context.Context, root string) {
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return d.watchDir(path)
		}
		d.scheduleWarm(ctx, path, "CREATE")
		return nil
	})
	if err != nil {
		logger.Warn("watch: add tree failed", logger.KeyPath, root, logger.KeyError, err)
	}
}

// warmExisting schedules every file already present under the configured
// directories.
func (d *Daemon) warmExisting(ctx context.Context) {
	for _, root := range d.config.Dirs {
		err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() {
				if path != root && !d.config.Recursive {
					return fs.SkipDir
				}
				return nil
			}
			d.scheduleWarm(ctx, path, "EXISTING")
			return nil
		})
		if err != nil {
			logger.Warn("watch: scan failed", logger.KeyPath, root, logger.KeyError, err)
		}
	}
}

// scheduleWarm arms (or re-arms) the debounce timer for a path. The warm
// fires once the path has been quiet for the debounce interval.
func (d *Daemon) scheduleWarm(ctx context.Context, path, kind string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if timer, ok := d.timers[path]; ok {
		timer.Reset(d.config.Debounce)
		return
	}
	d.timers[path] = time.AfterFunc(d.config.Debounce, func() {
		d.fire(ctx, path, kind)
	})
}

// cancelPending disarms the debounce timer for a path, if any.
func (d *Daemon) cancelPending(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.timers[path]; ok {
		timer.Stop()
		delete(d.timers, path)
	}
}

// forgetDir drops bookkeeping for a removed or renamed directory. The
// watcher releases the OS watch together with the directory itself.
func (d *Daemon) forgetDir(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.dirs, path)
}

// fire runs when a debounce timer expires. It starts the warm on its own
// goroutine so the timer goroutine is never tied up by I/O.
func (d *Daemon) fire(ctx context.Context, path, kind string) {
	d.mu.Lock()
	delete(d.timers, path)
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.warmFile(ctx, path, kind)
	}()
}

// warmFile plans and reads one file in discard mode, waiting for the batch
// so the counters reflect completed work.
func (d *Daemon) warmFile(ctx context.Context, path, kind string) {
	ctx, span := telemetry.StartWatchSpan(ctx, kind, path)
	defer span.End()

	start := time.Now()

	plan, err := warm.PlanFile(path, d.config.Plan)
	if err != nil {
		d.failures.Add(1)
		telemetry.RecordError(ctx, err)
		logger.Warn("watch: plan failed", logger.KeyPath, path, logger.KeyError, err)
		return
	}
	if plan.Blocks() == 0 {
		return
	}

	batch, err := d.engine.Submit(ctx, plan.Requests, &warm.Options{DiscardData: true})
	if err != nil {
		d.failures.Add(1)
		telemetry.RecordError(ctx, err)
		logger.Warn("watch: submit failed", logger.KeyPath, path, logger.KeyError, err)
		return
	}

	<-batch.Done()

	failed := 0
	for _, res := range batch.Results() {
		if res.Status == warm.StatusError {
			failed++
		}
	}

	d.filesWarmed.Add(1)
	d.bytesWarmed.Add(batch.BytesRead())
	if failed > 0 {
		d.failures.Add(1)
	}

	telemetry.SetAttributes(ctx,
		telemetry.Size(plan.Size),
		telemetry.BytesRead(batch.BytesRead()),
	)

	logger.Debug("watch: file warmed",
		logger.KeyPath, path,
		logger.KeySize, plan.Size,
		logger.KeyBytes, batch.BytesRead(),
		"failed_blocks", failed,
		logger.KeyDurationMs, logger.Duration(start),
	)
}

// Stats returns a snapshot of the daemon counters.
func (d *Daemon) Stats() Stats {
	d.mu.Lock()
	dirs := len(d.dirs)
	d.mu.Unlock()

	return Stats{
		Dirs:        dirs,
		Events:      d.events.Load(),
		FilesWarmed: d.filesWarmed.Load(),
		BytesWarmed: d.bytesWarmed.Load(),
		Failures:    d.failures.Load(),
	}
}

// EngineStats returns a snapshot of the underlying engine counters.
func (d *Daemon) EngineStats() warm.Stats {
	return d.engine.Stats()
}

// PoolStats returns a snapshot of the descriptor pool counters.
func (d *Daemon) PoolStats() fdpool.Stats {
	return d.engine.PoolStats()
}
