package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/marmos91/blockwarm/internal/logger"
	"github.com/marmos91/blockwarm/internal/telemetry"
	"github.com/marmos91/blockwarm/pkg/api"
	"github.com/marmos91/blockwarm/pkg/config"
	"github.com/marmos91/blockwarm/pkg/watch"
	"github.com/spf13/cobra"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/blockwarm/pkg/metrics/prometheus"
)

var (
	watchForeground   bool
	watchPidFile      string
	watchLogFile      string
	watchDirs         []string
	watchRecursive    bool
	watchWarmExisting bool
	watchDebounce     time.Duration
	watchPriority     int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep directories warm as files change",
	Long: `Watch directories and re-warm files as they are created or modified,
keeping the page cache hot for readers that follow the writers.

File events are debounced so a burst of writes warms the file once, after
it goes quiet. With --recursive, subdirectories created while the daemon
runs are picked up automatically.

By default, the daemon runs in the background. Use --foreground to run in
the foreground for debugging or when managed by a process supervisor.

Directories come from --dir flags or the watch.dirs configuration key;
flags take precedence.

Examples:
  # Watch a directory in the background
  blockwarm watch --dir /data/hot

  # Watch a tree in the foreground, warming existing files first
  blockwarm watch --foreground --recursive --warm-existing --dir /data

  # Watch with environment variable overrides
  BLOCKWARM_LOGGING_LEVEL=DEBUG blockwarm watch --foreground --dir /data`,
}

func init() {
	watchCmd.RunE = runWatch

	flags := watchCmd.Flags()
	flags.BoolVarP(&watchForeground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	flags.StringVar(&watchPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/blockwarm/blockwarm.pid)")
	flags.StringVar(&watchLogFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/blockwarm/blockwarm.log)")
	flags.StringArrayVarP(&watchDirs, "dir", "d", nil, "Directory to watch (repeatable)")
	flags.BoolVarP(&watchRecursive, "recursive", "r", false, "Also watch subdirectories")
	flags.BoolVar(&watchWarmExisting, "warm-existing", false, "Warm files already present on startup")
	flags.DurationVar(&watchDebounce, "debounce", 0, "Quiet period after a write burst before re-warming")
	flags.IntVar(&watchPriority, "priority", 0, "Scheduling priority for watch-triggered batches")
}

func runWatch(cmd *cobra.Command, args []string) error {
	// Handle daemon mode (background)
	if !watchForeground {
		return startWatchDaemon()
	}

	cfg, err := loadConfig(GetConfigFile())
	if err != nil {
		return err
	}
	applyWatchFlags(cmd, cfg)

	if len(cfg.Watch.Dirs) == 0 {
		return fmt.Errorf("no directories to watch\n\n" +
			"Pass directories with --dir or set watch.dirs in the configuration file")
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry (if enabled)
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "blockwarm",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "blockwarm",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	fmt.Println("BlockWarm - page cache warming daemon")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	} else {
		logger.Info("Profiling disabled")
	}

	// Initialize metrics (if enabled)
	metricsHandler := config.InitializeMetrics(cfg)

	// Build the warming engine
	engine, err := config.BuildEngine(cfg)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("engine close error", "error", err)
		}
	}()

	// Create the watch daemon
	daemon, err := watch.New(watch.Config{
		Dirs:         cfg.Watch.Dirs,
		Recursive:    cfg.Watch.Recursive,
		Debounce:     cfg.Watch.Debounce,
		Plan:         cfg.PlanSettings(cfg.Watch.Priority),
		WarmExisting: cfg.Watch.WarmExisting,
	}, engine)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Start the status API server (if enabled)
	var apiDone chan error
	if cfg.API.IsEnabled() {
		apiServer := api.NewServer(cfg.API, daemon, metricsHandler)
		apiDone = make(chan error, 1)
		go func() {
			apiDone <- apiServer.Start(ctx)
		}()
		logger.Info("Status API configured", "port", apiServer.Port())
	} else {
		logger.Info("Status API disabled")
	}

	// Write PID file if specified
	if watchPidFile != "" {
		if err := os.WriteFile(watchPidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(watchPidFile) }()
	}

	// Start the watcher in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- daemon.Serve(ctx)
	}()

	// Wait for interrupt signal or watcher error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Watching directories. Press Ctrl+C to stop.", "dirs", cfg.Watch.Dirs)

	select {
	case sig := <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown", logger.KeySignal, sig.String())
		cancel()

		// Wait for the watcher to drain in-flight warms, bounded by the
		// configured shutdown timeout
		select {
		case err := <-serverDone:
			if err != nil {
				logger.Error("Watcher shutdown error", "error", err)
				return err
			}
			logger.Info("Watcher stopped gracefully")
		case <-time.After(cfg.ShutdownTimeout):
			logger.Error("Graceful shutdown timed out", "timeout", cfg.ShutdownTimeout)
			return fmt.Errorf("graceful shutdown timed out after %s", cfg.ShutdownTimeout)
		}

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Watcher error", "error", err)
			return err
		}
		logger.Info("Watcher stopped")
	}

	// The status server shuts down on the same context
	cancel()
	if apiDone != nil {
		if err := <-apiDone; err != nil {
			logger.Error("Status server shutdown error", "error", err)
		}
	}

	return nil
}

// applyWatchFlags overlays explicitly set flags onto the loaded configuration.
func applyWatchFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if len(watchDirs) > 0 {
		cfg.Watch.Dirs = watchDirs
	}
	if flags.Changed("recursive") {
		cfg.Watch.Recursive = watchRecursive
	}
	if flags.Changed("warm-existing") {
		cfg.Watch.WarmExisting = watchWarmExisting
	}
	if flags.Changed("debounce") {
		cfg.Watch.Debounce = watchDebounce
	}
	if flags.Changed("priority") {
		cfg.Watch.Priority = watchPriority
	}
}

// startWatchDaemon starts the watcher as a background daemon process.
func startWatchDaemon() error {
	stateDir := GetDefaultStateDir()

	// Create state directory if it doesn't exist
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	// Set default PID file if not specified
	pidPath := watchPidFile
	if pidPath == "" {
		pidPath = filepath.Join(stateDir, "blockwarm.pid")
	}

	// Check if already running
	if _, err := os.Stat(pidPath); err == nil {
		pidData, err := os.ReadFile(pidPath)
		if err == nil {
			var pid int
			if _, err := fmt.Sscanf(string(pidData), "%d", &pid); err == nil {
				// Check if process is still running
				if process, err := os.FindProcess(pid); err == nil {
					if err := process.Signal(syscall.Signal(0)); err == nil {
						return fmt.Errorf("BlockWarm is already running (PID %d)\nUse 'blockwarm stop' to stop the running instance", pid)
					}
				}
			}
		}
		// Stale PID file, remove it
		_ = os.Remove(pidPath)
	}

	// Set default log file if not specified
	logPath := watchLogFile
	if logPath == "" {
		logPath = filepath.Join(stateDir, "blockwarm.log")
	}

	// Get the executable path
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	// Build arguments for the daemon process, forwarding the watch flags
	daemonArgs := []string{"watch", "--foreground", "--pid-file", pidPath}
	if GetConfigFile() != "" {
		daemonArgs = append(daemonArgs, "--config", GetConfigFile())
	}
	for _, dir := range watchDirs {
		daemonArgs = append(daemonArgs, "--dir", dir)
	}
	if watchRecursive {
		daemonArgs = append(daemonArgs, "--recursive")
	}
	if watchWarmExisting {
		daemonArgs = append(daemonArgs, "--warm-existing")
	}
	if watchCmd.Flags().Changed("debounce") {
		daemonArgs = append(daemonArgs, "--debounce", watchDebounce.String())
	}
	if watchCmd.Flags().Changed("priority") {
		daemonArgs = append(daemonArgs, "--priority", strconv.Itoa(watchPriority))
	}

	// Create the daemon process
	cmd := exec.Command(executable, daemonArgs...)

	// Open log file for stdout/stderr
	logFileHandle, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	cmd.Stdout = logFileHandle
	cmd.Stderr = logFileHandle

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	// Start the daemon
	if err := cmd.Start(); err != nil {
		_ = logFileHandle.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	_ = logFileHandle.Close()

	fmt.Printf("BlockWarm started in background (PID %d)\n", cmd.Process.Pid)
	fmt.Printf("  PID file: %s\n", pidPath)
	fmt.Printf("  Log file: %s\n", logPath)
	fmt.Println("\nUse 'blockwarm stop' to stop the daemon")
	fmt.Println("Use 'blockwarm status' to check daemon status")

	return nil
}
