package commands

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/marmos91/blockwarm/internal/bytesize"
	"github.com/marmos91/blockwarm/internal/cli/output"
	"github.com/marmos91/blockwarm/internal/logger"
	"github.com/marmos91/blockwarm/internal/telemetry"
	"github.com/marmos91/blockwarm/pkg/config"
	"github.com/marmos91/blockwarm/pkg/warm"
	"github.com/spf13/cobra"
)

var (
	warmBlockSize    string
	warmSmallFile    string
	warmConcurrency  int
	warmPerFile      int
	warmCoalesce     string
	warmTimeout      time.Duration
	warmRetryPartial bool
	warmMaxRetries   int
	warmDirect       bool
	warmAdvise       string
	warmPriority     int
	warmRecursive    bool
	warmOutput       string
)

var warmCmd = &cobra.Command{
	Use:   "warm [paths...]",
	Short: "Read files once to pull them into the page cache",
	Long: `Read every block of the given files so their pages land in the OS
page cache before readers need them.

Each file is chopped into block-sized read requests which are scheduled
across a bounded worker pool. Adjacent requests against the same file are
merged into larger physical reads when --coalesce is set. The bytes are
discarded after reading; only the cache effect remains.

Directories are rejected unless --recursive is given, in which case every
regular file underneath them is warmed.

Flags override the matching configuration file settings for this run only.

Examples:
  # Warm two files with defaults
  blockwarm warm /data/model.bin /data/index.db

  # Warm a directory tree with 16 workers and 1MiB coalescing
  blockwarm warm --recursive --concurrency 16 --coalesce 1Mi /data

  # Sequential readahead hints, JSON report
  blockwarm warm --advise sequential --output json /data/big.log`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWarm,
}

func init() {
	flags := warmCmd.Flags()
	flags.StringVar(&warmBlockSize, "block-size", "", "Read granularity for large files (e.g. 256Ki, 1Mi)")
	flags.StringVar(&warmSmallFile, "small-file", "", "Single-read cutoff; smaller files become one read (e.g. 2Mi)")
	flags.IntVar(&warmConcurrency, "concurrency", 0, "In-flight reads across the batch (0 = one per CPU)")
	flags.IntVar(&warmPerFile, "per-file", 0, "Concurrent reads against a single file")
	flags.StringVar(&warmCoalesce, "coalesce", "", "Merge same-file requests closer than this gap (e.g. 64Ki)")
	flags.DurationVar(&warmTimeout, "timeout", 0, "Batch deadline, 0 for none (e.g. 30s)")
	flags.BoolVar(&warmRetryPartial, "retry-partial", false, "Re-read the remainder when a read comes back short")
	flags.IntVar(&warmMaxRetries, "max-retries", 0, "Re-read attempts per request with --retry-partial")
	flags.BoolVar(&warmDirect, "direct", false, "Open files with O_DIRECT (bypasses the cache being warmed)")
	flags.StringVar(&warmAdvise, "advise", "", "posix_fadvise hint: none, sequential, random, willneed, dontneed")
	flags.IntVar(&warmPriority, "priority", 0, "Scheduling priority, higher dispatches first")
	flags.BoolVarP(&warmRecursive, "recursive", "r", false, "Descend into directories")
	flags.StringVarP(&warmOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// fileReport summarizes the warming outcome for one file.
type fileReport struct {
	Path      string `json:"path" yaml:"path"`
	Size      int64  `json:"size" yaml:"size"`
	Blocks    int    `json:"blocks" yaml:"blocks"`
	BytesRead int64  `json:"bytes_read" yaml:"bytes_read"`
	Status    string `json:"status" yaml:"status"`
}

// fileReports renders per-file outcomes as a table.
type fileReports []fileReport

func (r fileReports) Headers() []string {
	return []string{"PATH", "SIZE", "BLOCKS", "READ", "STATUS"}
}

func (r fileReports) Rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, f := range r {
		rows = append(rows, []string{
			f.Path,
			bytesize.ByteSize(f.Size).String(),
			fmt.Sprintf("%d", f.Blocks),
			bytesize.ByteSize(f.BytesRead).String(),
			f.Status,
		})
	}
	return rows
}

// warmReport is the aggregate outcome of one warm run.
type warmReport struct {
	Files      int         `json:"files" yaml:"files"`
	Requests   int         `json:"requests" yaml:"requests"`
	Complete   int         `json:"complete" yaml:"complete"`
	Partial    int         `json:"partial" yaml:"partial"`
	EOF        int         `json:"eof" yaml:"eof"`
	Errors     int         `json:"errors" yaml:"errors"`
	Incomplete int         `json:"incomplete" yaml:"incomplete"`
	BytesRead  int64       `json:"bytes_read" yaml:"bytes_read"`
	Seconds    float64     `json:"seconds" yaml:"seconds"`
	MiBPerSec  float64     `json:"mib_per_sec" yaml:"mib_per_sec"`
	PerFile    fileReports `json:"per_file" yaml:"per_file"`
}

func runWarm(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(warmOutput)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(GetConfigFile())
	if err != nil {
		return err
	}
	if err := applyWarmFlags(cmd, cfg); err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

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

	logger.Debug("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	// Expand arguments into regular files
	paths, err := expandPaths(args, warmRecursive)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no regular files found under the given paths")
	}

	// Plan every file into block requests
	plans, err := warm.PlanFiles(paths, cfg.PlanSettings(warmPriority))
	if err != nil {
		return err
	}
	reqs := warm.Flatten(plans)

	engine, err := config.BuildEngine(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("engine close error", "error", err)
		}
	}()

	// Watch for interrupts so a Ctrl+C still yields a partial report
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	start := time.Now()

	batch, err := engine.Submit(ctx, reqs, &warm.Options{DiscardData: true})
	if err != nil {
		return err
	}

	select {
	case <-batch.Done():
	case sig := <-sigChan:
		logger.Info("Signal received, cancelling outstanding reads", logger.KeySignal, sig.String())
		cancel()
		<-batch.Done()
	}

	report := buildWarmReport(plans, batch.Results(), time.Since(start))

	switch format {
	case output.FormatJSON:
		if err := output.PrintJSON(os.Stdout, report); err != nil {
			return err
		}
	case output.FormatYAML:
		if err := output.PrintYAML(os.Stdout, report); err != nil {
			return err
		}
	default:
		printWarmTable(report)
	}

	if report.Errors > 0 {
		return fmt.Errorf("%d of %d blocks failed", report.Errors, report.Requests)
	}
	if report.Incomplete > 0 {
		return fmt.Errorf("%d of %d blocks never dispatched (cancelled or timed out)", report.Incomplete, report.Requests)
	}

	return nil
}

// applyWarmFlags overlays explicitly set flags onto the loaded configuration.
func applyWarmFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("block-size") {
		size, err := bytesize.ParseByteSize(warmBlockSize)
		if err != nil {
			return fmt.Errorf("invalid --block-size: %w", err)
		}
		cfg.Plan.BlockSize = size
	}
	if flags.Changed("small-file") {
		size, err := bytesize.ParseByteSize(warmSmallFile)
		if err != nil {
			return fmt.Errorf("invalid --small-file: %w", err)
		}
		cfg.Plan.SmallFileSize = size
	}
	if flags.Changed("coalesce") {
		size, err := bytesize.ParseByteSize(warmCoalesce)
		if err != nil {
			return fmt.Errorf("invalid --coalesce: %w", err)
		}
		cfg.Engine.CoalesceDistance = size
	}
	if flags.Changed("concurrency") {
		cfg.Engine.MaxConcurrency = warmConcurrency
	}
	if flags.Changed("per-file") {
		cfg.Engine.MaxPerFile = warmPerFile
	}
	if flags.Changed("timeout") {
		cfg.Engine.Timeout = warmTimeout
	}
	if flags.Changed("retry-partial") {
		cfg.Engine.RetryPartial = warmRetryPartial
	}
	if flags.Changed("max-retries") {
		cfg.Engine.MaxRetries = warmMaxRetries
	}
	if flags.Changed("direct") {
		cfg.Pool.DirectIO = warmDirect
	}
	if flags.Changed("advise") {
		cfg.Engine.Advise = warmAdvise
	}

	return nil
}

// expandPaths resolves the command arguments into regular file paths.
// Directories are walked when recursive is set and rejected otherwise.
func expandPaths(args []string, recursive bool) ([]string, error) {
	var paths []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		if !recursive {
			return nil, fmt.Errorf("%s is a directory (use --recursive to warm its contents)", arg)
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return paths, nil
}

// buildWarmReport aggregates block results back into per-file outcomes.
func buildWarmReport(plans []warm.FilePlan, results []warm.BlockResult, elapsed time.Duration) warmReport {
	report := warmReport{
		Files:   len(plans),
		Seconds: elapsed.Seconds(),
		PerFile: make(fileReports, len(plans)),
	}

	byPath := make(map[string]*fileReport, len(plans))
	for i, plan := range plans {
		report.PerFile[i] = fileReport{
			Path:   plan.Path,
			Size:   plan.Size,
			Blocks: plan.Blocks(),
			Status: warm.StatusComplete.String(),
		}
		byPath[plan.Path] = &report.PerFile[i]
	}

	for _, res := range results {
		report.Requests++
		report.BytesRead += res.BytesRead

		switch res.Status {
		case warm.StatusComplete:
			report.Complete++
		case warm.StatusPartial:
			report.Partial++
		case warm.StatusEOF:
			report.EOF++
		case warm.StatusError:
			report.Errors++
		case warm.StatusIncomplete:
			report.Incomplete++
		}

		if file, ok := byPath[res.Path]; ok {
			file.BytesRead += res.BytesRead
			if statusRank(res.Status) > statusRank(statusFromString(file.Status)) {
				file.Status = res.Status.String()
			}
		}
	}

	if report.Seconds > 0 {
		report.MiBPerSec = float64(report.BytesRead) / (1 << 20) / report.Seconds
	}

	return report
}

// statusRank orders statuses from best to worst so one bad block marks
// the whole file.
func statusRank(s warm.Status) int {
	switch s {
	case warm.StatusComplete:
		return 0
	case warm.StatusEOF:
		return 1
	case warm.StatusPartial:
		return 2
	case warm.StatusIncomplete:
		return 3
	case warm.StatusError:
		return 4
	default:
		return 5
	}
}

func statusFromString(s string) warm.Status {
	switch s {
	case "complete":
		return warm.StatusComplete
	case "eof":
		return warm.StatusEOF
	case "partial":
		return warm.StatusPartial
	case "incomplete":
		return warm.StatusIncomplete
	default:
		return warm.StatusError
	}
}

func printWarmTable(report warmReport) {
	fmt.Println()
	_ = output.PrintTable(os.Stdout, report.PerFile)
	fmt.Println()

	fmt.Printf("Warmed %d files: %d blocks, %s read in %.2fs (%.1f MiB/s)\n",
		report.Files, report.Requests,
		bytesize.ByteSize(report.BytesRead).String(),
		report.Seconds, report.MiBPerSec)

	if report.Partial > 0 || report.EOF > 0 {
		fmt.Printf("  %d partial, %d at end of file (files changed while warming)\n", report.Partial, report.EOF)
	}
	if report.Errors > 0 {
		fmt.Printf("  \033[31m%d blocks failed\033[0m\n", report.Errors)
	}
	if report.Incomplete > 0 {
		fmt.Printf("  \033[33m%d blocks never dispatched\033[0m\n", report.Incomplete)
	}
}
