package warm

import (
	"fmt"
	"os"
)

// Default planning values.
const (
	// DefaultPlanBlockSize is the read size whole files are chopped
	// into: 256 KiB, large enough to amortize the syscall and small
	// enough to spread one file across the worker pool.
	DefaultPlanBlockSize = 256 << 10

	// DefaultSmallFileSize is the cutoff below which a file is warmed
	// with a single read instead of being chopped. 2 MiB.
	DefaultSmallFileSize = 2 << 20
)

// PlanConfig tunes whole-file planning.
type PlanConfig struct {
	// BlockSize is the per-request read size. Zero means 256 KiB.
	BlockSize int64

	// SmallFileSize is the single-read cutoff. A file at or under it
	// becomes one request covering the whole file. Zero means 2 MiB.
	SmallFileSize int64

	// Priority is assigned to every planned request.
	Priority int
}

func (c PlanConfig) withDefaults() PlanConfig {
	if c.BlockSize <= 0 {
		c.BlockSize = DefaultPlanBlockSize
	}
	if c.SmallFileSize <= 0 {
		c.SmallFileSize = DefaultSmallFileSize
	}
	return c
}

// FilePlan is the outcome of planning one file: block requests covering
// every byte of the file at its size at planning time.
type FilePlan struct {
	// Path of the planned file.
	Path string

	// Size of the file when it was planned.
	Size int64

	// Requests covering [0, Size). Empty for an empty file.
	Requests []BlockRequest
}

// Blocks returns the number of planned requests.
func (p *FilePlan) Blocks() int {
	return len(p.Requests)
}

// PlanFile stats the file at path and chops it into block requests
// covering all of its bytes. Files at or under the small-file cutoff
// become one request; larger files are split into BlockSize reads with
// the final request truncated to the file end, so a fully planned file
// warms with every result Complete.
//
// The file may grow or shrink between planning and reading; the engine
// reports reads past the new end as Partial or EOF like any other
// request.
func PlanFile(path string, cfg PlanConfig) (FilePlan, error) {
	cfg = cfg.withDefaults()

	info, err := os.Stat(path)
	if err != nil {
		return FilePlan{}, fmt.Errorf("warm: plan %s: %w", path, err)
	}
	if info.IsDir() {
		return FilePlan{}, fmt.Errorf("warm: plan %s: is a directory", path)
	}

	plan := FilePlan{Path: path, Size: info.Size()}
	if plan.Size == 0 {
		return plan, nil
	}

	if plan.Size <= cfg.SmallFileSize {
		plan.Requests = []BlockRequest{{
			Path:     path,
			Offset:   0,
			Length:   plan.Size,
			Priority: cfg.Priority,
		}}
		return plan, nil
	}

	blocks := (plan.Size + cfg.BlockSize - 1) / cfg.BlockSize
	plan.Requests = make([]BlockRequest, 0, blocks)
	for off := int64(0); off < plan.Size; off += cfg.BlockSize {
		length := cfg.BlockSize
		if remaining := plan.Size - off; remaining < length {
			length = remaining
		}
		plan.Requests = append(plan.Requests, BlockRequest{
			Path:     path,
			Offset:   off,
			Length:   length,
			Priority: cfg.Priority,
		})
	}
	return plan, nil
}

// PlanFiles plans every path in order. It fails on the first path that
// cannot be planned; callers that want to keep going past bad paths
// call PlanFile per path instead.
func PlanFiles(paths []string, cfg PlanConfig) ([]FilePlan, error) {
	plans := make([]FilePlan, 0, len(paths))
	for _, path := range paths {
		plan, err := PlanFile(path, cfg)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// Flatten concatenates the plans' requests into one submittable batch.
func Flatten(plans []FilePlan) []BlockRequest {
	total := 0
	for i := range plans {
		total += len(plans[i].Requests)
	}
	reqs := make([]BlockRequest, 0, total)
	for i := range plans {
		reqs = append(reqs, plans[i].Requests...)
	}
	return reqs
}
