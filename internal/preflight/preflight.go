package preflight

import (
	"context"
	"fmt"

	"mediaconv/internal/config"
	"mediaconv/internal/deps"
)

// Result reports the outcome of a single preflight check. Advisory results
// never block startup.
type Result struct {
	Name     string
	Passed   bool
	Advisory bool
	Detail   string
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Movies root", cfg.Paths.MoviesRoot))
	results = append(results, CheckDirectoryAccess("TV root", cfg.Paths.TVRoot))
	results = append(results, CheckDirectoryAccess("Movies archive", cfg.Paths.TargetMoviesDir))
	results = append(results, CheckDirectoryAccess("TV archive", cfg.Paths.TargetTVDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	for _, status := range CheckSystemDeps(ctx, cfg) {
		results = append(results, fromStatus(status))
	}
	results = append(results, fromStatus(deps.CheckEncoder(ctx, FFmpegBinary(cfg), "hevc_qsv")))
	results = append(results, CheckDevice("QSV device", cfg.Encoding.QSVDevice))
	results = append(results, CheckQuality(cfg.Encoding.GlobalQuality))
	results = append(results, CheckFreeSpace("Work space", cfg.Paths.StateDir, minWorkFreeBytes))
	results = append(results, CheckMemory(ctx, minAvailableMemory))
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Advisory {
			failed = append(failed, r)
		}
	}
	return failed
}

// Summarize renders failed checks as a single error, or nil when all
// required checks passed.
func Summarize(results []Result) error {
	failed := Failed(results)
	if len(failed) == 0 {
		return nil
	}
	msg := fmt.Sprintf("%d preflight check(s) failed:", len(failed))
	for _, r := range failed {
		msg += fmt.Sprintf(" %s (%s);", r.Name, r.Detail)
	}
	return fmt.Errorf("%s", msg[:len(msg)-1])
}

func fromStatus(status deps.Status) Result {
	r := Result{Name: status.Name, Passed: status.Available, Advisory: status.Optional}
	switch {
	case !status.Available:
		r.Detail = status.Detail
	case status.Version != "":
		r.Detail = fmt.Sprintf("%s (%s)", status.Path, status.Version)
	case status.Path != "":
		r.Detail = status.Path
	default:
		r.Detail = status.Command
	}
	return r
}
