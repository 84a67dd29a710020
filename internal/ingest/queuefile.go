package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"mediaconv/internal/logging"
)

const lockRetryDelay = 250 * time.Millisecond

// FileReport summarizes one pass over the ingestion file.
type FileReport struct {
	Outcomes []Outcome
	Kept     []string
}

// Enqueued returns the number of new jobs created by the pass.
func (r FileReport) Enqueued() int {
	total := 0
	for _, out := range r.Outcomes {
		total += len(out.Enqueued)
	}
	return total
}

// LockPath is the lock file guarding an ingestion file.
func LockPath(queueFile string) string {
	return queueFile + ".lock"
}

// ConsumeFile ingests every path listed in queueFile. Queued and rejected
// lines are removed; deferred lines stay for the next pass. Lines appended
// while the pass ran are preserved.
func (i *Ingester) ConsumeFile(ctx context.Context, queueFile string) (FileReport, error) {
	var report FileReport
	lock := flock.New(LockPath(queueFile))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return report, fmt.Errorf("lock ingestion file: %w", err)
	}
	if !locked {
		return report, errors.New("ingestion file is locked by another process")
	}
	defer func() { _ = lock.Unlock() }()

	original, err := os.ReadFile(queueFile)
	if errors.Is(err, os.ErrNotExist) {
		return report, nil
	}
	if err != nil {
		return report, fmt.Errorf("read ingestion file: %w", err)
	}

	seen := make(map[string]bool)
	for _, line := range strings.Split(string(original), "\n") {
		path := strings.TrimSpace(line)
		if path == "" || strings.HasPrefix(path, "#") {
			continue
		}
		if seen[path] {
			continue
		}
		seen[path] = true
		if err := ctx.Err(); err != nil {
			report.Kept = append(report.Kept, path)
			continue
		}
		out := i.IngestPath(ctx, path)
		report.Outcomes = append(report.Outcomes, out)
		if out.Disposition == DispositionDeferred {
			report.Kept = append(report.Kept, path)
		}
	}

	if err := rewriteQueueFile(queueFile, len(original), report.Kept); err != nil {
		return report, err
	}
	if len(report.Outcomes) > 0 {
		i.logger.Info("ingestion file consumed",
			logging.Int("paths", len(report.Outcomes)),
			logging.Int("enqueued", report.Enqueued()),
			logging.Int("kept", len(report.Kept)),
		)
	}
	return report, nil
}

// rewriteQueueFile replaces the consumed prefix of the file with the kept
// lines, carrying over anything written after the prefix was read.
func rewriteQueueFile(path string, consumed int, kept []string) error {
	current, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reread ingestion file: %w", err)
	}
	var appended string
	if len(current) > consumed {
		appended = string(current[consumed:])
	}

	var builder strings.Builder
	for _, line := range kept {
		builder.WriteString(line)
		builder.WriteByte('\n')
	}
	builder.WriteString(appended)
	if builder.String() == string(current) {
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".conversion-*.tmp")
	if err != nil {
		return fmt.Errorf("rewrite ingestion file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(builder.String()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("rewrite ingestion file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rewrite ingestion file: %w", err)
	}
	if info, err := os.Stat(path); err == nil {
		_ = os.Chmod(tmpName, info.Mode().Perm())
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rewrite ingestion file: %w", err)
	}
	return nil
}
