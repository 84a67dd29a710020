package ingest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediaconv/internal/classify"
	"mediaconv/internal/config"
	"mediaconv/internal/ingest"
	"mediaconv/internal/queue"
	"mediaconv/internal/testsupport"
)

const mib = 1 << 20

type flakyStore struct {
	inner  ingest.JobStore
	failOn string
}

func (s *flakyStore) Enqueue(ctx context.Context, job queue.NewJob) (int64, error) {
	if s.failOn != "" && strings.Contains(job.SourcePath, s.failOn) {
		return 0, errors.New("database is locked")
	}
	return s.inner.Enqueue(ctx, job)
}

func newIngester(t *testing.T, failOn string) (*ingest.Ingester, *queue.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	classifier := classify.NewFromConfig(cfg, nil, nil)
	return ingest.New(classifier, &flakyStore{inner: store, failOn: failOn}, nil), store, cfg
}

func TestIngestPathQueuesMovieOnce(t *testing.T) {
	ing, store, cfg := newIngester(t, "")
	path := filepath.Join(cfg.Paths.MoviesRoot, "Heat.1995.1080p.BluRay.mkv")
	testsupport.WriteSparseFile(t, path, 2*mib)

	out := ing.IngestPath(context.Background(), path)
	if out.Disposition != ingest.DispositionQueued || len(out.Enqueued) != 1 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	job := testsupport.MustGet(t, store, out.Enqueued[0])
	if job.Title != "Heat.1995" || job.MediaType != queue.MediaMovie {
		t.Fatalf("unexpected job %+v", job)
	}

	again := ing.IngestPath(context.Background(), path)
	if again.Disposition != ingest.DispositionQueued || again.Duplicates != 1 || len(again.Enqueued) != 0 {
		t.Fatalf("expected duplicate on second ingest, got %+v", again)
	}
	jobs, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected a single job, got %d", len(jobs))
	}
}

func TestIngestPathRejectsUnroutablePaths(t *testing.T) {
	ing, _, cfg := newIngester(t, "")

	outside := ing.IngestPath(context.Background(), "/elsewhere/Heat.1995.mkv")
	if outside.Disposition != ingest.DispositionRejected || !errors.Is(outside.Err, classify.ErrOutsideRoots) {
		t.Fatalf("expected outside-roots rejection, got %+v", outside)
	}

	missing := ing.IngestPath(context.Background(), filepath.Join(cfg.Paths.MoviesRoot, "Gone.2001.mkv"))
	if missing.Disposition != ingest.DispositionRejected {
		t.Fatalf("expected missing path rejection, got %+v", missing)
	}

	empty := filepath.Join(cfg.Paths.MoviesRoot, "Empty.2002")
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatal(err)
	}
	none := ing.IngestPath(context.Background(), empty)
	if none.Disposition != ingest.DispositionRejected || none.Err != nil || len(none.Errors) != 1 {
		t.Fatalf("expected directory without videos to be rejected, got %+v", none)
	}
}

func TestIngestPathDefersOnStoreFailure(t *testing.T) {
	ing, _, cfg := newIngester(t, "Heat")
	path := filepath.Join(cfg.Paths.MoviesRoot, "Heat.1995.mkv")
	testsupport.WriteSparseFile(t, path, 2*mib)

	out := ing.IngestPath(context.Background(), path)
	if out.Disposition != ingest.DispositionDeferred || out.Err == nil {
		t.Fatalf("expected deferral, got %+v", out)
	}
}

func TestConsumeFileRemovesHandledLines(t *testing.T) {
	ing, store, cfg := newIngester(t, "Deferred")
	heat := filepath.Join(cfg.Paths.MoviesRoot, "Heat.1995.mkv")
	deferred := filepath.Join(cfg.Paths.MoviesRoot, "Deferred.2010.mkv")
	testsupport.WriteSparseFile(t, heat, 2*mib)
	testsupport.WriteSparseFile(t, deferred, 2*mib)

	lines := []string{
		"# operator notes",
		heat,
		"",
		"/elsewhere/Nope.2000.mkv",
		deferred,
		heat,
	}
	if err := os.WriteFile(cfg.Paths.QueueFile, []byte(strings.Join(lines, "\n")+"\n"), 0o664); err != nil {
		t.Fatal(err)
	}

	report, err := ing.ConsumeFile(context.Background(), cfg.Paths.QueueFile)
	if err != nil {
		t.Fatalf("ConsumeFile: %v", err)
	}
	if len(report.Outcomes) != 3 {
		t.Fatalf("expected 3 distinct paths, got %d", len(report.Outcomes))
	}
	if report.Enqueued() != 1 {
		t.Fatalf("expected one enqueued job, got %d", report.Enqueued())
	}
	if len(report.Kept) != 1 || report.Kept[0] != deferred {
		t.Fatalf("unexpected kept lines %v", report.Kept)
	}

	data, err := os.ReadFile(cfg.Paths.QueueFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != deferred+"\n" {
		t.Fatalf("unexpected file contents %q", data)
	}
	info, err := os.Stat(cfg.Paths.QueueFile)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o664 {
		t.Fatalf("expected permissions preserved, got %v", info.Mode().Perm())
	}

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats[queue.StatePending] != 1 {
		t.Fatalf("expected one pending job, got %v", stats)
	}
}

func TestConsumeFileMissingIsNoop(t *testing.T) {
	ing, _, cfg := newIngester(t, "")

	report, err := ing.ConsumeFile(context.Background(), cfg.Paths.QueueFile)
	if err != nil {
		t.Fatalf("ConsumeFile: %v", err)
	}
	if len(report.Outcomes) != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
	if _, err := os.Stat(cfg.Paths.QueueFile); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ingestion file to stay absent, got %v", err)
	}
}

func TestWatcherPicksUpNewLines(t *testing.T) {
	ing, store, cfg := newIngester(t, "")
	path := filepath.Join(cfg.Paths.MoviesRoot, "Heat.1995.mkv")
	testsupport.WriteSparseFile(t, path, 2*mib)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	watcher := ingest.NewWatcher(ing, cfg.Paths.QueueFile, 20*time.Millisecond, 100*time.Millisecond, nil)
	woken := make(chan struct{}, 8)
	watcher.OnEnqueue(func() { woken <- struct{}{} })
	go func() { done <- watcher.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	if err := os.WriteFile(cfg.Paths.QueueFile, []byte(path+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		jobs, err := store.List(context.Background())
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(jobs) == 1 {
			if jobs[0].SourcePath != path {
				t.Fatalf("unexpected source %s", jobs[0].SourcePath)
			}
			select {
			case <-woken:
			case <-time.After(time.Second):
				t.Fatal("expected OnEnqueue after the pass")
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("watcher did not enqueue the written path")
}
