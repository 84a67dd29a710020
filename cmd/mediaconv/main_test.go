package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"mediaconv/internal/config"
	"mediaconv/internal/queue"
	"mediaconv/internal/testsupport"
)

const mib = 1 << 20

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (env *cliTestEnv) openStore(t *testing.T) *queue.Store {
	t.Helper()
	return testsupport.MustOpenStore(t, env.cfg)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q, got:\n%s", substr, output)
	}
}

func TestEnqueueAndQueueList(t *testing.T) {
	env := setupCLITestEnv(t)
	source := filepath.Join(env.cfg.Paths.MoviesRoot, "Heat (1995)", "Heat (1995).mkv")
	testsupport.WriteSparseFile(t, source, 2*mib)

	out, _, err := runCLI(t, []string{"enqueue", source}, env.configPath)
	if err != nil {
		t.Fatalf("enqueue: %v\n%s", err, out)
	}
	requireContains(t, out, "queued")
	requireContains(t, out, "1 new, 0 duplicate")

	out, _, err = runCLI(t, []string{"enqueue", source}, env.configPath)
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	requireContains(t, out, "0 new, 1 duplicate")

	out, _, err = runCLI(t, []string{"queue", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Heat.1995")
	requireContains(t, out, "pending")

	out, _, err = runCLI(t, []string{"queue", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list --json: %v", err)
	}
	var views []jobView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode list json: %v\n%s", err, out)
	}
	if len(views) != 1 || views[0].SourcePath != source || views[0].MediaType != string(queue.MediaMovie) {
		t.Fatalf("unexpected list json %+v", views)
	}
}

func TestEnqueueRejectsPathOutsideRoots(t *testing.T) {
	env := setupCLITestEnv(t)
	outside := filepath.Join(testsupport.BaseDir(env.cfg), "elsewhere", "Heat.1995.mkv")
	testsupport.WriteSparseFile(t, outside, 2*mib)

	out, _, err := runCLI(t, []string{"enqueue", outside}, env.configPath)
	if err == nil {
		t.Fatalf("expected error for path outside roots, output:\n%s", out)
	}
	requireContains(t, out, "rejected")
}

func TestQueueShowAndStateFilter(t *testing.T) {
	env := setupCLITestEnv(t)
	store := env.openStore(t)
	id := testsupport.EnqueueMovie(t, store, "/scratch/movies/Alien.mkv", "Alien")

	out, _, err := runCLI(t, []string{"queue", "show", "1", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	var view jobView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode show json: %v", err)
	}
	if view.ID != id || view.Title != "Alien" || view.State != string(queue.StatePending) {
		t.Fatalf("unexpected job view %+v", view)
	}

	out, _, err = runCLI(t, []string{"queue", "list", "--state", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list --state: %v", err)
	}
	requireContains(t, out, "Queue is empty")

	if _, _, err := runCLI(t, []string{"queue", "list", "--state", "bogus"}, env.configPath); err == nil {
		t.Fatal("expected unknown state error")
	}
	if _, _, err := runCLI(t, []string{"queue", "show", "99"}, env.configPath); err == nil {
		t.Fatal("expected missing job error")
	}
}

func TestCancelAndRequeue(t *testing.T) {
	env := setupCLITestEnv(t)
	store := env.openStore(t)
	id := testsupport.EnqueueMovie(t, store, "/scratch/movies/Alien.mkv", "Alien")

	out, _, err := runCLI(t, []string{"cancel", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	requireContains(t, out, "Job 1 cancelled")
	job := testsupport.MustGet(t, store, id)
	if job.State != queue.StateFailed || job.LastError == nil || job.LastError.Reason != queue.ReasonCancelled {
		t.Fatalf("expected cancelled failure, got %+v", job)
	}

	out, _, err = runCLI(t, []string{"cancel", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	requireContains(t, out, "already finished")

	out, _, err = runCLI(t, []string{"requeue", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	requireContains(t, out, "requeued as job 2")
	fresh := testsupport.MustGet(t, store, 2)
	if fresh.State != queue.StatePending || fresh.SourcePath != job.SourcePath {
		t.Fatalf("unexpected requeued job %+v", fresh)
	}

	if _, _, err := runCLI(t, []string{"requeue", "2"}, env.configPath); err == nil {
		t.Fatal("expected requeue of pending job to fail")
	}
	if _, _, err := runCLI(t, []string{"cancel", "abc"}, env.configPath); err == nil {
		t.Fatal("expected invalid id error")
	}
}

func TestCancelPendingJobNotifiesFailure(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
		tags   []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(data))
		tags = append(tags, r.Header.Get("Tags"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	env := setupCLITestEnv(t)
	env.cfg.Notifications.NtfyTopic = server.URL
	writeTestConfig(t, env.configPath, env.cfg)
	store := env.openStore(t)
	testsupport.EnqueueMovie(t, store, "/scratch/movies/Alien.mkv", "Alien")

	out, _, err := runCLI(t, []string{"cancel", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	requireContains(t, out, "Job 1 cancelled")

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 1 {
		t.Fatalf("expected one ntfy message, got %d", len(bodies))
	}
	requireContains(t, bodies[0], "failed: cancelled")
	requireContains(t, tags[0], "cancelled")
}

func TestQueueStatsHealthAndPurge(t *testing.T) {
	env := setupCLITestEnv(t)
	store := env.openStore(t)
	testsupport.EnqueueMovie(t, store, "/scratch/movies/Alien.mkv", "Alien")
	testsupport.EnqueueMovie(t, store, "/scratch/movies/Aliens.mkv", "Aliens")
	if _, err := store.RequestCancel(context.Background(), 2); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "stats"}, env.configPath)
	if err != nil {
		t.Fatalf("queue stats: %v", err)
	}
	requireContains(t, out, "pending")
	requireContains(t, out, "retry_pending")
	requireContains(t, out, "total")

	out, _, err = runCLI(t, []string{"queue", "health"}, env.configPath)
	if err != nil {
		t.Fatalf("queue health: %v\n%s", err, out)
	}
	requireContains(t, out, "Integrity")
	requireContains(t, out, "[OK]")

	out, _, err = runCLI(t, []string{"queue", "purge", "--older-than-days", "0"}, env.configPath)
	if err == nil {
		t.Fatalf("expected zero window to be refused, got:\n%s", out)
	}
}

func TestHeuristicsWithoutHistory(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"heuristics"}, env.configPath)
	if err != nil {
		t.Fatalf("heuristics: %v", err)
	}
	requireContains(t, out, "No attempt history yet")

	if _, _, err := runCLI(t, []string{"heuristics", "--class", "8k"}, env.configPath); err == nil {
		t.Fatal("expected unknown class error")
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	env := setupCLITestEnv(t)
	out, _, err = runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTMDBToken("secret-token", ""))
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"config", "show"}, configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "secret-token") {
		t.Fatalf("token leaked in output:\n%s", out)
	}
	requireContains(t, out, redacted)
	requireContains(t, out, cfg.Paths.MoviesRoot)
}

func TestPlanPrintsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	script := filepath.Join(testsupport.BaseDir(env.cfg), "ffprobe-stub")
	payload := `{"streams":[{"index":0,"codec_type":"video","codec_name":"h264","profile":"High","width":1280,"height":720},{"index":1,"codec_type":"audio","codec_name":"ac3","channels":6}],"format":{"duration":"60"}}`
	if err := os.WriteFile(script, []byte("#!/bin/sh\ncat <<'JSON'\n"+payload+"\nJSON\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	env.cfg.Encoding.FFprobeBinary = script
	writeTestConfig(t, env.configPath, env.cfg)

	source := filepath.Join(env.cfg.Paths.MoviesRoot, "Clip.mkv")
	testsupport.WriteFile(t, source, 16)

	out, _, err := runCLI(t, []string{"plan", source}, env.configPath)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	requireContains(t, out, "(hd720)")
	requireContains(t, out, "stream 1 -> aac 2ch 256k")
	requireContains(t, out, "hevc_qsv")
}

func TestSubtitlesReportsDetection(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := filepath.Join(env.cfg.Paths.MoviesRoot, "Heat (1995)")
	source := filepath.Join(dir, "Heat (1995).mkv")
	testsupport.WriteFile(t, source, 16)
	srt := "1\n00:00:01,000 --> 00:00:02,000\nHello there.\n\n2\n00:00:03,000 --> 00:00:04,000\nSubtitles by OpenSubtitles.org\n"
	if err := os.WriteFile(filepath.Join(dir, "Heat (1995).en.srt"), []byte(srt), 0o644); err != nil {
		t.Fatalf("write srt: %v", err)
	}

	out, _, err := runCLI(t, []string{"subtitles", source}, env.configPath)
	if err != nil {
		t.Fatalf("subtitles: %v", err)
	}
	requireContains(t, out, "Heat (1995).en.srt")
	requireContains(t, out, "en (English)")
	requireContains(t, out, "filename")

	outDir := filepath.Join(testsupport.BaseDir(env.cfg), "out")
	out, _, err = runCLI(t, []string{"subtitles", source, "--out", outDir}, env.configPath)
	if err != nil {
		t.Fatalf("subtitles --out: %v", err)
	}
	requireContains(t, out, "wrote")
	entries, err := os.ReadDir(outDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one sidecar, got %v (%v)", entries, err)
	}
}

func TestLogsShowsDaemonAndAttemptLogs(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.WriteFile(env.cfg.DaemonLogPath(), []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("write daemon log: %v", err)
	}
	if err := os.WriteFile(env.cfg.AttemptLogPath(7, 2), []byte("MFX_ERR_MEMORY_ALLOC\n"), 0o644); err != nil {
		t.Fatalf("write attempt log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "two\nthree\n" {
		t.Fatalf("unexpected daemon log output %q", out)
	}

	out, _, err = runCLI(t, []string{"logs", "--job", "7", "--attempt", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs --job: %v", err)
	}
	requireContains(t, out, "MFX_ERR_MEMORY_ALLOC")

	if _, _, err := runCLI(t, []string{"logs", "--attempt", "2"}, env.configPath); err == nil {
		t.Fatal("expected --attempt without --job to fail")
	}
}

func TestPreflightReportsFailedChecks(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Encoding.QSVDevice = filepath.Join(testsupport.BaseDir(cfg), "no-such-render-node")
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"preflight"}, configPath)
	if err == nil {
		t.Fatalf("expected preflight failure without a QSV device, got:\n%s", out)
	}
	requireContains(t, err.Error(), "QSV device")
	requireContains(t, out, "Movies root")
	requireContains(t, out, "[OK]")
	requireContains(t, out, "[FAIL]")
}
