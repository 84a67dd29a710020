package queue_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mediaconv/internal/planner"
	"mediaconv/internal/queue"
	"mediaconv/internal/testsupport"
)

const workerA = "worker-a"

func openStore(t *testing.T) (*queue.Store, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return testsupport.MustOpenStore(t, cfg), cfg.Paths.MoviesRoot
}

func sampleParams() planner.EncodingParams {
	return planner.Plan(planner.SourceProbe{
		Width: 1920, Height: 1080, VideoCodec: "h264",
		Audio: []planner.AudioTrack{{Index: 1, Channels: 6}},
	})
}

func claimAndEncode(t *testing.T, store *queue.Store, worker string) *queue.Job {
	t.Helper()
	ctx := context.Background()
	job, err := store.Claim(ctx, worker, time.Hour)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if job == nil {
		t.Fatal("expected a claimable job")
	}
	params := sampleParams()
	probe := planner.SourceProbe{Width: 1920, Height: 1080, VideoCodec: "h264"}
	if err := store.Advance(ctx, job.ID, queue.StateClaimed, queue.StateProbing, queue.Payload{WorkerID: worker}); err != nil {
		t.Fatalf("advance to probing: %v", err)
	}
	if err := store.Advance(ctx, job.ID, queue.StateProbing, queue.StateEncoding, queue.Payload{WorkerID: worker, Params: &params, Probe: &probe}); err != nil {
		t.Fatalf("advance to encoding: %v", err)
	}
	return testsupport.MustGet(t, store, job.ID)
}

func TestEnqueueIsIdempotentForLiveJobs(t *testing.T) {
	store, root := openStore(t)
	ctx := context.Background()
	path := filepath.Join(root, "Movie (2020)", "movie.mkv")

	first := testsupport.EnqueueMovie(t, store, path, "Movie.2020")
	_, err := store.Enqueue(ctx, queue.NewJob{SourcePath: path, MediaType: queue.MediaMovie, Title: "Movie.2020"})
	if !errors.Is(err, queue.ErrDuplicateJob) {
		t.Fatalf("expected ErrDuplicateJob, got %v", err)
	}
	var dup *queue.DuplicateJobError
	if !errors.As(err, &dup) || dup.ExistingID != first {
		t.Fatalf("expected duplicate pointing at %d, got %#v", first, dup)
	}

	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected exactly one job, got %d", len(jobs))
	}
}

func TestEnqueueRejectsInvalidInput(t *testing.T) {
	store, root := openStore(t)
	ctx := context.Background()
	cases := []queue.NewJob{
		{SourcePath: "", MediaType: queue.MediaMovie},
		{SourcePath: "relative/movie.mkv", MediaType: queue.MediaMovie},
		{SourcePath: filepath.Join(root, "a.mkv"), MediaType: "documentary"},
		{SourcePath: filepath.Join(root, "b.mkv"), MediaType: queue.MediaEpisode},
	}
	for i, tc := range cases {
		if _, err := store.Enqueue(ctx, tc); err == nil {
			t.Fatalf("case %d: expected error for %+v", i, tc)
		}
	}
}

func TestClaimExclusivityUnderConcurrency(t *testing.T) {
	store, root := openStore(t)
	ctx := context.Background()
	const jobs = 5
	for i := 0; i < jobs; i++ {
		testsupport.EnqueueMovie(t, store, filepath.Join(root, fmt.Sprintf("m%d.mkv", i)), fmt.Sprintf("M%d", i))
	}

	const workers = 8
	var (
		mu      sync.Mutex
		claimed = make(map[int64]string)
		wg      sync.WaitGroup
		errs    = make(chan error, workers*jobs)
	)
	for w := 0; w < workers; w++ {
		worker := fmt.Sprintf("worker-%d", w)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := store.Claim(ctx, worker, time.Hour)
				if err != nil {
					errs <- err
					return
				}
				if job == nil {
					return
				}
				mu.Lock()
				if owner, seen := claimed[job.ID]; seen {
					errs <- fmt.Errorf("job %d claimed by %s and %s", job.ID, owner, worker)
				}
				claimed[job.ID] = worker
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	if len(claimed) != jobs {
		t.Fatalf("expected %d distinct claims, got %d", jobs, len(claimed))
	}
}

func TestClaimReturnsNilWhenEmpty(t *testing.T) {
	store, _ := openStore(t)
	job, err := store.Claim(context.Background(), workerA, time.Minute)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil job, got %+v", job)
	}
}

func TestAdvanceRejectsTransitionsOutsideTable(t *testing.T) {
	store, root := openStore(t)
	ctx := context.Background()
	id := testsupport.EnqueueMovie(t, store, filepath.Join(root, "x.mkv"), "X")

	err := store.Advance(ctx, id, queue.StatePending, queue.StateEncoding, queue.Payload{})
	if !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if job := testsupport.MustGet(t, store, id); job.State != queue.StatePending {
		t.Fatalf("state changed to %s", job.State)
	}
}

func TestAdvanceIsCompareAndSwap(t *testing.T) {
	store, root := openStore(t)
	ctx := context.Background()
	testsupport.EnqueueMovie(t, store, filepath.Join(root, "cas.mkv"), "Cas")
	job, err := store.Claim(ctx, workerA, time.Hour)
	if err != nil || job == nil {
		t.Fatalf("Claim: job=%v err=%v", job, err)
	}

	err = store.Advance(ctx, job.ID, queue.StateClaimed, queue.StateProbing, queue.Payload{WorkerID: "intruder"})
	var invalid *queue.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError for foreign worker, got %v", err)
	}
	if invalid.Current != queue.StateClaimed {
		t.Fatalf("expected current state claimed, got %s", invalid.Current)
	}

	if err := store.Advance(ctx, job.ID, queue.StateClaimed, queue.StateProbing, queue.Payload{WorkerID: workerA}); err != nil {
		t.Fatalf("advance: %v", err)
	}
	err = store.Advance(ctx, job.ID, queue.StateClaimed, queue.StateProbing, queue.Payload{WorkerID: workerA})
	if !errors.As(err, &invalid) || invalid.Current != queue.StateProbing {
		t.Fatalf("expected stale from-state rejection naming probing, got %v", err)
	}
}

func TestTerminalJobsAreImmutable(t *testing.T) {
	store, root := openStore(t)
	ctx := context.Background()
	testsupport.EnqueueMovie(t, store, filepath.Join(root, "done.mkv"), "Done")
	job := claimAndEncode(t, store, workerA)

	if err := store.Advance(ctx, job.ID, queue.StateEncoding, queue.StateFinalizing, queue.Payload{WorkerID: workerA, ClearError: true}); err != nil {
		t.Fatalf("advance to finalizing: %v", err)
	}
	if err := store.Advance(ctx, job.ID, queue.StateFinalizing, queue.StateSucceeded, queue.Payload{WorkerID: workerA, OutputPath: "/archive/Done/Done.mp4"}); err != nil {
		t.Fatalf("advance to succeeded: %v", err)
	}
	done := testsupport.MustGet(t, store, job.ID)
	if done.FinishedAt.IsZero() || done.ClaimedBy != "" || done.OutputPath == "" {
		t.Fatalf("unexpected terminal job %+v", done)
	}

	for _, to := range []queue.State{queue.StateFailed, queue.StatePending, queue.StateEncoding} {
		err := store.Advance(ctx, job.ID, queue.StateSucceeded, to, queue.Payload{WorkerID: workerA, Error: &queue.JobError{Reason: queue.ReasonCancelled}})
		if !errors.Is(err, queue.ErrInvalidTransition) {
			t.Fatalf("succeeded -> %s: expected rejection, got %v", to, err)
		}
	}
	if ok, err := store.RequestCancel(ctx, job.ID); err != nil || ok {
		t.Fatalf("cancel of terminal job: ok=%v err=%v", ok, err)
	}
	if _, err := store.RecordAttempt(ctx, job.ID, queue.Attempt{Outcome: queue.OutcomeSuccess, Params: sampleParams(), ResolutionClass: "fhd"}); err == nil {
		t.Fatal("expected RecordAttempt on terminal job to fail")
	}
	after := testsupport.MustGet(t, store, job.ID)
	if after.State != queue.StateSucceeded || after.AttemptCount != done.AttemptCount {
		t.Fatalf("terminal job changed: %+v", after)
	}
}

func TestAttemptCountEqualsAttemptRecords(t *testing.T) {
	store, root := openStore(t)
	ctx := context.Background()
	testsupport.EnqueueMovie(t, store, filepath.Join(root, "count.mkv"), "Count")
	job := claimAndEncode(t, store, workerA)

	for i := 1; i <= 3; i++ {
		number, err := store.RecordAttempt(ctx, job.ID, queue.Attempt{
			Params:          *job.Params,
			Outcome:         queue.OutcomeTransientFailure,
			Reason:          queue.ReasonHardwareMemory,
			Diagnostics:     "MFX_ERR_MEMORY_ALLOC",
			WorkerID:        workerA,
			ResolutionClass: "fhd",
			Duration:        1500 * time.Millisecond,
		})
		if err != nil {
			t.Fatalf("RecordAttempt %d: %v", i, err)
		}
		if number != i {
			t.Fatalf("expected attempt number %d, got %d", i, number)
		}
	}

	attempts, err := store.Attempts(ctx, job.ID)
	if err != nil {
		t.Fatalf("Attempts: %v", err)
	}
	reloaded := testsupport.MustGet(t, store, job.ID)
	if reloaded.AttemptCount != len(attempts) || len(attempts) != 3 {
		t.Fatalf("attempt_count=%d records=%d", reloaded.AttemptCount, len(attempts))
	}
	if attempts[1].Reason != queue.ReasonHardwareMemory || attempts[1].Duration != 1500*time.Millisecond {
		t.Fatalf("unexpected attempt %+v", attempts[1])
	}
}

func TestReclaimExpiredReturnsJobToPending(t *testing.T) {
	store, root := openStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	testsupport.EnqueueMovie(t, store, filepath.Join(root, "lease.mkv"), "Lease")
	job, err := store.Claim(ctx, workerA, time.Minute)
	if err != nil || job == nil {
		t.Fatalf("Claim: job=%v err=%v", job, err)
	}
	if err := store.Advance(ctx, job.ID, queue.StateClaimed, queue.StateProbing, queue.Payload{WorkerID: workerA}); err != nil {
		t.Fatalf("advance: %v", err)
	}

	if n, err := store.ReclaimExpired(ctx, now.Add(30*time.Second)); err != nil || n != 0 {
		t.Fatalf("reclaim before expiry: n=%d err=%v", n, err)
	}
	now = now.Add(2 * time.Minute)
	n, err := store.ReclaimExpired(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("reclaim after expiry: n=%d err=%v", n, err)
	}
	reloaded := testsupport.MustGet(t, store, job.ID)
	if reloaded.State != queue.StatePending || reloaded.ClaimedBy != "" || reloaded.AttemptCount != 0 {
		t.Fatalf("unexpected reclaimed job %+v", reloaded)
	}
	if err := store.RenewLease(ctx, job.ID, workerA, time.Minute); !errors.Is(err, queue.ErrLeaseLost) {
		t.Fatalf("expected ErrLeaseLost after reclaim, got %v", err)
	}

	again, err := store.Claim(ctx, "worker-b", time.Minute)
	if err != nil || again == nil || again.ID != job.ID {
		t.Fatalf("expected job to be claimable again, got %v err=%v", again, err)
	}
}

// startEncode claims the next job and walks it into encoding the way a
// worker does before running the transcoder.
func startEncode(t *testing.T, store *queue.Store, worker string, lease time.Duration) *queue.Job {
	t.Helper()
	ctx := context.Background()
	job, err := store.Claim(ctx, worker, lease)
	if err != nil || job == nil {
		t.Fatalf("Claim: job=%v err=%v", job, err)
	}
	params := sampleParams()
	if job.Params != nil {
		params = *job.Params
	}
	probe := planner.SourceProbe{Width: 1920, Height: 1080, VideoCodec: "h264"}
	if err := store.Advance(ctx, job.ID, queue.StateClaimed, queue.StateProbing, queue.Payload{WorkerID: worker}); err != nil {
		t.Fatalf("advance to probing: %v", err)
	}
	if err := store.Advance(ctx, job.ID, queue.StateProbing, queue.StateEncoding, queue.Payload{WorkerID: worker, Params: &params, Probe: &probe}); err != nil {
		t.Fatalf("advance to encoding: %v", err)
	}
	return testsupport.MustGet(t, store, job.ID)
}

func TestReclaimExpiredChargesStalledEncodes(t *testing.T) {
	store, root := openStore(t)
	ctx := context.Background()
	clock := testsupport.NewManualClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store.SetClock(clock.Now)
	id := testsupport.EnqueueMovie(t, store, filepath.Join(root, "stall.mkv"), "Stall")

	for crash := 1; crash <= 5; crash++ {
		startEncode(t, store, workerA, time.Minute)
		clock.Advance(2 * time.Hour)
		n, err := store.ReclaimExpired(ctx, clock.Now())
		if err != nil || n != 1 {
			t.Fatalf("crash %d: reclaim n=%d err=%v", crash, n, err)
		}

		job := testsupport.MustGet(t, store, id)
		if job.State != queue.StatePending || job.AttemptCount != crash {
			t.Fatalf("crash %d: state=%s attempt_count=%d", crash, job.State, job.AttemptCount)
		}
		if job.LastError == nil || job.LastError.Reason != queue.ReasonTimeout {
			t.Fatalf("crash %d: last error = %+v", crash, job.LastError)
		}
		attempts, err := store.Attempts(ctx, id)
		if err != nil {
			t.Fatalf("Attempts: %v", err)
		}
		if len(attempts) != job.AttemptCount {
			t.Fatalf("crash %d: %d records for attempt_count %d", crash, len(attempts), job.AttemptCount)
		}
		last := attempts[len(attempts)-1]
		if last.Outcome != queue.OutcomeTransientFailure || last.Reason != queue.ReasonTimeout ||
			last.Diagnostics != queue.StalledEncodeMessage || last.WorkerID != workerA ||
			last.ResolutionClass != planner.ResolutionClass(1920, 1080) {
			t.Fatalf("crash %d: unexpected stall record %+v", crash, last)
		}
	}
}

func TestClaimChargesExpiredEncodeButNotReleasedOne(t *testing.T) {
	store, root := openStore(t)
	ctx := context.Background()
	clock := testsupport.NewManualClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store.SetClock(clock.Now)

	released := testsupport.EnqueueMovie(t, store, filepath.Join(root, "released.mkv"), "Released")
	startEncode(t, store, workerA, time.Minute)
	if err := store.Release(ctx, released, workerA); err != nil {
		t.Fatalf("Release: %v", err)
	}
	again, err := store.Claim(ctx, "worker-b", time.Minute)
	if err != nil || again == nil || again.ID != released {
		t.Fatalf("expected released job back, got %v err=%v", again, err)
	}
	if again.AttemptCount != 0 {
		t.Fatalf("released encode must not be charged, attempt_count=%d", again.AttemptCount)
	}
	if err := store.Advance(ctx, released, queue.StateClaimed, queue.StateFailed, queue.Payload{
		WorkerID: "worker-b",
		Error:    &queue.JobError{Kind: queue.OutcomePermanentFailure, Reason: queue.ReasonCancelled},
	}); err != nil {
		t.Fatalf("retire released job: %v", err)
	}

	stalled := testsupport.EnqueueMovie(t, store, filepath.Join(root, "stalled.mkv"), "Stalled")
	startEncode(t, store, workerA, time.Minute)
	clock.Advance(time.Hour)
	reclaimed, err := store.Claim(ctx, "worker-b", time.Minute)
	if err != nil || reclaimed == nil || reclaimed.ID != stalled {
		t.Fatalf("expected stalled job to be claimed, got %v err=%v", reclaimed, err)
	}
	if reclaimed.AttemptCount != 1 || reclaimed.ClaimedBy != "worker-b" {
		t.Fatalf("unexpected reclaimed job %+v", reclaimed)
	}
}

func TestRenewLeaseExtendsExpiry(t *testing.T) {
	store, root := openStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	testsupport.EnqueueMovie(t, store, filepath.Join(root, "renew.mkv"), "Renew")
	job, err := store.Claim(ctx, workerA, time.Minute)
	if err != nil || job == nil {
		t.Fatalf("Claim: job=%v err=%v", job, err)
	}
	now = now.Add(50 * time.Second)
	if err := store.RenewLease(ctx, job.ID, workerA, time.Minute); err != nil {
		t.Fatalf("RenewLease: %v", err)
	}
	if n, err := store.ReclaimExpired(ctx, now.Add(30*time.Second)); err != nil || n != 0 {
		t.Fatalf("renewed lease reclaimed: n=%d err=%v", n, err)
	}
	if err := store.RenewLease(ctx, job.ID, "worker-b", time.Minute); !errors.Is(err, queue.ErrLeaseLost) {
		t.Fatalf("expected ErrLeaseLost for foreign worker, got %v", err)
	}
}

func TestRetryPendingReturnsToClaim(t *testing.T) {
	store, root := openStore(t)
	ctx := context.Background()
	testsupport.EnqueueMovie(t, store, filepath.Join(root, "retry.mkv"), "Retry")
	job := claimAndEncode(t, store, workerA)

	mutated, err := job.Params.With(planner.DimensionFrameBuffers, "4")
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	jobErr := &queue.JobError{Kind: queue.OutcomeTransientFailure, Reason: queue.ReasonHardwareMemory}
	if err := store.Advance(ctx, job.ID, queue.StateEncoding, queue.StateRetryPending, queue.Payload{WorkerID: workerA, Params: &mutated, Error: jobErr}); err != nil {
		t.Fatalf("advance to retry_pending: %v", err)
	}
	waiting := testsupport.MustGet(t, store, job.ID)
	if waiting.ClaimedBy != "" || waiting.Params.FrameBuffers != 4 || waiting.LastError == nil {
		t.Fatalf("unexpected retry_pending job %+v", waiting)
	}

	reclaimed, err := store.Claim(ctx, "worker-b", time.Hour)
	if err != nil || reclaimed == nil || reclaimed.ID != job.ID {
		t.Fatalf("expected retry_pending job to be claimed, got %v err=%v", reclaimed, err)
	}
	if reclaimed.State != queue.StateClaimed || reclaimed.ClaimedBy != "worker-b" {
		t.Fatalf("unexpected claim %+v", reclaimed)
	}
}

func TestRequestCancel(t *testing.T) {
	store, root := openStore(t)
	ctx := context.Background()

	waiting := testsupport.EnqueueMovie(t, store, filepath.Join(root, "waiting.mkv"), "Waiting")
	ok, err := store.RequestCancel(ctx, waiting)
	if err != nil || !ok {
		t.Fatalf("cancel pending: ok=%v err=%v", ok, err)
	}
	job := testsupport.MustGet(t, store, waiting)
	if job.State != queue.StateFailed || job.LastError == nil || job.LastError.Reason != queue.ReasonCancelled {
		t.Fatalf("expected pending job failed as cancelled, got %+v", job)
	}

	testsupport.EnqueueMovie(t, store, filepath.Join(root, "active.mkv"), "Active")
	active := claimAndEncode(t, store, workerA)
	ok, err = store.RequestCancel(ctx, active.ID)
	if err != nil || !ok {
		t.Fatalf("cancel active: ok=%v err=%v", ok, err)
	}
	if flagged, err := store.CancelRequested(ctx, active.ID); err != nil || !flagged {
		t.Fatalf("expected cancel flag, got %v err=%v", flagged, err)
	}
	if job := testsupport.MustGet(t, store, active.ID); job.State != queue.StateEncoding {
		t.Fatalf("active job should keep running until its checkpoint, got %s", job.State)
	}
	failed, err := store.FailCancelled(ctx, active.ID)
	if err != nil || !failed {
		t.Fatalf("FailCancelled: failed=%v err=%v", failed, err)
	}
	if job := testsupport.MustGet(t, store, active.ID); job.State != queue.StateFailed || job.LastError.Reason != queue.ReasonCancelled {
		t.Fatalf("expected cancelled failure, got %+v", job)
	}
}

func TestPurgeKeepsAttemptsAndLiveJobs(t *testing.T) {
	store, root := openStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	testsupport.EnqueueMovie(t, store, filepath.Join(root, "old.mkv"), "Old")
	old := claimAndEncode(t, store, workerA)
	if _, err := store.RecordAttempt(ctx, old.ID, queue.Attempt{Params: *old.Params, Outcome: queue.OutcomeSuccess, ResolutionClass: "fhd"}); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}
	if err := store.Advance(ctx, old.ID, queue.StateEncoding, queue.StateFinalizing, queue.Payload{WorkerID: workerA}); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := store.Advance(ctx, old.ID, queue.StateFinalizing, queue.StateSucceeded, queue.Payload{WorkerID: workerA}); err != nil {
		t.Fatalf("advance: %v", err)
	}
	live := testsupport.EnqueueMovie(t, store, filepath.Join(root, "live.mkv"), "Live")

	n, err := store.Purge(ctx, now.Add(time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("Purge: n=%d err=%v", n, err)
	}
	if job, _ := store.Get(ctx, old.ID); job != nil {
		t.Fatalf("expected purged job to be gone, got %+v", job)
	}
	testsupport.MustGet(t, store, live)

	attempts, err := store.Attempts(ctx, old.ID)
	if err != nil || len(attempts) != 1 {
		t.Fatalf("expected attempt history to survive purge, got %d err=%v", len(attempts), err)
	}
	bias, err := store.Bias(ctx, "fhd")
	if err != nil {
		t.Fatalf("Bias: %v", err)
	}
	entry, ok := bias.Lookup(planner.DimensionFrameBuffers, "8")
	if !ok || entry.Tries != 1 || entry.SuccessRate() != 1 {
		t.Fatalf("unexpected bias entry %+v ok=%v", entry, ok)
	}
}

func TestBiasAggregatesByClassAndValue(t *testing.T) {
	store, root := openStore(t)
	ctx := context.Background()
	testsupport.EnqueueMovie(t, store, filepath.Join(root, "bias.mkv"), "Bias")
	job := claimAndEncode(t, store, workerA)

	low, err := job.Params.With(planner.DimensionFrameBuffers, "4")
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	records := []queue.Attempt{
		{Params: *job.Params, Outcome: queue.OutcomeTransientFailure, Reason: queue.ReasonHardwareMemory, ResolutionClass: "fhd"},
		{Params: low, Outcome: queue.OutcomeSuccess, ResolutionClass: "fhd"},
		{Params: low, Outcome: queue.OutcomeSuccess, ResolutionClass: "uhd"},
	}
	for _, rec := range records {
		if _, err := store.RecordAttempt(ctx, job.ID, rec); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}

	bias, err := store.Bias(ctx, "fhd")
	if err != nil {
		t.Fatalf("Bias: %v", err)
	}
	high, _ := bias.Lookup(planner.DimensionFrameBuffers, "8")
	lowEntry, _ := bias.Lookup(planner.DimensionFrameBuffers, "4")
	if high.Tries != 1 || high.Successes != 0 {
		t.Fatalf("unexpected tier 8 entry %+v", high)
	}
	if lowEntry.Tries != 1 || lowEntry.Successes != 1 {
		t.Fatalf("unexpected tier 4 entry %+v", lowEntry)
	}
	pad, _ := bias.Lookup(planner.DimensionPaddingMode, "pad")
	if pad.Tries != 2 {
		t.Fatalf("expected padding entry to count both fhd attempts, got %+v", pad)
	}
}

func TestRequeueCreatesFreshJob(t *testing.T) {
	store, root := openStore(t)
	ctx := context.Background()
	id := testsupport.EnqueueMovie(t, store, filepath.Join(root, "again.mkv"), "Again")

	if _, err := store.Requeue(ctx, id); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected requeue of pending job to fail, got %v", err)
	}
	if _, err := store.RequestCancel(ctx, id); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}
	fresh, err := store.Requeue(ctx, id)
	if err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	if fresh == id {
		t.Fatal("expected a new job id")
	}
	job := testsupport.MustGet(t, store, fresh)
	if job.State != queue.StatePending || job.Title != "Again" {
		t.Fatalf("unexpected requeued job %+v", job)
	}
	if old := testsupport.MustGet(t, store, id); old.State != queue.StateFailed {
		t.Fatalf("old job should stay failed, got %s", old.State)
	}
}

func TestResetOrphanedReclaimsActiveJobs(t *testing.T) {
	store, root := openStore(t)
	ctx := context.Background()
	testsupport.EnqueueMovie(t, store, filepath.Join(root, "orphan.mkv"), "Orphan")
	job := claimAndEncode(t, store, workerA)

	n, err := store.ResetOrphaned(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ResetOrphaned: n=%d err=%v", n, err)
	}
	if reloaded := testsupport.MustGet(t, store, job.ID); reloaded.State != queue.StatePending {
		t.Fatalf("expected pending, got %s", reloaded.State)
	}
}

func TestCheckHealthAndStats(t *testing.T) {
	store, root := openStore(t)
	ctx := context.Background()
	testsupport.EnqueueMovie(t, store, filepath.Join(root, "h.mkv"), "H")

	health, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.IntegrityCheck {
		t.Fatalf("unexpected health %+v", health)
	}
	if health.SchemaVersion != 1 || len(health.MissingTables) != 0 || health.TotalJobs != 1 {
		t.Fatalf("unexpected health details %+v", health)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[queue.StatePending] != 1 {
		t.Fatalf("expected one pending job, got %v", stats)
	}
}
