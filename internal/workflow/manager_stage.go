package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"mediaconv/internal/finalize"
	"mediaconv/internal/logging"
	"mediaconv/internal/media/ffprobe"
	"mediaconv/internal/planner"
	"mediaconv/internal/queue"
	"mediaconv/internal/retry"
	"mediaconv/internal/services"
	"mediaconv/internal/subtitles"
	"mediaconv/internal/transcode"
)

// jobRun is the per-claim state a worker carries through the stages.
type jobRun struct {
	job      *queue.Job
	workerID string
	logger   *slog.Logger
	keeper   *leaseKeeper
	started  time.Time
}

func (m *Manager) processJob(ctx context.Context, workerID string, job *queue.Job) {
	ctx = services.WithJobID(ctx, job.ID)
	logger := m.jobLogger(ctx, job)
	jobCtx, cancelJob := context.WithCancel(ctx)
	defer cancelJob()

	keeper := m.startLeaseKeeper(ctx, cancelJob, job.ID, workerID, logger)
	defer keeper.stop()

	run := &jobRun{job: job, workerID: workerID, logger: logger, keeper: keeper, started: m.now()}
	defer func() { m.setLastJob(run.job) }()
	logger.Info("job claimed",
		logging.Int("attempt_count", job.AttemptCount),
		logging.Bool("has_params", job.Params != nil),
	)

	if m.cancelCheckpoint(ctx, run) {
		return
	}
	if !m.probeStage(ctx, jobCtx, run) {
		return
	}
	m.encodeStage(ctx, jobCtx, run)
}

// cancelCheckpoint fails the job when an operator asked to cancel it.
func (m *Manager) cancelCheckpoint(ctx context.Context, run *jobRun) bool {
	requested, err := m.store.CancelRequested(ctx, run.job.ID)
	if err != nil {
		run.logger.Warn("cancel flag check failed", logging.Error(err))
		return false
	}
	if !requested {
		return false
	}
	m.failCancelled(ctx, run)
	return true
}

func (m *Manager) probeStage(ctx, jobCtx context.Context, run *jobRun) bool {
	job := run.job
	if !m.advance(ctx, run, queue.StateProbing, queue.Payload{}) {
		return false
	}

	probeCtx := services.WithStage(jobCtx, string(queue.StateProbing))
	probe, err := m.deps.Prober.Probe(probeCtx, job.SourcePath)
	if err != nil {
		if m.interrupted(ctx, run) {
			return false
		}
		reason := queue.ReasonProbeFailed
		switch {
		case errors.Is(err, ffprobe.ErrUnreadable):
			reason = queue.ReasonCorruptSource
		case errors.Is(err, ffprobe.ErrNoVideo):
			reason = queue.ReasonUnsupportedStream
		}
		m.fail(ctx, run, &queue.JobError{Kind: queue.OutcomePermanentFailure, Reason: reason, Message: err.Error()}, nil)
		return false
	}

	payload := queue.Payload{Probe: &probe}
	job.Probe = &probe
	if job.Params != nil {
		next, ok := m.resumeStalled(ctx, run)
		if !ok {
			return false
		}
		payload.Params = next
	}
	if job.Params == nil {
		params := planner.Plan(probe)
		if err := planner.Validate(params); err != nil {
			m.fail(ctx, run, &queue.JobError{
				Kind:    queue.OutcomePermanentFailure,
				Reason:  queue.ReasonUnsupportedStream,
				Message: fmt.Sprintf("no legal encoding plan for %dx%d source: %v", probe.Width, probe.Height, err),
			}, nil)
			return false
		}
		payload.Params = &params
		run.logger.Info("encoding plan computed",
			logging.String("resolution_class", planner.ResolutionClass(probe.Width, probe.Height)),
			logging.Int("width", params.Width),
			logging.Int("height", params.Height),
			logging.String("scale", string(params.Scale)),
			logging.Int("audio_tracks", len(params.Audio)),
		)
	}
	if !m.advance(ctx, run, queue.StateEncoding, payload) {
		return false
	}
	if payload.Params != nil {
		job.Params = payload.Params
	}
	return true
}

func (m *Manager) encodeStage(ctx, jobCtx context.Context, run *jobRun) {
	job := run.job
	logger := run.logger
	if m.cancelCheckpoint(ctx, run) {
		return
	}
	if job.AttemptCount > 0 && !sleep(jobCtx, m.cooldown) {
		m.interrupted(ctx, run)
		return
	}

	number := job.AttemptCount + 1
	output := m.encodedPath(job)
	request := transcode.Request{
		Source:  job.SourcePath,
		Output:  output,
		Params:  job.Params.Clone(),
		LogPath: m.attemptLogPath(job.ID, number),
	}
	logger.Info("encode attempt started",
		logging.Int(logging.FieldAttempt, number),
		logging.Int("frame_buffers", request.Params.FrameBuffers),
		logging.Int("b_frames", request.Params.BFrames),
		logging.String("padding_mode", string(request.Params.PaddingMode)),
	)
	result, err := m.deps.Transcoder.Transcode(services.WithStage(jobCtx, string(queue.StateEncoding)), request)

	if run.keeper.wasLost() {
		removeQuietly(output)
		return
	}
	if ctx.Err() != nil && !run.keeper.wasCancelled() {
		removeQuietly(output)
		m.release(ctx, run)
		return
	}

	obs := retry.Observation{
		ExitCode:    result.ExitCode,
		Diagnostics: result.Diagnostics,
		TimedOut:    result.TimedOut,
		Cancelled:   run.keeper.wasCancelled(),
		OutputBytes: result.OutputBytes,
	}
	if err != nil {
		obs.ExitCode = -1
		obs.Diagnostics = err.Error()
		obs.OutputBytes = -1
	}
	classification := retry.Classify(obs)

	recorded, err := m.store.RecordAttempt(ctx, job.ID, queue.Attempt{
		Params:          request.Params,
		Outcome:         classification.Outcome,
		Reason:          classification.Reason,
		Diagnostics:     obs.Diagnostics,
		WorkerID:        run.workerID,
		ResolutionClass: job.ResolutionClass(),
		Duration:        result.Duration,
	})
	if err != nil {
		logging.ErrorWithContext(logger, "failed to record encode attempt", "attempt_record_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		removeQuietly(output)
		m.release(ctx, run)
		return
	}
	job.AttemptCount = recorded

	attempts, err := m.store.Attempts(ctx, job.ID)
	if err != nil {
		logger.Warn("attempt history unavailable; deciding from attempt count", logging.Error(err))
	}
	decision := m.deps.Engine.Decide(ctx, job, attempts, classification)

	attrs := []logging.Attr{
		logging.Int(logging.FieldAttempt, recorded),
		logging.String("outcome", string(classification.Outcome)),
		logging.String("reason", string(classification.Reason)),
		logging.Int("exit_code", obs.ExitCode),
		logging.Duration("duration", result.Duration),
	}
	attrs = append(attrs, logging.DecisionAttrs("encode_retry", string(decision.Action), string(decision.Reason))...)
	if decision.Action == retry.ActionRetry {
		attrs = append(attrs,
			logging.String("dimension", string(decision.Dimension)),
			logging.String("value", decision.Value),
			logging.Bool("repeat", decision.Repeat),
		)
	}
	if classification.Evidence != "" {
		attrs = append(attrs, logging.String("evidence", classification.Evidence))
	}
	logger.Info("encode attempt finished", logging.Args(attrs...)...)

	switch decision.Action {
	case retry.ActionSucceed:
		if !m.advance(ctx, run, queue.StateFinalizing, queue.Payload{ClearError: true}) {
			return
		}
		m.finalizeStage(ctx, run, output, attempts)
	case retry.ActionRetry:
		removeQuietly(output)
		if classification.Reason == queue.ReasonHardwareMemory {
			m.logMemorySnapshot(ctx, logger)
		}
		next := decision.Params
		if !m.advance(ctx, run, queue.StateRetryPending, queue.Payload{
			Params: &next,
			Error: &queue.JobError{
				Kind:    classification.Outcome,
				Reason:  classification.Reason,
				Message: classification.Evidence,
			},
		}) {
			return
		}
		job.Params = &next
	default:
		removeQuietly(output)
		if decision.Reason == queue.ReasonCancelled {
			m.failCancelled(ctx, run)
			return
		}
		message := classification.Evidence
		if decision.Reason == queue.ReasonRetriesExhausted {
			message = fmt.Sprintf("%d attempts failed; last: %s %s", recorded, classification.Reason, classification.Evidence)
		}
		m.fail(ctx, run, &queue.JobError{
			Kind:    queue.OutcomePermanentFailure,
			Reason:  decision.Reason,
			Message: message,
		}, attempts)
	}
}

// resumeStalled picks up a job whose previous encode never reported back.
// The store charged that encode a timeout attempt on reclaim; the retry
// engine then mutates the params or fails the job once the budget is spent.
// It returns the params to persist (nil when unchanged) and false when the
// job was failed.
func (m *Manager) resumeStalled(ctx context.Context, run *jobRun) (*planner.EncodingParams, bool) {
	job := run.job
	if job.AttemptCount == 0 {
		return nil, true
	}
	attempts, err := m.store.Attempts(ctx, job.ID)
	if err != nil {
		run.logger.Warn("attempt history unavailable; resuming with stored params", logging.Error(err))
		return nil, true
	}
	if len(attempts) == 0 {
		return nil, true
	}
	last := attempts[len(attempts)-1]
	if last.Diagnostics != queue.StalledEncodeMessage || !sameMutation(last.Params, *job.Params) {
		return nil, true
	}

	classification := retry.Classification{
		Outcome:  last.Outcome,
		Reason:   last.Reason,
		Evidence: last.Diagnostics,
	}
	decision := m.deps.Engine.Decide(ctx, job, attempts, classification)
	attrs := []logging.Attr{
		logging.Int(logging.FieldAttempt, last.Number),
		logging.String("stalled_worker", last.WorkerID),
	}
	attrs = append(attrs, logging.DecisionAttrs("encode_stall", string(decision.Action), string(decision.Reason))...)
	if decision.Action == retry.ActionRetry {
		attrs = append(attrs,
			logging.String("dimension", string(decision.Dimension)),
			logging.String("value", decision.Value),
		)
	}
	logging.WarnWithContext(run.logger, "previous encode stalled", "encode_stalled", attrs...)

	switch decision.Action {
	case retry.ActionRetry:
		next := decision.Params
		return &next, true
	default:
		message := last.Diagnostics
		if decision.Reason == queue.ReasonRetriesExhausted {
			message = fmt.Sprintf("%d attempts failed; last: %s %s", len(attempts), last.Reason, last.Diagnostics)
		}
		m.fail(ctx, run, &queue.JobError{
			Kind:    queue.OutcomePermanentFailure,
			Reason:  decision.Reason,
			Message: message,
		}, attempts)
		return nil, false
	}
}

// sameMutation reports whether two parameter sets agree on every dimension
// the retry engine mutates.
func sameMutation(a, b planner.EncodingParams) bool {
	for _, dim := range []planner.Dimension{planner.DimensionFrameBuffers, planner.DimensionBFrames, planner.DimensionPaddingMode} {
		if a.Value(dim) != b.Value(dim) {
			return false
		}
	}
	return true
}

func (m *Manager) finalizeStage(ctx context.Context, run *jobRun, encoded string, attempts []queue.Attempt) {
	job := run.job
	stageCtx := services.WithStage(ctx, string(queue.StateFinalizing))
	sidecars := m.prepareSubtitles(stageCtx, run)

	outputPath, err := m.deps.Finalizer.Finalize(stageCtx, finalize.Artifacts{
		Job:      job,
		Encoded:  encoded,
		Sidecars: sidecars,
	})
	if err != nil {
		if ctx.Err() != nil {
			m.release(ctx, run)
			return
		}
		m.fail(ctx, run, &queue.JobError{
			Kind:    queue.OutcomePermanentFailure,
			Reason:  queue.ReasonFinalizeFailed,
			Message: err.Error(),
		}, attempts)
		return
	}
	if !m.advance(ctx, run, queue.StateSucceeded, queue.Payload{OutputPath: outputPath, ClearError: true}) {
		return
	}
	job.OutputPath = outputPath
	if err := os.RemoveAll(m.workDir(job)); err != nil {
		run.logger.Warn("work directory cleanup failed", logging.Error(err))
	}
	run.logger.Info("job succeeded",
		logging.String("output", outputPath),
		logging.Int("attempts", job.AttemptCount),
		logging.Int("subtitles", len(sidecars)),
	)
	m.notifySuccess(ctx, run)
}

// prepareSubtitles gathers external and embedded tracks and writes normalized
// sidecars next to the encoded file. Problems are logged and never fail the
// job.
func (m *Manager) prepareSubtitles(ctx context.Context, run *jobRun) []subtitles.Sidecar {
	if !m.cfg.Subtitles.Enabled || m.deps.Normalizer == nil {
		return nil
	}
	job := run.job
	tracks, err := subtitles.DiscoverExternal(job.SourcePath)
	if err != nil {
		run.logger.Warn("external subtitle discovery failed", logging.Error(err))
	}
	if m.cfg.Subtitles.ExtractTracks && m.deps.Extractor != nil && job.Probe != nil && len(job.Probe.Subtitles) > 0 {
		extracted, errs := m.deps.Extractor.Extract(ctx, job.SourcePath, job.Probe.Subtitles, filepath.Join(m.workDir(job), "embedded"))
		tracks = append(tracks, extracted...)
		for _, subErr := range errs {
			logging.WarnWithContext(run.logger, "embedded subtitle skipped", "subtitle_extract_failed",
				logging.Int("stream_index", subErr.StreamIndex),
				logging.Error(subErr),
				logging.String(logging.FieldErrorHint, "provide an external .srt next to the source"),
				logging.String(logging.FieldImpact, "track not archived"),
			)
		}
	}
	if len(tracks) == 0 {
		return nil
	}
	sidecars, _ := m.deps.Normalizer.NormalizeAll(ctx, job.Title, m.workDir(job), tracks)
	return sidecars
}

// advance moves the job to the next state, logging and releasing the claim
// when the store refuses.
func (m *Manager) advance(ctx context.Context, run *jobRun, to queue.State, payload queue.Payload) bool {
	payload.WorkerID = run.workerID
	from := run.job.State
	if err := m.store.Advance(ctx, run.job.ID, from, to, payload); err != nil {
		if ctx.Err() == nil {
			logging.ErrorWithContext(run.logger, "state transition refused", "transition_failed",
				logging.String("from", string(from)),
				logging.String("to", string(to)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "another worker or an operator changed the job"),
			)
		}
		m.setLastError(err)
		return false
	}
	run.job.State = to
	if payload.Error != nil {
		run.job.LastError = payload.Error
	} else if payload.ClearError {
		run.job.LastError = nil
	}
	return true
}

// interrupted handles a stage stopped by shutdown, cancel or a lost lease.
// It returns false when the stage failed for another reason.
func (m *Manager) interrupted(ctx context.Context, run *jobRun) bool {
	switch {
	case run.keeper.wasLost():
		return true
	case run.keeper.wasCancelled():
		m.failCancelled(ctx, run)
		return true
	case ctx.Err() != nil:
		m.release(ctx, run)
		return true
	default:
		return false
	}
}

// release hands the claim back on shutdown so the next daemon resumes the job.
func (m *Manager) release(ctx context.Context, run *jobRun) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := m.store.Release(releaseCtx, run.job.ID, run.workerID); err != nil {
		run.logger.Warn("release claim failed; job resumes after lease expiry", logging.Error(err))
		return
	}
	run.logger.Info("claim released", logging.String("state", string(run.job.State)))
}

func (m *Manager) workDir(job *queue.Job) string {
	return filepath.Join(m.cfg.Paths.StateDir, "work", strconv.FormatInt(job.ID, 10))
}

func (m *Manager) encodedPath(job *queue.Job) string {
	return filepath.Join(m.workDir(job), job.Title+".mp4")
}

func (m *Manager) attemptLogPath(jobID int64, number int) string {
	return m.cfg.AttemptLogPath(jobID, number)
}

func removeQuietly(path string) {
	_ = os.Remove(path)
}
