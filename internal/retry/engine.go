package retry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"mediaconv/internal/logging"
	"mediaconv/internal/planner"
	"mediaconv/internal/queue"
)

// BiasSource provides historical success rates. *queue.Store satisfies it.
type BiasSource interface {
	Bias(ctx context.Context, resolutionClass string) (queue.Bias, error)
}

// Action is what the workflow should do after an attempt.
type Action string

const (
	ActionSucceed Action = "succeed"
	ActionRetry   Action = "retry"
	ActionFail    Action = "fail"
)

// Decision is the engine's verdict on a finished attempt.
type Decision struct {
	Action Action
	// Params, Dimension and Value describe the mutation when Action is retry.
	Params    planner.EncodingParams
	Dimension planner.Dimension
	Value     string
	// Repeat is set when every candidate was already tried and the engine
	// reused a value.
	Repeat bool
	// Reason explains a failure.
	Reason queue.FailureReason
}

// Engine decides retries and mutations for failed attempts.
type Engine struct {
	bias        BiasSource
	order       []planner.Dimension
	maxAttempts int
	logger      *slog.Logger
}

// NewEngine builds an engine with the given mutation priority. An empty order
// uses frame buffers, B-frames, then padding mode.
func NewEngine(bias BiasSource, order []string, maxAttempts int, logger *slog.Logger) (*Engine, error) {
	if maxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be at least 1, got %d", maxAttempts)
	}
	dims := make([]planner.Dimension, 0, len(order))
	seen := make(map[planner.Dimension]struct{}, len(order))
	for _, name := range order {
		dim, err := planner.ParseDimension(name)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[dim]; dup {
			return nil, fmt.Errorf("mutation dimension %q listed twice", dim)
		}
		seen[dim] = struct{}{}
		dims = append(dims, dim)
	}
	if len(dims) == 0 {
		dims = []planner.Dimension{planner.DimensionFrameBuffers, planner.DimensionBFrames, planner.DimensionPaddingMode}
	}
	return &Engine{
		bias:        bias,
		order:       dims,
		maxAttempts: maxAttempts,
		logger:      logging.NewComponentLogger(logger, "retry"),
	}, nil
}

// MaxAttempts returns the attempt budget per job.
func (e *Engine) MaxAttempts() int {
	return e.maxAttempts
}

// Decide must be called after the attempt has been recorded, so that job and
// attempts include it.
func (e *Engine) Decide(ctx context.Context, job *queue.Job, attempts []queue.Attempt, outcome Classification) Decision {
	switch outcome.Outcome {
	case queue.OutcomeSuccess:
		return Decision{Action: ActionSucceed}
	case queue.OutcomePermanentFailure:
		return Decision{Action: ActionFail, Reason: outcome.Reason}
	}

	count := job.AttemptCount
	if len(attempts) > count {
		count = len(attempts)
	}
	if count >= e.maxAttempts {
		return Decision{Action: ActionFail, Reason: queue.ReasonRetriesExhausted}
	}
	if job.Params == nil {
		return Decision{Action: ActionFail, Reason: outcome.Reason}
	}

	current := *job.Params
	tried := triedValues(current, attempts)
	bias := e.loadBias(ctx, job.ResolutionClass())

	for _, dim := range e.order {
		for _, value := range rankCandidates(dim, bias) {
			if tried[dim][value] {
				continue
			}
			next, err := current.With(dim, value)
			if err != nil {
				continue
			}
			return Decision{Action: ActionRetry, Params: next, Dimension: dim, Value: value}
		}
	}

	// Space exhausted: reuse the best-ranked value of the last dimension,
	// preferring one that differs from the current params.
	last := e.order[len(e.order)-1]
	ranked := rankCandidates(last, bias)
	for pass := 0; pass < 2; pass++ {
		for _, value := range ranked {
			if pass == 0 && value == current.Value(last) {
				continue
			}
			next, err := current.With(last, value)
			if err != nil {
				continue
			}
			return Decision{Action: ActionRetry, Params: next, Dimension: last, Value: value, Repeat: true}
		}
	}
	return Decision{Action: ActionRetry, Params: current.Clone(), Dimension: last, Value: current.Value(last), Repeat: true}
}

func (e *Engine) loadBias(ctx context.Context, class string) queue.Bias {
	if e.bias == nil || class == "" {
		return queue.Bias{ResolutionClass: class}
	}
	bias, err := e.bias.Bias(ctx, class)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, e.logger), "heuristic bias unavailable; using candidate order",
			"retry_bias_read_failed",
			logging.String("resolution_class", class),
			logging.Error(err),
			logging.String(logging.FieldImpact, "mutation ignores historical success rates for this decision"),
		)
		return queue.Bias{ResolutionClass: class}
	}
	return bias
}

// triedValues collects every (dimension, value) pair this job has run with.
func triedValues(current planner.EncodingParams, attempts []queue.Attempt) map[planner.Dimension]map[string]bool {
	dims := []planner.Dimension{planner.DimensionFrameBuffers, planner.DimensionBFrames, planner.DimensionPaddingMode}
	tried := make(map[planner.Dimension]map[string]bool, len(dims))
	for _, dim := range dims {
		tried[dim] = map[string]bool{current.Value(dim): true}
		for _, attempt := range attempts {
			tried[dim][attempt.Params.Value(dim)] = true
		}
	}
	return tried
}

// rankCandidates orders a dimension's candidates by historical success rate,
// keeping candidate order on ties.
func rankCandidates(dim planner.Dimension, bias queue.Bias) []string {
	candidates := planner.Candidates(dim)
	rates := make(map[string]float64, len(candidates))
	for _, value := range candidates {
		if entry, ok := bias.Lookup(dim, value); ok {
			rates[value] = entry.SuccessRate()
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return rates[candidates[i]] > rates[candidates[j]]
	})
	return candidates
}
