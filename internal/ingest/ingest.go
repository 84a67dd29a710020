package ingest

import (
	"context"
	"errors"
	"log/slog"

	"mediaconv/internal/classify"
	"mediaconv/internal/logging"
	"mediaconv/internal/queue"
	"mediaconv/internal/services"
)

// Classifier turns a path into job candidates.
type Classifier interface {
	Classify(ctx context.Context, path string, kind classify.Kind) (classify.Result, error)
}

// JobStore is the slice of the queue store ingestion needs.
type JobStore interface {
	Enqueue(ctx context.Context, job queue.NewJob) (int64, error)
}

// Disposition says what happened to one ingested path.
type Disposition string

const (
	// DispositionQueued means every candidate is now queued or already was.
	DispositionQueued Disposition = "queued"
	// DispositionRejected means the path can never succeed and is dropped.
	DispositionRejected Disposition = "rejected"
	// DispositionDeferred means a transient error occurred; retry later.
	DispositionDeferred Disposition = "deferred"
)

// Outcome reports the effect of ingesting one path.
type Outcome struct {
	Path        string
	Disposition Disposition
	Enqueued    []int64
	Duplicates  int
	Errors      []*classify.ClassificationError
	Err         error
}

// Ingester classifies and enqueues paths.
type Ingester struct {
	classifier Classifier
	store      JobStore
	logger     *slog.Logger
}

// New constructs an Ingester.
func New(classifier Classifier, store JobStore, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Ingester{classifier: classifier, store: store, logger: logging.NewComponentLogger(logger, "ingest")}
}

// IngestPath classifies path, applies season folder renames and enqueues
// every resulting job. Enqueueing a path that already has a live job counts
// as success.
func (i *Ingester) IngestPath(ctx context.Context, path string) Outcome {
	out := Outcome{Path: path}
	result, err := i.classifier.Classify(ctx, path, "")
	if err != nil {
		out.Err = err
		out.Disposition = dispositionFor(err)
		i.logOutcome(out)
		return out
	}
	result, err = classify.ApplyRenames(result)
	out.Errors = result.Errors
	if err != nil {
		out.Err = err
		out.Disposition = DispositionDeferred
		i.logOutcome(out)
		return out
	}
	for _, rename := range result.Renames {
		i.logger.Info("season folder renamed",
			logging.String("from", rename.From),
			logging.String("to", rename.To),
		)
	}

	out.Disposition = DispositionQueued
	for _, candidate := range result.Jobs {
		id, err := i.store.Enqueue(ctx, candidate.NewJob())
		var dup *queue.DuplicateJobError
		switch {
		case errors.As(err, &dup):
			out.Duplicates++
			i.logger.Debug("job already queued",
				logging.String("source", candidate.SourcePath),
				logging.Int64(logging.FieldJobID, dup.ExistingID),
			)
		case err != nil:
			out.Err = err
			out.Disposition = DispositionDeferred
		default:
			out.Enqueued = append(out.Enqueued, id)
			i.logger.Info("job enqueued",
				logging.Int64(logging.FieldJobID, id),
				logging.String("source", candidate.SourcePath),
				logging.String("title", candidate.Title),
				logging.String("media_type", string(candidate.MediaType)),
			)
		}
	}
	if len(result.Jobs) == 0 && out.Err == nil {
		out.Disposition = DispositionRejected
	}
	i.logOutcome(out)
	return out
}

// dispositionFor maps a classification error onto what to do with its line.
func dispositionFor(err error) Disposition {
	switch {
	case errors.Is(err, classify.ErrOutsideRoots),
		errors.Is(err, classify.ErrRejectedPrefix),
		errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrValidation):
		return DispositionRejected
	default:
		return DispositionDeferred
	}
}

func (i *Ingester) logOutcome(out Outcome) {
	for _, clsErr := range out.Errors {
		logging.WarnWithContext(i.logger, "file skipped during classification", "classification_skipped",
			logging.String("path", clsErr.Path),
			logging.String("reason", clsErr.Reason),
			logging.String(logging.FieldErrorHint, "rename the file to include SxxExx or move it out of the scratch root"),
			logging.String(logging.FieldImpact, "file not converted"),
		)
	}
	switch out.Disposition {
	case DispositionRejected:
		attrs := []logging.Attr{
			logging.String("path", out.Path),
			logging.String(logging.FieldErrorHint, "check the path is inside a scratch root and exists"),
			logging.String(logging.FieldImpact, "request dropped"),
		}
		if out.Err != nil {
			attrs = append(attrs, logging.Error(out.Err))
		} else {
			attrs = append(attrs, logging.String("reason", "no convertible files found"))
		}
		logging.WarnWithContext(i.logger, "ingestion request rejected", "ingest_rejected", attrs...)
	case DispositionDeferred:
		logging.WarnWithContext(i.logger, "ingestion deferred", "ingest_deferred",
			logging.String("path", out.Path),
			logging.Error(out.Err),
			logging.String(logging.FieldErrorHint, "the request is retried on the next pass"),
			logging.String(logging.FieldImpact, "conversion delayed"),
		)
	}
}
