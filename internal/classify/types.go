package classify

import (
	"context"
	"errors"
	"fmt"

	"mediaconv/internal/queue"
)

// Kind is the media kind implied by the scratch root containing a path.
type Kind string

const (
	KindMovie  Kind = "movie"
	KindSeries Kind = "series"
)

var (
	// ErrOutsideRoots marks paths that are not under either scratch root.
	ErrOutsideRoots = errors.New("path outside configured roots")
	// ErrRejectedPrefix marks paths under a configured reject prefix.
	ErrRejectedPrefix = errors.New("path under rejected prefix")
)

// Guess is the title hint parsed from a filename.
type Guess struct {
	Query string
	Year  int
}

// Match is a title resolved by a metadata provider.
type Match struct {
	Title string
	Year  int
}

// Lookup resolves a parsed guess into a canonical title. A nil match with a
// nil error means the provider had no confident answer.
type Lookup interface {
	LookupMovie(ctx context.Context, guess Guess) (*Match, error)
}

// Candidate is one job the classifier wants queued.
type Candidate struct {
	SourcePath string
	MediaType  queue.MediaType
	Title      string
	Series     *queue.SeriesContext
}

// NewJob converts the candidate into a store insert request.
func (c Candidate) NewJob() queue.NewJob {
	job := queue.NewJob{
		SourcePath: c.SourcePath,
		MediaType:  c.MediaType,
		Title:      c.Title,
	}
	if c.Series != nil {
		series := *c.Series
		job.Series = &series
	}
	return job
}

// Rename is a season folder rename to apply before queueing.
type Rename struct {
	From string
	To   string
}

// ClassificationError reports a single file or directory that could not be
// classified. It never aborts the remaining files of the same request.
type ClassificationError struct {
	Path   string
	Reason string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify %s: %s", e.Path, e.Reason)
}

// Result is the outcome of classifying one ingestion path.
type Result struct {
	Jobs    []Candidate
	Errors  []*ClassificationError
	Renames []Rename
}

func (r *Result) addError(path, reason string) {
	r.Errors = append(r.Errors, &ClassificationError{Path: path, Reason: reason})
}
