package classify

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"mediaconv/internal/logging"
	"mediaconv/internal/queue"
	"mediaconv/internal/services"
)

func (c *Classifier) classifyMovie(ctx context.Context, path string, info fs.FileInfo) (Result, error) {
	var result Result
	source := path
	if info.IsDir() {
		largest, err := c.largestMovieFile(path)
		if err != nil {
			return Result{}, err
		}
		if largest == "" {
			result.addError(path, "no eligible video file")
			return result, nil
		}
		source = largest
	} else {
		if !isVideoFile(path) {
			result.addError(path, "not a video file")
			return result, nil
		}
		if hasSampleToken(path) || info.Size() < c.opts.SampleMinBytes {
			result.addError(path, "sample or extras file")
			return result, nil
		}
	}

	title := c.resolveMovieTitle(ctx, source)
	if title == "" {
		result.addError(source, "could not derive a title")
		return result, nil
	}
	result.Jobs = append(result.Jobs, Candidate{
		SourcePath: source,
		MediaType:  queue.MediaMovie,
		Title:      title,
	})
	return result, nil
}

// largestMovieFile returns the biggest eligible video directly inside dir.
// Ties keep the lexically first name.
func (c *Classifier) largestMovieFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "classify", "read movie directory", dir, err)
	}
	var (
		best     string
		bestSize int64 = -1
	)
	for _, entry := range entries {
		if entry.IsDir() || !isVideoFile(entry.Name()) || hasSampleToken(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Size() < c.opts.SampleMinBytes {
			continue
		}
		if info.Size() > bestSize {
			best = filepath.Join(dir, entry.Name())
			bestSize = info.Size()
		}
	}
	return best, nil
}

// resolveMovieTitle prefers the metadata provider and falls back to the
// parsed filename. When the filename carries no year, the parent directory
// name is tried before giving up on one.
func (c *Classifier) resolveMovieTitle(ctx context.Context, source string) string {
	now := c.opts.Now()
	guess := parseMovieGuess(filepath.Base(source), now)
	parent := filepath.Dir(source)
	if guess.Year == 0 && parent != c.opts.MoviesRoot {
		if fromDir := parseMovieGuess(filepath.Base(parent), now); fromDir.Year > 0 && fromDir.Query != "" {
			guess = fromDir
		}
	}
	if guess.Query == "" {
		return movieTitle(stem(source), 0)
	}

	if match := c.lookup(ctx, guess, source); match != nil {
		year := match.Year
		if year == 0 {
			year = guess.Year
		}
		return movieTitle(match.Title, year)
	}
	return movieTitle(guess.Query, guess.Year)
}

func (c *Classifier) lookup(ctx context.Context, guess Guess, source string) *Match {
	if c.opts.Lookup == nil {
		return nil
	}
	lookupCtx, cancel := context.WithTimeout(ctx, c.opts.LookupTimeout)
	defer cancel()
	match, err := c.opts.Lookup.LookupMovie(lookupCtx, guess)
	if err != nil {
		logging.WarnWithContext(c.logger, "metadata lookup failed; using filename title", "metadata_lookup_failed",
			logging.String("source_path", source),
			logging.String("query", guess.Query),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check tmdb token and connectivity"),
			logging.String(logging.FieldImpact, "title derived from filename"),
		)
		return nil
	}
	if match == nil || match.Title == "" {
		c.logger.Debug("metadata lookup returned no match",
			logging.String("source_path", source),
			logging.String("query", guess.Query),
			logging.Int("year", guess.Year),
		)
		return nil
	}
	c.logger.Info("metadata lookup resolved title",
		logging.String("source_path", source),
		logging.String("query", guess.Query),
		logging.String("title", match.Title),
		logging.Int("year", match.Year),
	)
	return match
}
