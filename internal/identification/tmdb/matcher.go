package tmdb

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"mediaconv/internal/classify"
	"mediaconv/internal/config"
	"mediaconv/internal/logging"
	"mediaconv/internal/textutil"
)

const (
	topResults    = 5
	minSimilarity = 0.5
)

// Matcher resolves classifier guesses against TMDB search results.
type Matcher struct {
	searcher Searcher
	logger   *slog.Logger
}

var _ classify.Lookup = (*Matcher)(nil)

// NewMatcher wraps a searcher.
func NewMatcher(searcher Searcher, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Matcher{searcher: searcher, logger: logging.NewComponentLogger(logger, "tmdb")}
}

// NewLookup builds the configured metadata lookup. It returns nil when no
// read access token is configured, which disables lookups.
func NewLookup(cfg *config.Config, logger *slog.Logger) (classify.Lookup, error) {
	if cfg.TMDB.ReadAccessToken == "" {
		return nil, nil
	}
	client, err := New(cfg.TMDB.ReadAccessToken, cfg.TMDB.BaseURL, cfg.TMDB.Language)
	if err != nil {
		return nil, fmt.Errorf("tmdb client: %w", err)
	}
	return NewMatcher(client, logger), nil
}

// LookupMovie searches with the guessed year first and without it when that
// yields nothing. The top five results are scored by fingerprint similarity of
// "title year" against the guess; the best one at or above the similarity
// floor wins.
func (m *Matcher) LookupMovie(ctx context.Context, guess classify.Guess) (*classify.Match, error) {
	resp, err := m.searcher.SearchMovie(ctx, guess.Query, guess.Year)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 && guess.Year > 0 {
		resp, err = m.searcher.SearchMovie(ctx, guess.Query, 0)
		if err != nil {
			return nil, err
		}
	}
	results := resp.Results
	if len(results) > topResults {
		results = results[:topResults]
	}

	target := withYear(guess.Query, guess.Year)
	var (
		best      *Result
		bestScore float64
	)
	for i := range results {
		candidate := results[i]
		score := textutil.TitleSimilarity(withYear(candidate.Title, candidate.Year()), target)
		if candidate.OriginalTitle != "" && candidate.OriginalTitle != candidate.Title {
			if alt := textutil.TitleSimilarity(withYear(candidate.OriginalTitle, candidate.Year()), target); alt > score {
				score = alt
			}
		}
		if score > bestScore {
			best = &results[i]
			bestScore = score
		}
	}
	if best == nil || bestScore < minSimilarity {
		m.logger.Debug("tmdb search produced no confident match",
			logging.String("query", guess.Query),
			logging.Int("results", len(results)),
			logging.Float64("best_score", bestScore),
		)
		return nil, nil
	}
	m.logger.Debug("tmdb match selected",
		logging.String("query", guess.Query),
		logging.Int64("tmdb_id", best.ID),
		logging.String("title", best.Title),
		logging.Float64("score", bestScore),
	)
	return &classify.Match{Title: best.Title, Year: best.Year()}, nil
}

func withYear(title string, year int) string {
	if year <= 0 {
		return title
	}
	return title + " " + strconv.Itoa(year)
}
