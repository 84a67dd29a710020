// Package classify turns ingestion paths into queueable jobs.
//
// A path is first guarded: it must live under the movies or TV scratch root
// and never under a rejected prefix. Movie paths resolve to the largest
// eligible video in the directory and a `Title.Year` output name, preferring a
// metadata lookup over filename parsing. TV paths resolve to one candidate per
// `SxxExx` episode, with season folders normalized to `SeasonNN`. Season
// renames are returned, not performed, so callers decide when to touch disk
// via ApplyRenames.
package classify
