// Package tmdb provides the minimal TMDB API client used to resolve movie
// titles during classification.
//
// It authenticates with a read access token (Bearer) and exposes movie search
// with an optional release-year filter. Matcher adapts the client to the
// classifier's Lookup contract by scoring the top five results with title
// fingerprints. Options allow tests to supply custom HTTP clients.
package tmdb
