// Package config loads, normalizes, and validates mediaconv configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TMDB_READ_ACCESS_TOKEN and MEDIACONV_SMTP_PASSWORD. The Config type
// centralizes every knob the daemon and CLI need: scratch roots that decide
// whether a path is a movie or a series, archive targets, encoder settings,
// and the retry mutation policy.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical log formats, and clear validation errors.
package config
