// Package planner derives the initial encoding parameters for a probed source
// and defines the bounded mutation space the retry engine explores.
//
// Plan is deterministic and never looks at failure history. Every parameter
// set it or EncodingParams.With produces passes Validate.
package planner
