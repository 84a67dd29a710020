// Package retry classifies transcoder runs and decides how a job continues
// after a failed attempt.
//
// Classify turns exit status and stderr into an outcome. Engine.Decide then
// either fails the job (permanent failure or attempt budget spent) or picks
// the next parameter mutation: dimensions are walked in configured priority,
// and within a dimension the untried candidate with the best historical
// success rate for the source's resolution class wins. No (dimension, value)
// pair is repeated for a job until every candidate has been tried.
package retry
