// Package transcode drives ffmpeg with the Intel Quick Sync HEVC encoder.
//
// The Transcoder contract is deliberately narrow: one blocking call per
// attempt that reports the exit status and a stderr excerpt. Judging the
// outcome belongs to the retry package. Transcode only returns an error when
// the process could not be started at all.
package transcode
