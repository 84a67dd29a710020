package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"mediaconv/internal/logging"
	"mediaconv/internal/planner"
	"mediaconv/internal/subtitles"
)

// subtitleMuxers maps ffprobe subtitle codecs to the ffmpeg arguments that
// write them as a standalone file.
var subtitleMuxers = map[string][]string{
	"subrip":            {"-c:s", "srt", "-f", "srt"},
	"srt":               {"-c:s", "srt", "-f", "srt"},
	"mov_text":          {"-c:s", "srt", "-f", "srt"},
	"text":              {"-c:s", "srt", "-f", "srt"},
	"ass":               {"-c:s", "copy", "-f", "ass"},
	"ssa":               {"-c:s", "copy", "-f", "ass"},
	"webvtt":            {"-c:s", "copy", "-f", "webvtt"},
	"hdmv_pgs_subtitle": {"-c:s", "copy", "-f", "sup"},
}

// Extractor pulls embedded subtitle streams out of a container with ffmpeg.
type Extractor struct {
	binary string
	logger *slog.Logger
}

// NewExtractor constructs an Extractor.
func NewExtractor(binary string, logger *slog.Logger) *Extractor {
	if binary == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{binary: binary, logger: logging.NewComponentLogger(logger, "subtitle-extract")}
}

// Extract writes each stream to dir as track<index>.<ext> and returns the
// extracted tracks. Names carry no language so the stream tag decides. Streams
// ffmpeg cannot write standalone (embedded VobSub, DVB) are reported as
// errors and skipped.
func (e *Extractor) Extract(ctx context.Context, source string, streams []planner.SubtitleStream, dir string) ([]subtitles.Track, []*subtitles.SubtitleError) {
	if len(streams) == 0 {
		return nil, nil
	}
	var (
		tracks []subtitles.Track
		errs   []*subtitles.SubtitleError
	)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		for _, stream := range streams {
			errs = append(errs, &subtitles.SubtitleError{Path: source, StreamIndex: stream.Index, Op: "extract", Err: err})
		}
		return nil, errs
	}
	for _, stream := range streams {
		codec := strings.ToLower(strings.TrimSpace(stream.Codec))
		muxer, ok := subtitleMuxers[codec]
		if !ok {
			errs = append(errs, &subtitles.SubtitleError{
				Path:        source,
				StreamIndex: stream.Index,
				Op:          "extract",
				Err:         fmt.Errorf("no standalone muxer for codec %q", stream.Codec),
			})
			continue
		}
		dest := filepath.Join(dir, fmt.Sprintf("track%d.%s", stream.Index, subtitles.ExtensionForCodec(codec)))
		args := []string{
			"-y",
			"-hide_banner",
			"-loglevel", "error",
			"-i", source,
			"-map", fmt.Sprintf("0:%d", stream.Index),
		}
		args = append(args, muxer...)
		args = append(args, dest)
		cmd := exec.CommandContext(ctx, e.binary, args...) //nolint:gosec
		if output, err := cmd.CombinedOutput(); err != nil {
			errs = append(errs, &subtitles.SubtitleError{
				Path:        source,
				StreamIndex: stream.Index,
				Op:          "extract",
				Err:         fmt.Errorf("ffmpeg extract: %w: %s", err, strings.TrimSpace(string(output))),
			})
			continue
		}
		e.logger.Debug("subtitle stream extracted",
			logging.Int("stream_index", stream.Index),
			logging.String("codec", codec),
			logging.String("path", dest),
		)
		tracks = append(tracks, subtitles.Track{
			Path:        dest,
			StreamIndex: stream.Index,
			Codec:       codec,
			Language:    stream.Language,
		})
	}
	return tracks, errs
}
