package workflow

import (
	"context"

	"mediaconv/internal/finalize"
	"mediaconv/internal/planner"
	"mediaconv/internal/subtitles"
)

// Prober inspects a source file.
type Prober interface {
	Probe(ctx context.Context, path string) (planner.SourceProbe, error)
}

// SubtitleExtractor pulls embedded subtitle streams out to files.
type SubtitleExtractor interface {
	Extract(ctx context.Context, source string, streams []planner.SubtitleStream, dir string) ([]subtitles.Track, []*subtitles.SubtitleError)
}

// SubtitleNormalizer repairs subtitle tracks and writes sidecars.
type SubtitleNormalizer interface {
	NormalizeAll(ctx context.Context, title, outputDir string, tracks []subtitles.Track) ([]subtitles.Sidecar, []*subtitles.SubtitleError)
}

// Finalizer moves a converted job's artifacts into the archive.
type Finalizer interface {
	Finalize(ctx context.Context, a finalize.Artifacts) (string, error)
}
