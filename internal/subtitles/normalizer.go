package subtitles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"mediaconv/internal/fileutil"
	"mediaconv/internal/logging"
)

// Options configures a Normalizer.
type Options struct {
	Fold   FoldMode
	Logger *slog.Logger
}

// Normalizer repairs subtitle encodings, detects languages and writes
// sidecars named for playback defaults.
type Normalizer struct {
	fold   FoldMode
	logger *slog.Logger
}

// New constructs a Normalizer.
func New(opts Options) *Normalizer {
	fold := opts.Fold
	if fold == "" {
		fold = FoldComma
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Normalizer{fold: fold, logger: logging.NewComponentLogger(logger, "subtitles")}
}

// Normalize reads one track and returns its normalized form without writing
// anything. Binary tracks are passed through untouched.
func (n *Normalizer) Normalize(ctx context.Context, track Track) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	raw, err := os.ReadFile(track.Path)
	if err != nil {
		return Result{}, fmt.Errorf("read subtitle: %w", err)
	}
	if len(raw) == 0 {
		return Result{}, errors.New("subtitle file is empty")
	}

	ext := trackExtension(track)
	result := Result{Track: track, Ext: ext}
	if isBinary(track, ext, raw) {
		result.Binary = true
		if ext == "sub" {
			result.Companion = vobSubCompanion(track.Path)
		}
		result.Language, result.LanguageSource = detectLanguage(track, "")
		return result, nil
	}

	text, encoding := decodeText(raw)
	text = cleanText(text)
	if ext == "srt" {
		text, result.RemovedCues = CleanSRT(text)
	}
	result.Encoding = encoding
	result.Language, result.LanguageSource = detectLanguage(track, text)
	if result.Language == "ro" {
		text = FoldRomanian(text, n.fold)
	}
	result.Text = text
	return result, nil
}

// NormalizeAll normalizes every track and writes sidecars into outputDir.
// The first Romanian track becomes the default. Track failures are returned
// as SubtitleErrors and never abort the remaining tracks.
func (n *Normalizer) NormalizeAll(ctx context.Context, title, outputDir string, tracks []Track) ([]Sidecar, []*SubtitleError) {
	var (
		results []Result
		errs    []*SubtitleError
	)
	for _, track := range tracks {
		result, err := n.Normalize(ctx, track)
		if err != nil {
			errs = append(errs, &SubtitleError{Path: track.Path, StreamIndex: track.StreamIndex, Op: "normalize", Err: err})
			continue
		}
		results = append(results, result)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		for _, result := range results {
			errs = append(errs, &SubtitleError{Path: result.Track.Path, StreamIndex: result.Track.StreamIndex, Op: "prepare output", Err: err})
		}
		return nil, errs
	}

	defaultAssigned := false
	used := make(map[string]int)
	sidecars := make([]Sidecar, 0, len(results))
	for _, result := range results {
		isDefault := false
		if result.Language == "ro" && !defaultAssigned {
			isDefault = true
			defaultAssigned = true
		}
		base := sidecarBase(title, result.Language, isDefault)
		used[base+"."+result.Ext]++
		if count := used[base+"."+result.Ext]; count > 1 {
			base += "." + strconv.Itoa(count)
		}
		sidecar, err := n.write(result, filepath.Join(outputDir, base), isDefault)
		if err != nil {
			errs = append(errs, &SubtitleError{Path: result.Track.Path, StreamIndex: result.Track.StreamIndex, Op: "write sidecar", Err: err})
			continue
		}
		n.logger.Info("subtitle normalized",
			logging.String("source", result.Track.Path),
			logging.String("sidecar", sidecar.Path),
			logging.String("language", result.Language),
			logging.String("language_source", result.LanguageSource),
			logging.String("encoding", result.Encoding),
			logging.Bool("default", isDefault),
			logging.Bool("binary", result.Binary),
			logging.Int("removed_cues", result.RemovedCues),
		)
		sidecars = append(sidecars, sidecar)
	}
	for _, subErr := range errs {
		logging.WarnWithContext(n.logger, "subtitle track skipped", "subtitle_track_failed",
			logging.String("source", subErr.Path),
			logging.Int("stream_index", subErr.StreamIndex),
			logging.Error(subErr),
			logging.String(logging.FieldErrorHint, "inspect the subtitle file manually"),
			logging.String(logging.FieldImpact, "track omitted from output"),
		)
	}
	return sidecars, errs
}

// SidecarName renders the sidecar file name for a title, language and
// extension: "<Title>.default.ro.<ext>" for the default Romanian track,
// "<Title>.<lang>.<ext>" otherwise.
func SidecarName(title, lang, ext string, isDefault bool) string {
	return sidecarBase(title, lang, isDefault) + "." + ext
}

func sidecarBase(title, lang string, isDefault bool) string {
	if lang == "" {
		lang = Undetermined
	}
	if isDefault {
		return title + ".default." + lang
	}
	return title + "." + lang
}

func (n *Normalizer) write(result Result, base string, isDefault bool) (Sidecar, error) {
	sidecar := Sidecar{
		Path:     base + "." + result.Ext,
		Language: result.Language,
		Default:  isDefault,
		Binary:   result.Binary,
		Source:   result.Track.Path,
	}
	if !result.Binary {
		if err := os.WriteFile(sidecar.Path, []byte(result.Text), 0o644); err != nil {
			return Sidecar{}, err
		}
		return sidecar, nil
	}
	if err := fileutil.CopyFile(result.Track.Path, sidecar.Path); err != nil {
		return Sidecar{}, err
	}
	if result.Companion != "" {
		companion := base + ".idx"
		if err := fileutil.CopyFile(result.Companion, companion); err != nil {
			_ = os.Remove(sidecar.Path)
			return Sidecar{}, fmt.Errorf("copy idx companion: %w", err)
		}
		sidecar.Companion = companion
	}
	return sidecar, nil
}
