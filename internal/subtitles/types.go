package subtitles

import (
	"fmt"
	"strings"
)

// FoldMode selects how Romanian diacritics are written out.
type FoldMode string

const (
	// FoldComma canonicalizes cedilla and mojibake forms to comma-below letters.
	FoldComma FoldMode = "comma"
	// FoldASCII strips Romanian diacritics entirely for players without the glyphs.
	FoldASCII FoldMode = "ascii"
)

// ParseFoldMode validates a configured fold mode. Empty selects FoldComma.
func ParseFoldMode(value string) (FoldMode, error) {
	switch FoldMode(strings.ToLower(strings.TrimSpace(value))) {
	case "", FoldComma:
		return FoldComma, nil
	case FoldASCII:
		return FoldASCII, nil
	default:
		return "", fmt.Errorf("unknown romanian fold mode %q", value)
	}
}

// Track is one subtitle input: an external sidecar next to the source or an
// embedded stream already extracted to disk.
type Track struct {
	Path string
	// StreamIndex is the container stream index, or -1 for external files.
	StreamIndex int
	// Codec is the ffprobe codec name when known.
	Codec string
	// Language is the stream language tag when known.
	Language string
}

// Language detection sources, strongest first.
const (
	SourceFilename = "filename"
	SourceStream   = "stream"
	SourceContent  = "content"
)

// Undetermined is the ISO 639-2 code used when no language could be found.
const Undetermined = "und"

// Result is the normalized form of one track, held in memory until written.
type Result struct {
	Track          Track
	Language       string
	LanguageSource string
	Ext            string
	Binary         bool
	Encoding       string
	Text           string
	Companion      string
	RemovedCues    int
}

// Sidecar is a written subtitle file ready for finalization.
type Sidecar struct {
	Path      string
	Language  string
	Default   bool
	Binary    bool
	Companion string
	Source    string
}

// SubtitleError reports a track that could not be normalized. It never fails
// the owning job.
type SubtitleError struct {
	Path        string
	StreamIndex int
	Op          string
	Err         error
}

func (e *SubtitleError) Error() string {
	if e.StreamIndex >= 0 {
		return fmt.Sprintf("subtitle stream %d (%s): %s: %v", e.StreamIndex, e.Path, e.Op, e.Err)
	}
	return fmt.Sprintf("subtitle %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *SubtitleError) Unwrap() error { return e.Err }
