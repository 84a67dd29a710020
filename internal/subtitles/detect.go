package subtitles

import (
	"path/filepath"
	"regexp"
	"strings"

	"mediaconv/internal/language"
	"mediaconv/internal/textutil"
)

const (
	filenameLanguageTokens = 3
	minStopwordHits        = 5
)

var (
	timestampPattern = regexp.MustCompile(`\d{1,2}:\d{2}:\d{2}[,.]\d{2,3}\s*-->\s*\d{1,2}:\d{2}:\d{2}[,.]\d{2,3}`)
	markupPattern    = regexp.MustCompile(`<[^>]+>|\{[^}]*\}`)
	filenameSplit    = regexp.MustCompile(`[^a-z0-9]+`)

	romanianStopwords = wordSet("si", "nu", "este", "sa", "ce", "de", "la", "cu", "pe", "un", "mai", "am", "ai",
		"ca", "eu", "tu", "asta", "pentru", "care", "ma", "te", "esti", "sunt", "dar", "acum", "aici", "bine",
		"stiu", "vreau", "poate", "doar", "unde", "cum", "daca", "trebuie", "foarte", "noi", "voi", "lui", "ei")
	englishStopwords = wordSet("the", "and", "you", "to", "is", "it", "that", "of", "what", "this", "me", "my",
		"we", "are", "was", "for", "have", "not", "be", "your", "do", "know", "just", "with", "he", "she", "can",
		"there", "here", "they", "will", "right", "about", "get", "want", "don")
)

func wordSet(words ...string) map[string]bool {
	out := make(map[string]bool, len(words))
	for _, w := range words {
		out[w] = true
	}
	return out
}

// detectLanguage resolves a track language from the filename, then the stream
// tag, then the subtitle text. It returns Undetermined when all three fail.
func detectLanguage(track Track, text string) (string, string) {
	if lang := languageFromFilename(track.Path); lang != "" {
		return lang, SourceFilename
	}
	if lang := language.ToISO2(track.Language); lang != "" {
		return lang, SourceStream
	}
	if lang := languageFromContent(text); lang != "" {
		return lang, SourceContent
	}
	return Undetermined, ""
}

// languageFromFilename checks the trailing tokens of the file stem, so
// "Movie.2001.ro.srt" and "Movie.2001.eng.forced.srt" both resolve.
func languageFromFilename(path string) string {
	if path == "" {
		return ""
	}
	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	tokens := filenameSplit.Split(stem, -1)
	checked := 0
	for i := len(tokens) - 1; i >= 1 && checked < filenameLanguageTokens; i-- {
		if tokens[i] == "" {
			continue
		}
		checked++
		if lang := language.FromToken(tokens[i]); lang != "" {
			return lang
		}
	}
	return ""
}

// languageFromContent distinguishes Romanian from English by stopword counts.
func languageFromContent(text string) string {
	if text == "" {
		return ""
	}
	text = timestampPattern.ReplaceAllString(text, " ")
	text = markupPattern.ReplaceAllString(text, " ")
	ro, en := 0, 0
	for _, token := range textutil.Tokenize(text) {
		if romanianStopwords[token] {
			ro++
		}
		if englishStopwords[token] {
			en++
		}
	}
	switch {
	case ro < minStopwordHits && en < minStopwordHits:
		return ""
	case ro*2 > en*3:
		return "ro"
	case en*2 > ro*3:
		return "en"
	default:
		return ""
	}
}
