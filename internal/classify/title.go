package classify

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mediaconv/internal/textutil"
)

const minYear = 1888

var (
	bracketPattern   = regexp.MustCompile(`\[[^\]]*\]|\{[^}]*\}`)
	parenPattern     = regexp.MustCompile(`[()]`)
	titleSplit       = regexp.MustCompile(`[\s._]+`)
	yearPattern      = regexp.MustCompile(`^\d{4}$`)
	releaseTagTokens = regexp.MustCompile(`(?i)^(` +
		`\d{3,4}[pi]|4k|uhd|hdr|hdr10\+?|dv|dovi|sdr|` +
		`blu-?ray|bdrip|brrip|bdremux|remux|web-?dl|web-?rip|hdtv|hdrip|dvdrip|dvd|` +
		`x26[45]|h26[45]|hevc|avc|xvid|divx|10bit|8bit|` +
		`aac\d*|ac3|eac3|dts|dts-hd|truehd|atmos|flac|ddp?\d*|` +
		`proper|repack|unrated|remastered` +
		`)(-[a-z0-9]+)?$`)
	videoExtensions = map[string]bool{
		".mkv": true,
		".mp4": true,
		".avi": true,
		".mov": true,
		".m4v": true,
	}
	sampleTokens = map[string]bool{
		"sample":  true,
		"trailer": true,
		"extras":  true,
	}
)

func isVideoFile(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

func stem(name string) string {
	base := filepath.Base(name)
	if isVideoFile(base) {
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return base
}

// hasSampleToken reports whether any word of name marks it as a sample,
// trailer or extras file.
func hasSampleToken(name string) bool {
	for _, token := range textutil.Tokenize(stem(name)) {
		if sampleTokens[token] {
			return true
		}
	}
	return false
}

// parseMovieGuess extracts a title query and release year from a file or
// directory name. Bracketed segments are dropped, the name is cut at the first
// release tag, and the last plausible year with a non-empty title before it
// becomes the year.
func parseMovieGuess(name string, now time.Time) Guess {
	cleaned := bracketPattern.ReplaceAllString(stem(name), " ")
	cleaned = parenPattern.ReplaceAllString(cleaned, " ")
	tokens := make([]string, 0, 8)
	for _, token := range titleSplit.Split(cleaned, -1) {
		token = strings.Trim(token, "-")
		if token != "" {
			tokens = append(tokens, token)
		}
	}

	cut := len(tokens)
	for i, token := range tokens {
		if i > 0 && releaseTagTokens.MatchString(token) {
			cut = i
			break
		}
	}
	tokens = tokens[:cut]

	maxYear := now.Year() + 1
	yearIdx := -1
	year := 0
	for i := len(tokens) - 1; i > 0; i-- {
		if !yearPattern.MatchString(tokens[i]) {
			continue
		}
		value, _ := strconv.Atoi(tokens[i])
		if value >= minYear && value <= maxYear {
			yearIdx = i
			year = value
			break
		}
	}
	if yearIdx > 0 {
		tokens = tokens[:yearIdx]
	}
	return Guess{Query: strings.Join(tokens, " "), Year: year}
}

// movieTitle renders the `Title.Year` output name.
func movieTitle(title string, year int) string {
	dotted := textutil.DotTitle(title)
	if year <= 0 {
		return dotted
	}
	if dotted == "" {
		return strconv.Itoa(year)
	}
	return dotted + "." + strconv.Itoa(year)
}
