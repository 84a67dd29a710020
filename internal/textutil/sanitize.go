package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is trimmed of leading/trailing whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// FoldDiacritics strips combining marks, so "Amélie" becomes "Amelie".
func FoldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

var (
	dotTitleDrop      = regexp.MustCompile(`[^A-Za-z0-9 ._]+`)
	dotTitleSeparator = regexp.MustCompile(`[ ._]+`)
)

// DotTitle renders a title as an ASCII, dot-separated name:
// "Amélie: Le Fabuleux Destin" becomes "Amelie.Le.Fabuleux.Destin".
func DotTitle(title string) string {
	folded := FoldDiacritics(title)
	folded = dotTitleDrop.ReplaceAllString(folded, "")
	folded = dotTitleSeparator.ReplaceAllString(folded, ".")
	return strings.Trim(folded, ".")
}
