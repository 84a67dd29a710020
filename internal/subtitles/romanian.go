package subtitles

import "strings"

var (
	commaFold = strings.NewReplacer(
		"ş", "ș", "Ş", "Ș",
		"ţ", "ț", "Ţ", "Ț",
		"º", "ș", "ª", "Ș",
		"þ", "ț", "Þ", "Ț",
		"ã", "ă", "Ã", "Ă",
	)
	asciiFold = strings.NewReplacer(
		"ș", "s", "Ș", "S",
		"ş", "s", "Ş", "S",
		"ț", "t", "Ț", "T",
		"ţ", "t", "Ţ", "T",
		"ă", "a", "Ă", "A",
		"â", "a", "Â", "A",
		"î", "i", "Î", "I",
		"º", "s", "ª", "S",
		"þ", "t", "Þ", "T",
		"ã", "a", "Ã", "A",
	)
)

// FoldRomanian applies the Romanian substitution table for mode.
func FoldRomanian(text string, mode FoldMode) string {
	if mode == FoldASCII {
		return asciiFold.Replace(text)
	}
	return commaFold.Replace(text)
}
