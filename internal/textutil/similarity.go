package textutil

import (
	"math"
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Tokenize lowercases and diacritic-folds text, then splits it on anything
// that is not an ASCII letter or digit. Single letters are dropped; single
// digits are kept so episode and sequel numbers survive.
func Tokenize(text string) []string {
	fields := nonAlnum.Split(strings.ToLower(FoldDiacritics(text)), -1)
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		switch {
		case field == "":
		case len(field) == 1 && (field[0] < '0' || field[0] > '9'):
		default:
			tokens = append(tokens, field)
		}
	}
	return tokens
}

// termCounts is a bag-of-words vector over Tokenize output.
type termCounts map[string]float64

func countTerms(text string) termCounts {
	counts := termCounts{}
	for _, token := range Tokenize(text) {
		counts[token]++
	}
	return counts
}

func (c termCounts) magnitude() float64 {
	var sum float64
	for _, n := range c {
		sum += n * n
	}
	return math.Sqrt(sum)
}

// TitleSimilarity scores two free-form titles in [0, 1] as the cosine of
// their term-count vectors. Titles without usable tokens score 0.
func TitleSimilarity(a, b string) float64 {
	left, right := countTerms(a), countTerms(b)
	if len(left) == 0 || len(right) == 0 {
		return 0
	}
	var dot float64
	for token, n := range left {
		dot += n * right[token]
	}
	if dot == 0 {
		return 0
	}
	score := dot / (left.magnitude() * right.magnitude())
	return math.Min(score, 1)
}
