// Package textutil holds the text helpers shared by title classification,
// TMDB matching and subtitle detection: diacritic folding, tokenization,
// cosine title similarity and dot-separated ASCII output names.
package textutil
