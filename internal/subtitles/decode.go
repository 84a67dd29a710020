package subtitles

import (
	"bytes"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/unicode/norm"
)

type legacyCharset struct {
	name    string
	charset encoding.Encoding
}

// legacyCharsets is scored in order; ties keep the earlier entry.
var legacyCharsets = []legacyCharset{
	{"windows-1250", charmap.Windows1250},
	{"iso-8859-2", charmap.ISO8859_2},
	{"iso-8859-16", charmap.ISO8859_16},
	{"windows-1252", charmap.Windows1252},
	{"iso-8859-1", charmap.ISO8859_1},
}

const (
	romanianLetters = "ăĂâÂîÎșȘțȚşŞţŢ"
	commonLetters   = "àáâäçèéêëíïñóôöùúûüßœŒÀÁÄÇÈÉÊËÍÑÓÔÖÙÚÛÜ"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// decodeText converts raw subtitle bytes to UTF-8. BOMs win, then strict
// UTF-8, then the best scoring legacy charset.
func decodeText(raw []byte) (string, string) {
	if name := bomName(raw); name != "" {
		decoded, err := xunicode.BOMOverride(xunicode.UTF8.NewDecoder()).Bytes(raw)
		if err == nil {
			return string(decoded), name
		}
	}
	if utf8.Valid(raw) {
		return string(raw), "utf-8"
	}

	bestName := legacyCharsets[0].name
	bestText := ""
	bestScore := 0
	for i, candidate := range legacyCharsets {
		decoded, err := candidate.charset.NewDecoder().Bytes(raw)
		if err != nil {
			continue
		}
		text := string(decoded)
		score := scoreText(text)
		if i == 0 || score > bestScore {
			bestName, bestText, bestScore = candidate.name, text, score
		}
	}
	return bestText, bestName
}

func bomName(raw []byte) string {
	switch {
	case bytes.HasPrefix(raw, bomUTF8):
		return "utf-8-bom"
	case bytes.HasPrefix(raw, bomUTF16LE):
		return "utf-16le"
	case bytes.HasPrefix(raw, bomUTF16BE):
		return "utf-16be"
	default:
		return ""
	}
}

// scoreText rates how plausible decoded text is. Only non-ASCII runes matter
// since every candidate agrees on ASCII.
func scoreText(text string) int {
	score := 0
	for _, r := range text {
		if r < utf8.RuneSelf {
			continue
		}
		switch {
		case strings.ContainsRune(romanianLetters, r):
			score += 3
		case strings.ContainsRune(commonLetters, r):
			score += 2
		case r == utf8.RuneError || (r >= 0x80 && r <= 0x9F):
			score -= 5
		case unicode.IsLetter(r):
			score++
		case unicode.IsPunct(r) || unicode.IsSpace(r):
		default:
			score -= 2
		}
	}
	return score
}

// cleanText strips BOM and NUL runes and applies NFC.
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\ufeff", "")
	text = strings.ReplaceAll(text, "\x00", "")
	return norm.NFC.String(text)
}
