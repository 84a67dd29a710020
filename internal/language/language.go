package language

import (
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// releaseTokens maps the words, bibliographic codes and scene aliases seen in
// subtitle file names to ISO 639-1. Only these are trusted as filename tokens;
// generic ISO parsing would turn words like "and" or "it" into languages.
var releaseTokens = map[string]string{
	"ro": "ro", "ron": "ro", "rum": "ro", "rom": "ro", "romanian": "ro",
	"en": "en", "eng": "en", "english": "en",
	"es": "es", "spa": "es", "spanish": "es",
	"fr": "fr", "fra": "fr", "fre": "fr", "french": "fr",
	"de": "de", "deu": "de", "ger": "de", "german": "de",
	"it": "it", "ita": "it", "italian": "it",
	"pt": "pt", "por": "pt", "portuguese": "pt",
	"hu": "hu", "hun": "hu", "hungarian": "hu",
	"nl": "nl", "nld": "nl", "dut": "nl", "dutch": "nl",
	"ru": "ru", "rus": "ru", "russian": "ru",
	"bg": "bg", "bul": "bg", "bulgarian": "bg",
	"el": "el", "ell": "el", "gre": "el", "greek": "el",
	"cs": "cs", "ces": "cs", "cze": "cs", "czech": "cs",
	"zh": "zh", "zho": "zh", "chi": "zh", "chinese": "zh",
	"ja": "ja", "jpn": "ja", "japanese": "ja",
	"ko": "ko", "kor": "ko", "korean": "ko",
	"pl": "pl", "pol": "pl", "polish": "pl",
	"tr": "tr", "tur": "tr", "turkish": "tr",
	"sv": "sv", "swe": "sv", "swedish": "sv",
	"hr": "hr", "hrv": "hr", "croatian": "hr",
	"sr": "sr", "srp": "sr", "serbian": "sr",
}

// FromToken maps a filename token to ISO 639-1 only when the token is a
// known code, alias or language word. Unknown tokens return "".
func FromToken(token string) string {
	return releaseTokens[strings.ToLower(strings.TrimSpace(token))]
}

// ToISO2 normalizes a stream language tag to ISO 639-1. Release aliases are
// tried first, then any ISO 639 code (including region-qualified IETF tags
// such as "en-US"). Unknown two-letter codes pass through; anything else
// yields "".
func ToISO2(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if iso2, ok := releaseTokens[code]; ok {
		return iso2
	}
	if base, ok := parseBase(code); ok && base.String() != undetermined {
		return base.String()
	}
	if len(code) == 2 && isLetters(code) {
		return code
	}
	return ""
}

// DisplayName returns the English name for a language code, "Unknown" for
// empty input and the uppercased code when it is not recognized.
func DisplayName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "Unknown"
	}
	iso2 := ToISO2(code)
	if base, ok := parseBase(iso2); ok {
		if name := display.English.Languages().Name(base); name != "" {
			return name
		}
	}
	return strings.ToUpper(code)
}

// ExtractFromTags returns the lowercased language tag from ffprobe stream
// tags, checking the keys muxers commonly write.
func ExtractFromTags(tags map[string]string) string {
	for _, key := range []string{"language", "LANGUAGE", "Language", "language_ietf", "lang", "LANG"} {
		value := strings.TrimSpace(strings.ReplaceAll(tags[key], "\u0000", ""))
		if value != "" {
			return strings.ToLower(value)
		}
	}
	return ""
}

const undetermined = "und"

func parseBase(code string) (xlanguage.Base, bool) {
	if code == "" {
		return xlanguage.Base{}, false
	}
	if len(code) > 3 {
		tag, err := xlanguage.Parse(code)
		if err != nil {
			return xlanguage.Base{}, false
		}
		base, confidence := tag.Base()
		return base, confidence == xlanguage.Exact
	}
	base, err := xlanguage.ParseBase(code)
	if err != nil {
		return xlanguage.Base{}, false
	}
	return base, true
}

func isLetters(value string) bool {
	for _, r := range value {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return value != ""
}
