package language

import "testing"

func TestToISO2NormalizesStreamTags(t *testing.T) {
	cases := map[string]string{
		"ro":    "ro",
		"RUM":   "ro",
		"ron":   "ro",
		"eng":   "en",
		"fre":   "fr",
		"ger":   "de",
		"dut":   "nl",
		"chi":   "zh",
		"ukr":   "uk",
		"cym":   "cy",
		"en-us": "en",
		"und":   "",
		"xy":    "xy",
		"e1x":   "",
		"":      "",
		"  ":    "",
	}
	for input, want := range cases {
		if got := ToISO2(input); got != want {
			t.Errorf("ToISO2(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFromTokenTrustsOnlyReleaseTokens(t *testing.T) {
	cases := map[string]string{
		"ro":       "ro",
		"RUM":      "ro",
		"rom":      "ro",
		"Romanian": "ro",
		"eng":      "en",
		"hun":      "hu",
		"ukr":      "",
		"and":      "",
		"hd":       "",
		"x264":     "",
		"":         "",
	}
	for input, want := range cases {
		if got := FromToken(input); got != want {
			t.Errorf("FromToken(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	cases := map[string]string{
		"en":  "English",
		"eng": "English",
		"ro":  "Romanian",
		"rum": "Romanian",
		"de":  "German",
		"uk":  "Ukrainian",
		"":    "Unknown",
		"e1x": "E1X",
	}
	for input, want := range cases {
		if got := DisplayName(input); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestExtractFromTags(t *testing.T) {
	cases := []struct {
		name string
		tags map[string]string
		want string
	}{
		{"nil", nil, ""},
		{"lowercase key", map[string]string{"language": "rum"}, "rum"},
		{"uppercase key", map[string]string{"LANGUAGE": "ENG"}, "eng"},
		{"ietf", map[string]string{"language_ietf": "ro-RO"}, "ro-ro"},
		{"nul padding", map[string]string{"language": "eng\x00"}, "eng"},
		{"language wins over LANG", map[string]string{"language": "fr", "LANG": "en"}, "fr"},
		{"blank value skipped", map[string]string{"language": " ", "lang": "hu"}, "hu"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractFromTags(tc.tags); got != tc.want {
				t.Errorf("ExtractFromTags() = %q, want %q", got, tc.want)
			}
		})
	}
}
