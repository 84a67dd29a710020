package subtitles

import (
	"regexp"
	"strconv"
	"strings"
)

// creditPatterns match release-group credits and site watermarks that
// uploaders inject as standalone cues, in English and Romanian.
var creditPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)opensubtitles|\bsubscene\b|\byts\b|\byify\b`),
	regexp.MustCompile(`(?i)subtitles? by|synced? and corrected`),
	regexp.MustCompile(`(?i)advertise (your|yours?) product`),
	regexp.MustCompile(`(?i)https?://|\bwww\.`),
	regexp.MustCompile(`(?i)subtitrarea?\s+(realizat[aă]\s+)?de`),
	regexp.MustCompile(`(?i)traducerea\s+(și|şi|si)\s+adaptarea`),
	regexp.MustCompile(`(?i)\b(subs|titrari)\.ro\b`),
}

// srtCue is one SRT block. A block that does not start with a numeric
// counter keeps its lines verbatim in text.
type srtCue struct {
	numbered bool
	timing   string
	text     []string
}

// CleanSRT drops credit cues, renumbers the survivors from 1 and strips
// trailing whitespace. It returns the rewritten text and how many cues were
// dropped. CRLF line endings are converted to LF.
func CleanSRT(text string) (string, int) {
	cues := parseSRT(strings.ReplaceAll(text, "\r\n", "\n"))
	var (
		out     strings.Builder
		kept    int
		removed int
	)
	for _, cue := range cues {
		if cue.isCredit() {
			removed++
			continue
		}
		if kept > 0 {
			out.WriteString("\n\n")
		}
		kept++
		out.WriteString(cue.render(kept))
	}
	if out.Len() == 0 || !strings.HasSuffix(out.String(), "\n") {
		out.WriteString("\n")
	}
	return out.String(), removed
}

func parseSRT(text string) []srtCue {
	var (
		cues    []srtCue
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			cues = append(cues, newCue(current))
			current = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return cues
}

func newCue(lines []string) srtCue {
	cue := srtCue{}
	if _, err := strconv.Atoi(strings.TrimSpace(lines[0])); err == nil {
		cue.numbered = true
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.Contains(lines[0], "-->") {
		cue.timing = lines[0]
		lines = lines[1:]
	}
	cue.text = lines
	return cue
}

func (c srtCue) isCredit() bool {
	parts := make([]string, 0, len(c.text))
	for _, line := range c.text {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return false
	}
	payload := strings.Join(parts, " ")
	for _, pattern := range creditPatterns {
		if pattern.MatchString(payload) {
			return true
		}
	}
	return false
}

func (c srtCue) render(number int) string {
	lines := make([]string, 0, len(c.text)+2)
	if c.numbered {
		lines = append(lines, strconv.Itoa(number))
	}
	if c.timing != "" {
		lines = append(lines, c.timing)
	}
	lines = append(lines, c.text...)
	return strings.Join(lines, "\n")
}
