package notifications

import (
	"os"
	"path/filepath"

	"mediaconv/internal/transcode"
)

// CollectExcerpts reads the last lines of each log file. Missing or
// unreadable logs are skipped.
func CollectExcerpts(paths []string, lines int) []Excerpt {
	var out []Excerpt
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		tail := transcode.TailLines(string(data), lines)
		if tail == "" {
			continue
		}
		out = append(out, Excerpt{Name: filepath.Base(path), Lines: tail})
	}
	return out
}
