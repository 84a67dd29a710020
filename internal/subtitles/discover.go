package subtitles

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var externalExtensions = map[string]bool{
	".srt": true,
	".ass": true,
	".ssa": true,
	".vtt": true,
	".sub": true,
	".sup": true,
}

// IsSubtitleFile reports whether path carries a recognized subtitle extension.
func IsSubtitleFile(path string) bool {
	return externalExtensions[strings.ToLower(filepath.Ext(path))]
}

// DiscoverExternal lists subtitle files sitting next to source whose names
// start with the source stem. VobSub .idx files are picked up as companions
// of their .sub and never listed on their own.
func DiscoverExternal(source string) ([]Track, error) {
	dir := filepath.Dir(source)
	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(source), filepath.Ext(source)))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var tracks []Track
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !externalExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(name), stem) {
			continue
		}
		tracks = append(tracks, Track{Path: filepath.Join(dir, name), StreamIndex: -1})
	}
	sort.Slice(tracks, func(i, j int) bool { return tracks[i].Path < tracks[j].Path })
	return tracks, nil
}
