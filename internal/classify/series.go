package classify

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"mediaconv/internal/queue"
	"mediaconv/internal/services"
	"mediaconv/internal/textutil"
)

var (
	canonicalSeasonPattern = regexp.MustCompile(`^Season\d{2}$`)
	seasonWordPattern      = regexp.MustCompile(`(?i)season[\s._-]*(\d{1,2})(?:\D|$)`)
	seasonShortPattern     = regexp.MustCompile(`(?i)(?:^|[\s._-])s(\d{1,2})$`)
	seasonBarePattern      = regexp.MustCompile(`^(\d{1,2})$`)
	episodePattern         = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])s(\d{1,2})[\s._-]?e(\d{1,2})(?:\D|$)`)
	extrasDirs             = map[string]bool{
		"sample":      true,
		"samples":     true,
		"extras":      true,
		"featurettes": true,
		"trailers":    true,
	}
)

// seasonFolderNumber parses a season directory name. Recognized forms are
// "Season.01", "Season 1", "SEASON01", "Show.S01", "s1" and a bare number.
func seasonFolderNumber(name string) (int, bool) {
	for _, pattern := range []*regexp.Regexp{seasonWordPattern, seasonShortPattern, seasonBarePattern} {
		if m := pattern.FindStringSubmatch(name); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// SeasonFolderName renders the canonical season directory name.
func SeasonFolderName(season int) string {
	return fmt.Sprintf("Season%02d", season)
}

// parseEpisode extracts season and episode numbers from a filename.
func parseEpisode(name string) (season, episode int, prefix string, ok bool) {
	base := stem(name)
	loc := episodePattern.FindStringSubmatchIndex(base)
	if loc == nil {
		return 0, 0, "", false
	}
	season, _ = strconv.Atoi(base[loc[2]:loc[3]])
	episode, _ = strconv.Atoi(base[loc[4]:loc[5]])
	return season, episode, base[:loc[0]], true
}

// EpisodeTitle renders `Series.Name.SxxExx`.
func EpisodeTitle(series string, season, episode int) string {
	tag := fmt.Sprintf("S%02dE%02d", season, episode)
	if series == "" {
		return tag
	}
	return series + "." + tag
}

func (c *Classifier) classifySeries(path string, info fs.FileInfo) (Result, error) {
	var result Result
	if !info.IsDir() {
		c.addEpisode(&result, path)
		return result, nil
	}

	renamed := make(map[string]bool)
	if !canonicalSeasonPattern.MatchString(filepath.Base(path)) && filepath.Dir(path) != c.opts.TVRoot {
		if season, ok := seasonFolderNumber(filepath.Base(path)); ok {
			c.addRename(&result, renamed, path, season)
		}
	}

	err := filepath.WalkDir(path, func(current string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			result.addError(current, walkErr.Error())
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			if current == path {
				return nil
			}
			name := entry.Name()
			if extrasDirs[strings.ToLower(name)] {
				return filepath.SkipDir
			}
			if !canonicalSeasonPattern.MatchString(name) {
				if season, ok := seasonFolderNumber(name); ok {
					c.addRename(&result, renamed, current, season)
				}
			}
			return nil
		}
		if !isVideoFile(entry.Name()) || hasSampleToken(entry.Name()) {
			return nil
		}
		c.addEpisode(&result, current)
		return nil
	})
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "classify", "walk series directory", path, err)
	}
	sort.SliceStable(result.Renames, func(i, j int) bool {
		return depth(result.Renames[i].From) > depth(result.Renames[j].From)
	})
	if len(result.Jobs) == 0 && len(result.Errors) == 0 {
		result.addError(path, "no episode files found")
	}
	return result, nil
}

func (c *Classifier) addRename(result *Result, seen map[string]bool, dir string, season int) {
	target := filepath.Join(filepath.Dir(dir), SeasonFolderName(season))
	if target == dir || seen[dir] {
		return
	}
	seen[dir] = true
	result.Renames = append(result.Renames, Rename{From: dir, To: target})
}

func (c *Classifier) addEpisode(result *Result, path string) {
	if !isVideoFile(path) {
		result.addError(path, "not a video file")
		return
	}
	season, episode, prefix, ok := parseEpisode(filepath.Base(path))
	if !ok {
		result.addError(path, "no SxxExx episode marker")
		return
	}
	root := c.seriesRoot(path)
	name := textutil.DotTitle(prefix)
	if name == "" {
		name = textutil.DotTitle(stripSeasonSuffix(filepath.Base(root)))
	}
	result.Jobs = append(result.Jobs, Candidate{
		SourcePath: path,
		MediaType:  queue.MediaEpisode,
		Title:      EpisodeTitle(name, season, episode),
		Series: &queue.SeriesContext{
			SeriesName: name,
			SeriesRoot: root,
			Season:     season,
			Episode:    episode,
		},
	})
}

// seriesRoot is the show directory: the episode's parent, or its grandparent
// when the parent is a season folder. It never climbs above the TV root.
func (c *Classifier) seriesRoot(episodePath string) string {
	parent := filepath.Dir(episodePath)
	if parent == c.opts.TVRoot {
		return parent
	}
	name := filepath.Base(parent)
	if canonicalSeasonPattern.MatchString(name) {
		return filepath.Dir(parent)
	}
	if _, ok := seasonFolderNumber(name); ok && filepath.Dir(parent) != c.opts.TVRoot {
		return filepath.Dir(parent)
	}
	return parent
}

func stripSeasonSuffix(name string) string {
	if loc := seasonWordPattern.FindStringIndex(name); loc != nil && loc[0] > 0 {
		return name[:loc[0]]
	}
	return name
}

func depth(path string) int {
	return strings.Count(filepath.Clean(path), string(filepath.Separator))
}
