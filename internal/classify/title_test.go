package classify

import (
	"testing"
	"time"
)

func TestParseMovieGuess(t *testing.T) {
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		query string
		year  int
	}{
		{"The.Matrix.1999.1080p.BluRay.x264-GROUP.mkv", "The Matrix", 1999},
		{"2001.A.Space.Odyssey.1968.2160p.UHD.mkv", "2001 A Space Odyssey", 1968},
		{"Blade.Runner.2049.2017.mkv", "Blade Runner 2049", 2017},
		{"Blade.Runner.2049.mkv", "Blade Runner 2049", 0},
		{"[YTS] Heat (1995) [1080p].mp4", "Heat", 1995},
		{"1917.2019.WEB-DL.mkv", "1917", 2019},
		{"Movie Name 1080p.mkv", "Movie Name", 0},
		{"Old.Film.1887.mkv", "Old Film 1887", 0},
		{"Some_Film_2020_HEVC.mkv", "Some Film", 2020},
	}
	for _, tt := range tests {
		got := parseMovieGuess(tt.name, now)
		if got.Query != tt.query || got.Year != tt.year {
			t.Errorf("parseMovieGuess(%q) = %+v, want {%s %d}", tt.name, got, tt.query, tt.year)
		}
	}
}

func TestMovieTitle(t *testing.T) {
	if got := movieTitle("Amélie", 2001); got != "Amelie.2001" {
		t.Fatalf("movieTitle = %q", got)
	}
	if got := movieTitle("Heat", 0); got != "Heat" {
		t.Fatalf("movieTitle without year = %q", got)
	}
}

func TestHasSampleToken(t *testing.T) {
	for name, want := range map[string]bool{
		"movie-sample.mkv":       true,
		"Movie.Trailer.mp4":      true,
		"extras.mkv":             true,
		"Sampled.Lives.2010.mkv": false,
		"Movie.2010.mkv":         false,
	} {
		if got := hasSampleToken(name); got != want {
			t.Errorf("hasSampleToken(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestSeasonFolderNumber(t *testing.T) {
	tests := []struct {
		name   string
		season int
		ok     bool
	}{
		{"Season.01", 1, true},
		{"season 1", 1, true},
		{"SEASON01", 1, true},
		{"SEASON 03", 3, true},
		{"s1", 1, true},
		{"Show.S03", 3, true},
		{"7", 7, true},
		{"Show.Name.Season.02", 2, true},
		{"Specials", 0, false},
		{"Season.2019", 0, false},
		{"Show.Name.S02E01", 0, false},
	}
	for _, tt := range tests {
		season, ok := seasonFolderNumber(tt.name)
		if season != tt.season || ok != tt.ok {
			t.Errorf("seasonFolderNumber(%q) = %d,%v want %d,%v", tt.name, season, ok, tt.season, tt.ok)
		}
	}
}

func TestParseEpisode(t *testing.T) {
	tests := []struct {
		name    string
		season  int
		episode int
		prefix  string
		ok      bool
	}{
		{"Show.Name.S02E01.1080p.mkv", 2, 1, "Show.Name", true},
		{"show s1e5.mkv", 1, 5, "show", true},
		{"S03E07.mkv", 3, 7, "", true},
		{"Show.Name.S01E100.mkv", 0, 0, "", false},
		{"Show.Name.2x05.mkv", 0, 0, "", false},
	}
	for _, tt := range tests {
		season, episode, prefix, ok := parseEpisode(tt.name)
		if season != tt.season || episode != tt.episode || prefix != tt.prefix || ok != tt.ok {
			t.Errorf("parseEpisode(%q) = %d,%d,%q,%v", tt.name, season, episode, prefix, ok)
		}
	}
}
