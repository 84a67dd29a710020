package subtitles_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"

	"mediaconv/internal/subtitles"
)

const romanianCues = "1\r\n00:00:01,000 --> 00:00:03,000\r\nŞtiu că ţara e frumoasă.\r\n\r\n" +
	"2\r\n00:00:04,000 --> 00:00:06,000\r\nSubtitrarea de Ion\r\n"

const englishCues = "1\n00:00:01,000 --> 00:00:03,000\nI know what you want.\n"

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func cp1250(t *testing.T, text string) []byte {
	t.Helper()
	out, err := charmap.Windows1250.NewEncoder().String(text)
	if err != nil {
		t.Fatalf("encode cp1250: %v", err)
	}
	return []byte(out)
}

func TestNormalizeRepairsRomanianTrack(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "Source.ro.srt"), cp1250(t, romanianCues))

	n := subtitles.New(subtitles.Options{})
	result, err := n.Normalize(context.Background(), subtitles.Track{Path: path, StreamIndex: -1})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if result.Language != "ro" || result.LanguageSource != subtitles.SourceFilename {
		t.Fatalf("language = %q from %q", result.Language, result.LanguageSource)
	}
	if result.Encoding != "windows-1250" {
		t.Fatalf("encoding = %q", result.Encoding)
	}
	if result.RemovedCues != 1 {
		t.Fatalf("removed cues = %d, want 1", result.RemovedCues)
	}
	want := "1\n00:00:01,000 --> 00:00:03,000\nȘtiu că țara e frumoasă.\n"
	if result.Text != want {
		t.Fatalf("text = %q, want %q", result.Text, want)
	}
}

func TestNormalizeASCIIFold(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "Source.ron.srt"), cp1250(t, romanianCues))

	n := subtitles.New(subtitles.Options{Fold: subtitles.FoldASCII})
	result, err := n.Normalize(context.Background(), subtitles.Track{Path: path, StreamIndex: -1})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !strings.Contains(result.Text, "Stiu ca tara e frumoasa.") {
		t.Fatalf("text = %q", result.Text)
	}
}

func TestNormalizeKeepsMicroDVDAsText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "Source.en.sub"), []byte("{1}{25}Hello there\n"))

	result, err := subtitles.New(subtitles.Options{}).Normalize(context.Background(), subtitles.Track{Path: path, StreamIndex: -1})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if result.Binary {
		t.Fatal("expected MicroDVD to be treated as text")
	}
	if result.Ext != "sub" || result.Text != "{1}{25}Hello there\n" {
		t.Fatalf("result = %+v", result)
	}
}

func TestNormalizeAllWritesSidecars(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "Title.2001")

	vobsub := append([]byte{0x00, 0x00, 0x01, 0xBA}, bytes.Repeat([]byte{0xFF, 0x00}, 64)...)
	idx := []byte("# VobSub index file, v7\nid: en, index: 0\n")
	pgs := []byte{'P', 'G', 0x00, 0x01, 0x02, 0x16}

	tracks := []subtitles.Track{
		{Path: writeFile(t, filepath.Join(src, "Source.en.srt"), []byte(englishCues)), StreamIndex: -1},
		{Path: writeFile(t, filepath.Join(src, "Source.ro.srt"), cp1250(t, romanianCues)), StreamIndex: -1},
		{Path: writeFile(t, filepath.Join(src, "Source.romanian.srt"), []byte(romanianCues)), StreamIndex: -1},
		{Path: writeFile(t, filepath.Join(src, "Source.eng.sub"), vobsub), StreamIndex: -1},
		{Path: writeFile(t, filepath.Join(src, "track4.sup"), pgs), StreamIndex: 4, Codec: "hdmv_pgs_subtitle", Language: "fre"},
		{Path: writeFile(t, filepath.Join(src, "Other.en.srt"), []byte(englishCues)), StreamIndex: -1},
	}
	writeFile(t, filepath.Join(src, "Source.eng.idx"), idx)

	sidecars, errs := subtitles.New(subtitles.Options{}).NormalizeAll(context.Background(), "Title.2001", out, tracks)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	names := make([]string, 0, len(sidecars))
	for _, sc := range sidecars {
		names = append(names, filepath.Base(sc.Path))
	}
	want := []string{
		"Title.2001.en.srt",
		"Title.2001.default.ro.srt",
		"Title.2001.ro.srt",
		"Title.2001.en.sub",
		"Title.2001.fr.sup",
		"Title.2001.en.2.srt",
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("sidecars = %v, want %v", names, want)
	}
	if !sidecars[1].Default || sidecars[2].Default {
		t.Fatalf("default flags = %v, %v", sidecars[1].Default, sidecars[2].Default)
	}

	text, err := os.ReadFile(filepath.Join(out, "Title.2001.default.ro.srt"))
	if err != nil {
		t.Fatalf("read default sidecar: %v", err)
	}
	if !strings.Contains(string(text), "Știu că țara") {
		t.Fatalf("default sidecar not repaired: %q", text)
	}

	gotSub, err := os.ReadFile(filepath.Join(out, "Title.2001.en.sub"))
	if err != nil || !bytes.Equal(gotSub, vobsub) {
		t.Fatalf("vobsub not preserved: %v", err)
	}
	gotIdx, err := os.ReadFile(filepath.Join(out, "Title.2001.en.idx"))
	if err != nil || !bytes.Equal(gotIdx, idx) {
		t.Fatalf("idx companion not preserved: %v", err)
	}
	if sidecars[3].Companion != filepath.Join(out, "Title.2001.en.idx") {
		t.Fatalf("companion = %q", sidecars[3].Companion)
	}
	gotSup, err := os.ReadFile(filepath.Join(out, "Title.2001.fr.sup"))
	if err != nil || !bytes.Equal(gotSup, pgs) {
		t.Fatalf("pgs not preserved: %v", err)
	}
}

func TestNormalizeAllCollectsTrackErrors(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	tracks := []subtitles.Track{
		{Path: writeFile(t, filepath.Join(src, "empty.srt"), nil), StreamIndex: -1},
		{Path: filepath.Join(src, "missing.srt"), StreamIndex: 2},
		{Path: writeFile(t, filepath.Join(src, "Source.en.srt"), []byte(englishCues)), StreamIndex: -1},
	}

	sidecars, errs := subtitles.New(subtitles.Options{}).NormalizeAll(context.Background(), "Show.S01E01", out, tracks)
	if len(sidecars) != 1 || filepath.Base(sidecars[0].Path) != "Show.S01E01.en.srt" {
		t.Fatalf("sidecars = %+v", sidecars)
	}
	if len(errs) != 2 {
		t.Fatalf("errors = %v, want 2", errs)
	}
	if errs[1].StreamIndex != 2 || !errors.Is(errs[1], os.ErrNotExist) {
		t.Fatalf("missing track error = %v", errs[1])
	}
	if !strings.Contains(errs[1].Error(), "subtitle stream 2") {
		t.Fatalf("error text = %q", errs[1].Error())
	}
}

func TestSidecarName(t *testing.T) {
	if got := subtitles.SidecarName("Movie.1999", "ro", "srt", true); got != "Movie.1999.default.ro.srt" {
		t.Fatalf("default name = %q", got)
	}
	if got := subtitles.SidecarName("Movie.1999", "", "sup", false); got != "Movie.1999.und.sup" {
		t.Fatalf("undetermined name = %q", got)
	}
}

func TestDiscoverExternal(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, filepath.Join(dir, "Movie.mkv"), []byte("x"))
	for _, name := range []string{"Movie.ro.srt", "Movie.en.sub", "Movie.en.idx", "Other.srt", "Movie.nfo"} {
		writeFile(t, filepath.Join(dir, name), []byte("x"))
	}
	tracks, err := subtitles.DiscoverExternal(source)
	if err != nil {
		t.Fatalf("DiscoverExternal: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("tracks = %+v", tracks)
	}
	if filepath.Base(tracks[0].Path) != "Movie.en.sub" || filepath.Base(tracks[1].Path) != "Movie.ro.srt" {
		t.Fatalf("tracks = %+v", tracks)
	}
	if tracks[0].StreamIndex != -1 {
		t.Fatalf("external stream index = %d", tracks[0].StreamIndex)
	}
}
