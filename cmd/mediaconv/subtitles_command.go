package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mediaconv/internal/language"
	"mediaconv/internal/subtitles"
)

func newSubtitlesCommand(ctx *commandContext) *cobra.Command {
	var (
		title  string
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "subtitles <source-or-subtitle>...",
		Short: "Normalize subtitle files and report what was detected",
		Long: "Normalize subtitles. A video argument expands to the subtitle files next to it.\n" +
			"Without --out nothing is written.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			fold, err := subtitles.ParseFoldMode(cfg.Subtitles.RomanianFold)
			if err != nil {
				return err
			}
			tracks, err := collectSubtitleTracks(args)
			if err != nil {
				return err
			}
			if len(tracks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No subtitle files found")
				return nil
			}

			normalizer := subtitles.New(subtitles.Options{Fold: fold, Logger: ctx.logger()})
			out := cmd.OutOrStdout()
			if outDir == "" {
				rows := make([][]string, 0, len(tracks))
				for _, track := range tracks {
					result, err := normalizer.Normalize(cmd.Context(), track)
					if err != nil {
						rows = append(rows, []string{filepath.Base(track.Path), "", "", "", "", err.Error()})
						continue
					}
					encoding := result.Encoding
					if result.Binary {
						encoding = "binary"
					}
					rows = append(rows, []string{
						filepath.Base(track.Path),
						languageLabel(result.Language),
						result.LanguageSource,
						encoding,
						strconv.Itoa(result.RemovedCues),
						"",
					})
				}
				fmt.Fprint(out, renderTable("",
					[]string{"File", "Language", "Detected by", "Encoding", "Removed cues", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			}

			name := strings.TrimSpace(title)
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			sidecars, errs := normalizer.NormalizeAll(cmd.Context(), name, outDir, tracks)
			for _, sc := range sidecars {
				marker := ""
				if sc.Default {
					marker = " (default)"
				}
				fmt.Fprintf(out, "wrote  %s [%s]%s\n", sc.Path, sc.Language, marker)
			}
			for _, subErr := range errs {
				fmt.Fprintf(out, "failed %s\n", subErr.Error())
			}
			if len(sidecars) == 0 && len(errs) > 0 {
				return fmt.Errorf("no subtitles could be normalized")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Sidecar base name (defaults to the first argument's stem)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Write normalized sidecars into this directory")
	return cmd
}

// collectSubtitleTracks treats subtitle-extension arguments as tracks and
// anything else as a video whose neighbouring subtitles are discovered.
func collectSubtitleTracks(args []string) ([]subtitles.Track, error) {
	var tracks []subtitles.Track
	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return nil, err
		}
		if subtitles.IsSubtitleFile(path) {
			tracks = append(tracks, subtitles.Track{Path: path, StreamIndex: -1})
			continue
		}
		found, err := subtitles.DiscoverExternal(path)
		if err != nil {
			return nil, fmt.Errorf("discover subtitles for %s: %w", path, err)
		}
		tracks = append(tracks, found...)
	}
	return tracks, nil
}

func languageLabel(code string) string {
	if code == "" || code == subtitles.Undetermined {
		return subtitles.Undetermined
	}
	return code + " (" + language.DisplayName(code) + ")"
}
