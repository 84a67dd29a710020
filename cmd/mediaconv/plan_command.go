package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mediaconv/internal/media/ffprobe"
	"mediaconv/internal/planner"
	"mediaconv/internal/preflight"
	"mediaconv/internal/transcode"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "plan <file>",
		Short: "Probe a source and print the planned encode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			prober := ffprobe.Prober{Binary: preflight.FFprobeBinary(cfg)}
			probe, err := prober.Probe(cmd.Context(), source)
			if err != nil {
				return fmt.Errorf("probe %s: %w", source, err)
			}
			params := planner.Plan(probe)
			if err := planner.Validate(params); err != nil {
				return fmt.Errorf("planned parameters invalid: %w", err)
			}
			if asJSON {
				return writeJSON(cmd, struct {
					Probe  planner.SourceProbe    `json:"probe"`
					Params planner.EncodingParams `json:"params"`
				}{probe, params})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Source:  %dx%d %s %d-bit hdr=%s (%s)\n",
				probe.Width, probe.Height, probe.VideoCodec, probe.BitDepth, yesNo(probe.HDR),
				planner.ResolutionClass(probe.Width, probe.Height))
			fmt.Fprintf(out, "Plan:    %s\n", formatParams(&params))
			for _, a := range params.Audio {
				fmt.Fprintf(out, "Audio:   stream %d -> %s %dch %dk\n", a.SourceIndex, a.Codec, a.Channels, a.BitrateKbps)
			}
			fmt.Fprintf(out, "Subtitles: %d embedded\n", len(probe.Subtitles))

			argv := transcode.BuildArgs(transcode.Request{
				Source: source,
				Output: strings.TrimSuffix(source, filepath.Ext(source)) + "." + planner.ContainerMP4,
				Params: params,
			}, transcode.OptionsFromConfig(cfg))
			fmt.Fprintf(out, "Command: %s\n", strings.Join(argv, " "))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
