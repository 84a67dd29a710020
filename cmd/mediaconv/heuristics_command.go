package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"mediaconv/internal/config"
	"mediaconv/internal/planner"
	"mediaconv/internal/queue"
)

var resolutionClasses = []string{"uhd", "fhd", "hd720", "sd"}

var biasDimensions = []planner.Dimension{
	planner.DimensionFrameBuffers,
	planner.DimensionBFrames,
	planner.DimensionPaddingMode,
}

func newHeuristicsCommand(ctx *commandContext) *cobra.Command {
	var class string

	cmd := &cobra.Command{
		Use:   "heuristics",
		Short: "Show historical success rates per encoder setting",
		RunE: func(cmd *cobra.Command, args []string) error {
			classes := resolutionClasses
			if class != "" {
				if !knownClass(class) {
					return fmt.Errorf("unknown resolution class %q", class)
				}
				classes = []string{class}
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				printed := false
				for _, c := range classes {
					bias, err := store.Bias(cmd.Context(), c)
					if err != nil {
						return err
					}
					rows := buildBiasRows(bias)
					if len(rows) == 0 {
						continue
					}
					printed = true
					fmt.Fprint(out, renderTable(c,
						[]string{"Dimension", "Value", "Tries", "Successes", "Rate"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
					))
				}
				if !printed {
					fmt.Fprintln(out, "No attempt history yet")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "Resolution class (uhd, fhd, hd720, sd)")
	return cmd
}

func buildBiasRows(bias queue.Bias) [][]string {
	var rows [][]string
	for _, dim := range biasDimensions {
		values := bias.Entries[dim]
		if len(values) == 0 {
			continue
		}
		order := candidateOrder(dim)
		keys := make([]string, 0, len(values))
		for value := range values {
			keys = append(keys, value)
		}
		sort.SliceStable(keys, func(i, j int) bool { return order(keys[i]) < order(keys[j]) })
		for _, value := range keys {
			entry := values[value]
			rows = append(rows, []string{
				string(dim),
				value,
				strconv.Itoa(entry.Tries),
				strconv.Itoa(entry.Successes),
				fmt.Sprintf("%.0f%%", entry.SuccessRate()*100),
			})
		}
	}
	return rows
}

// candidateOrder ranks values by their position in the dimension's candidate
// list; unknown values sort last.
func candidateOrder(dim planner.Dimension) func(string) int {
	candidates := planner.Candidates(dim)
	return func(value string) int {
		for i, c := range candidates {
			if c == value {
				return i
			}
		}
		return len(candidates)
	}
}

func knownClass(class string) bool {
	for _, c := range resolutionClasses {
		if c == class {
			return true
		}
	}
	return false
}
