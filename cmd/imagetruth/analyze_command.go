package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	imagetruth "github.com/anatolykoptev/go-imagetruth"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var rawScore float64
	var noHistory bool

	cmd := &cobra.Command{
		Use:   "analyze <path|url>...",
		Short: "Analyze one or more images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("raw-score") && (rawScore < 0 || rawScore > 1) {
				return fmt.Errorf("--raw-score must be within [0, 1], got %v", rawScore)
			}
			if !cmd.Flags().Changed("raw-score") {
				rawScore = -1
			}

			var history imagetruth.History
			if !noHistory {
				store, err := ctx.openHistory(cmd.Context())
				if err != nil {
					return err
				}
				if store != nil {
					defer store.Close()
					history = store
				}
			}

			analyzer, err := ctx.analyzer(history, rawScore)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var failed int
			var results []*imagetruth.Analysis
			for _, ref := range args {
				a, err := analyzer.Analyze(cmd.Context(), ref)
				if err != nil {
					failed++
					slog.Debug("imagetruth: analysis error", "ref", ref, "error", err.Error())
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: analysis failed, please retry\n", ref)
					continue
				}
				if jsonOutput {
					results = append(results, a)
					continue
				}
				printAnalysis(out, a)
			}

			if jsonOutput {
				if err := writeJSON(out, results); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d analyses failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	cmd.Flags().Float64Var(&rawScore, "raw-score", -1, "Use this model output (probability of AI, 0-1) instead of the configured classifier")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not save results to history")

	return cmd
}

func printAnalysis(w io.Writer, a *imagetruth.Analysis) {
	r := a.Result
	fmt.Fprintf(w, "%s\n", a.Name)
	fmt.Fprintf(w, "  verdict:    %s\n", a.Verdict.Label())
	fmt.Fprintf(w, "  confidence: %.1f%%\n", r.Confidence)
	if r.Override {
		fmt.Fprintf(w, "  tier:       metadata override\n")
	} else {
		fmt.Fprintf(w, "  tier:       weighted blend (exif %.2f / model %.2f)\n", r.ExifWeight, r.ModelWeight)
	}
	fmt.Fprintf(w, "  scores:     exif %.0f, model %.1f, final %.1f\n", r.ExifScore, r.ModelScore, r.FinalScore)
	if a.Persisted {
		fmt.Fprintf(w, "  saved:      %s\n", a.EntryID)
	}
	fmt.Fprintf(w, "  reasoning:\n")
	for _, line := range r.Reasoning {
		fmt.Fprintf(w, "    - %s\n", line)
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := jsonAPI.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	if _, err := fmt.Fprintln(w, string(data)); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}
