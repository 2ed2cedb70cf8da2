package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	imagetruth "github.com/anatolykoptev/go-imagetruth"
	"github.com/anatolykoptev/go-imagetruth/historydb"
)

const defaultHistoryLimit = 20

var errHistoryDisabled = errors.New("history is disabled (history.enabled = false)")

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show saved analyses, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			if store == nil {
				return errHistoryDisabled
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, struct {
					Stats   imagetruth.HistoryStats   `json:"stats"`
					Entries []imagetruth.HistoryEntry `json:"entries"`
				}{stats, entries})
			}
			printHistory(out, entries, stats, isTerminal(out))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", defaultHistoryLimit, "Maximum entries to show (0 = all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print history as JSON")

	cmd.AddCommand(newHistoryRemoveCommand(ctx))

	return cmd
}

func newHistoryRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>...",
		Short: "Delete history entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			if store == nil {
				return errHistoryDisabled
			}
			defer store.Close()

			for _, id := range args {
				if err := store.Delete(cmd.Context(), id); err != nil {
					if errors.Is(err, historydb.ErrNotFound) {
						return fmt.Errorf("no history entry %s", id)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", id)
			}
			return nil
		},
	}
}

func printHistory(w io.Writer, entries []imagetruth.HistoryEntry, stats imagetruth.HistoryStats, pretty bool) {
	fmt.Fprintf(w, "total: %d  real: %d  ai: %d\n", stats.Total, stats.Real, stats.AI)
	if len(entries) == 0 {
		fmt.Fprintln(w, "no saved analyses")
		return
	}

	headers := []string{"ID", "Name", "Verdict", "Confidence", "Analyzed"}
	rows := historyRows(entries)
	if pretty {
		fmt.Fprintln(w, renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))
		return
	}
	fmt.Fprintln(w, renderPlain(headers, rows))
}

func historyRows(entries []imagetruth.HistoryEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.ID,
			e.Name,
			e.Verdict.Label(),
			fmt.Sprintf("%.1f%%", e.Confidence),
			e.CreatedAt.Local().Format(time.DateTime),
		})
	}
	return rows
}
