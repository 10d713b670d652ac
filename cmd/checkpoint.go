package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/arrest-news-cli/internal/checkpoint"
	"github.com/sells-group/arrest-news-cli/internal/model"
)

var checkpointInput string

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or clear the checkpoint of an input file",
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the persisted progress of a batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := inputPath(checkpointInput)
		if path == "" {
			return eris.New("checkpoint: --input is required")
		}
		ctx := cmd.Context()

		st, err := checkpoint.Open(ctx, cfg.Checkpoint.Driver, cfg.Checkpoint.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		id := checkpoint.BatchID(path)
		state, err := st.Load(ctx, id)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if state == nil {
			fmt.Fprintf(w, "no checkpoint for %s (batch %s)\n", path, id)
			return nil
		}

		counts := state.CountByOutcome()
		fmt.Fprintf(w, "batch %s, run %s\n", state.BatchID, state.RunID)
		fmt.Fprintf(w, "  started:   %s\n", state.StartedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "  updated:   %s\n", state.UpdatedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "  processed: %d\n", len(state.Processed))
		for _, o := range model.Outcomes {
			fmt.Fprintf(w, "  %-14s %d\n", o, counts[o])
		}
		fmt.Fprintf(w, "  cached links: %d\n", len(state.LinkCache))
		fmt.Fprintf(w, "  errors: %d\n", state.TotalErrors())
		for _, msg := range slices.Sorted(maps.Keys(state.ErrorCounts)) {
			fmt.Fprintf(w, "    %5d  %s\n", state.ErrorCounts[msg], msg)
		}
		return nil
	},
}

var checkpointClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the checkpoint of a batch so the next run starts fresh",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := inputPath(checkpointInput)
		if path == "" {
			return eris.New("checkpoint: --input is required")
		}
		ctx := cmd.Context()

		st, err := checkpoint.Open(ctx, cfg.Checkpoint.Driver, cfg.Checkpoint.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		id := checkpoint.BatchID(path)
		if err := st.Delete(ctx, id); err != nil {
			return err
		}
		zap.L().Info("checkpoint cleared", zap.String("batch_id", id))
		fmt.Fprintf(cmd.OutOrStdout(), "cleared checkpoint %s\n", id)
		return nil
	},
}

func init() {
	checkpointCmd.PersistentFlags().StringVar(&checkpointInput, "input", "", "input file the checkpoint belongs to (default from config)")
	checkpointCmd.AddCommand(checkpointShowCmd, checkpointClearCmd)
	rootCmd.AddCommand(checkpointCmd)
}
