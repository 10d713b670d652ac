package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/arrest-news-cli/internal/batch"
	"github.com/sells-group/arrest-news-cli/internal/checkpoint"
	"github.com/sells-group/arrest-news-cli/internal/input"
	"github.com/sells-group/arrest-news-cli/internal/model"
	"github.com/sells-group/arrest-news-cli/internal/query"
	"github.com/sells-group/arrest-news-cli/internal/sink"
)

var (
	runInput      string
	runOutputDir  string
	runLimit      int
	runOffline    bool
	runDryRun     bool
	runStatusPort int
	runXLSX       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run or resume the batch for an input file",
	Long:  "Processes every record of the input file, checkpointing progress. Re-running with the same input resumes an interrupted batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		path := inputPath(runInput)
		if path == "" {
			return eris.New("run: --input is required")
		}
		outputDir := runOutputDir
		if outputDir == "" {
			outputDir = cfg.Output.Dir
		}

		records, err := input.Read(ctx, path)
		if err != nil {
			return err
		}
		zap.L().Info("loaded input", zap.String("path", path), zap.Int("records", len(records)))

		if runDryRun {
			return printQueries(cmd.OutOrStdout(), records)
		}

		summary, err := runBatch(ctx, path, outputDir, records)
		if summary != nil {
			printSummary(cmd.OutOrStdout(), summary)
		}
		return err
	},
}

// inputPath prefers the flag over the configured path.
func inputPath(flag string) string {
	if flag != "" {
		return flag
	}
	return cfg.Input.Path
}

func runBatch(ctx context.Context, path, outputDir string, records []model.InputRecord) (*batch.Summary, error) {
	errorLog, closeLog, err := sink.OpenErrorLog(outputDir)
	if err != nil {
		return nil, err
	}
	defer closeLog() //nolint:errcheck

	env, err := initEnv(ctx, cfg, errorLog, runOffline)
	if err != nil {
		return nil, err
	}
	defer env.Close()

	runner := batch.NewRunner(env.Store, env.Processor, env.Cache, batch.Options{
		BatchID:      checkpoint.BatchID(path),
		OutputDir:    outputDir,
		Interval:     cfg.Batch.CheckpointInterval,
		Limit:        runLimit,
		PersistCache: cfg.Cache.PersistWithCheckpoint,
		ExportXLSX:   cfg.Output.ExportXLSX || runXLSX,
		Metrics:      env.Metrics,
	})

	port := runStatusPort
	if port == 0 {
		port = cfg.Server.Port
	}
	if port > 0 {
		srvCtx, stopSrv := context.WithCancel(ctx)
		defer stopSrv()
		go serveStatus(srvCtx, newStatusServer(port, runner, env.Metrics))
	}

	return runner.Run(ctx, records)
}

func printQueries(w io.Writer, records []model.InputRecord) error {
	gen := query.NewGenerator(cfg.Batch.QueryTemplates, cfg.Window.DaysBefore, cfg.Window.DaysAfter)
	for _, rec := range records {
		queries, err := gen.Generate(rec)
		if err != nil {
			fmt.Fprintf(w, "row %d: %v\n", rec.Row, err)
			continue
		}
		for _, q := range queries {
			fmt.Fprintf(w, "%s\t%s\t%s..%s\n", rec.ID(), q.Text, q.Window.StartParam(), q.Window.EndParam())
		}
	}
	return nil
}

func printSummary(w io.Writer, s *batch.Summary) {
	status := "completed"
	if !s.Completed {
		status = "checkpointed"
	}
	fmt.Fprintf(w, "batch %s (%s), run %s\n", s.BatchID, status, s.RunID)
	fmt.Fprintf(w, "  processed: %d (%d this run)\n", s.Processed, s.ProcessedThisRun)
	if s.Completed {
		for _, o := range model.Outcomes {
			fmt.Fprintf(w, "  %-14s %d -> %s\n", o, s.Counts[o], sink.FileFor(o))
		}
	}
	fmt.Fprintf(w, "  errors: %d\n", s.Errors)
	if s.ErrorSummaryPath != "" {
		fmt.Fprintf(w, "  error summary: %s\n", s.ErrorSummaryPath)
	}
	if s.XLSXPath != "" {
		fmt.Fprintf(w, "  workbook: %s\n", s.XLSXPath)
	}
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "input CSV or XLSX of abnormal arrest dates (default from config)")
	runCmd.Flags().StringVar(&runOutputDir, "output-dir", "", "directory for result files (default from config)")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "process at most N records this run, leaving a checkpoint (0 = all)")
	runCmd.Flags().BoolVar(&runOffline, "offline", false, "use stub search, fetch and LLM backends")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "print the generated queries and exit")
	runCmd.Flags().IntVar(&runStatusPort, "status-port", 0, "serve /healthz, /progress and /metrics on this port (default from config)")
	runCmd.Flags().BoolVar(&runXLSX, "xlsx", false, "export the timestamped workbook even when output.export_xlsx is false")
	rootCmd.AddCommand(runCmd)
}
