package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"dupecheck/internal/cli"
	"dupecheck/internal/pipeline"
	"dupecheck/internal/runner"
)

func runAnalyze(args []string, mode pipeline.RunMode) int {
	fs := flag.NewFlagSet(string(mode), flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	reportID := fs.Int64("report-id", 0, "Restrict the run to articles of this report")
	keepPairs := fs.Bool("keep-pairs", false, "Skip the table clear before loading pairs")
	csvPath := fs.String("csv", "", "CSV file with article IDs (overrides PATH_TO_CSV)")
	requestPath := fs.String("request", "", "JSON run request file (overrides mode and scope flags)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	loadEnvFile(envLoader)

	scope := pipeline.RunScope{
		ReportID:  optionalID(*reportID),
		KeepPairs: *keepPairs,
	}
	if *requestPath != "" {
		request, err := readRunRequest(*requestPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid run request: %v\n", err)
			return 2
		}
		mode = pipeline.RunMode(request.Mode)
		scope = pipeline.RunScope{ReportID: request.ReportID, KeepPairs: request.KeepPairs}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Pipeline setup failed: %v\n", err)
		return 1
	}
	defer rt.close()
	applyCSVOverride(rt, *csvPath)

	summary, runErr := rt.orchestrator.Run(ctx, mode, scope, contextCancel(ctx))
	if summary != nil {
		printJSON(summary)
	}
	if runErr != nil {
		if pipeline.IsCancelled(runErr) {
			rt.logger.Warn().Str("mode", string(mode)).Msg("pipeline run cancelled")
			return 130
		}
		rt.logger.Error().Err(runErr).Str("mode", string(mode)).Msg("pipeline run failed")
		fmt.Fprintf(os.Stderr, "Pipeline run failed: %v\n", runErr)
		return 1
	}
	return 0
}

func runLoad(args []string) int {
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	reportID := fs.Int64("report-id", 0, "Restrict loading to articles of this report")
	csvPath := fs.String("csv", "", "CSV file with article IDs (overrides PATH_TO_CSV)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	loadEnvFile(envLoader)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load setup failed: %v\n", err)
		return 1
	}
	defer rt.close()
	applyCSVOverride(rt, *csvPath)

	stats, runErr := rt.orchestrator.RunLoad(ctx, optionalID(*reportID), contextCancel(ctx))
	return finishStage(rt, pipeline.StepLoad, stats, runErr)
}

func runStage(args []string, step pipeline.Step) int {
	fs := flag.NewFlagSet(string(step), flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	loadEnvFile(envLoader)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stage setup failed: %v\n", err)
		return 1
	}
	defer rt.close()

	cancel := contextCancel(ctx)
	var stats pipeline.Stats
	var runErr error
	switch step {
	case pipeline.StepStates:
		stats, runErr = rt.orchestrator.RunStates(ctx, cancel)
	case pipeline.StepURLCheck:
		stats, runErr = rt.orchestrator.RunURLCheck(ctx, cancel)
	case pipeline.StepContentHash:
		stats, runErr = rt.orchestrator.RunContentHash(ctx, cancel)
	case pipeline.StepEmbedding:
		stats, runErr = rt.orchestrator.RunEmbedding(ctx, cancel)
	default:
		fmt.Fprintf(os.Stderr, "unknown stage: %s\n", step)
		return 2
	}
	return finishStage(rt, step, stats, runErr)
}

func runClear(args []string) int {
	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	loadEnvFile(envLoader)

	ctx := context.Background()

	rt, err := bootstrap(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Clear setup failed: %v\n", err)
		return 1
	}
	defer rt.close()

	result, clearErr := rt.orchestrator.ClearTable(ctx)
	printJSON(result)
	if clearErr != nil {
		rt.logger.Error().Err(clearErr).Msg("table clear failed")
		return 1
	}
	rt.logger.Info().Msg("analysis table cleared")
	return 0
}

func finishStage(rt *runtime, step pipeline.Step, stats pipeline.Stats, runErr error) int {
	if stats != nil {
		printJSON(stats)
	}
	if runErr != nil {
		if pipeline.IsCancelled(runErr) {
			rt.logger.Warn().Str("step", string(step)).Msg("stage cancelled")
			return 130
		}
		rt.logger.Error().Err(runErr).Str("step", string(step)).Msg("stage failed")
		fmt.Fprintf(os.Stderr, "Stage failed: %v\n", runErr)
		return 1
	}
	return 0
}

func readRunRequest(path string) (*runner.RunRequest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run request %s: %w", path, err)
	}
	return runner.ValidateRunRequest(raw)
}

func applyCSVOverride(rt *runtime, csvPath string) {
	trimmed := strings.TrimSpace(csvPath)
	if trimmed == "" {
		return
	}
	rt.orchestrator.SetCSVPath(trimmed)
}

func optionalID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

// contextCancel adapts context cancellation to the checkpoint-polled
// cancel flag the processors expect.
func contextCancel(ctx context.Context) pipeline.CancelFunc {
	return func() bool {
		select {
		case <-ctx.Done():
			return true
		default:
			return false
		}
	}
}

func printJSON(v any) {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
		return
	}
	fmt.Println(string(encoded))
}
