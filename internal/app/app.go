package app

import (
	"fmt"
	"os"
	"strings"

	"dupecheck/internal/pipeline"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "analyze":
		return runAnalyze(args[1:], pipeline.ModeAnalyze)
	case "analyze-fast":
		return runAnalyze(args[1:], pipeline.ModeAnalyzeFast)
	case "load":
		return runLoad(args[1:])
	case "states":
		return runStage(args[1:], pipeline.StepStates)
	case "urlcheck":
		return runStage(args[1:], pipeline.StepURLCheck)
	case "contenthash":
		return runStage(args[1:], pipeline.StepContentHash)
	case "embedding":
		return runStage(args[1:], pipeline.StepEmbedding)
	case "clear":
		return runClear(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "dupecheck CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  dupecheck <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health        Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  analyze       Run the full duplicate analysis pipeline")
	fmt.Fprintln(os.Stderr, "  analyze-fast  Run the pipeline without the content-hash stage")
	fmt.Fprintln(os.Stderr, "  load          Load candidate pairs into the analysis table")
	fmt.Fprintln(os.Stderr, "  states        Fill state comparisons for unresolved pairs")
	fmt.Fprintln(os.Stderr, "  urlcheck      Fill URL comparisons for unresolved pairs")
	fmt.Fprintln(os.Stderr, "  contenthash   Score lexical similarity for unresolved pairs")
	fmt.Fprintln(os.Stderr, "  embedding     Score semantic similarity for unresolved pairs")
	fmt.Fprintln(os.Stderr, "  clear         Delete all rows from the analysis table")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"dupecheck <command> -h\" for command-specific flags.")
}
