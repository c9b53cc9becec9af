package cli

import (
	"fmt"
	"slices"

	"github.com/raphaelgruber/diarist/internal/metrics"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server statistics",
	Long: `Show the server's in-memory runtime statistics: operation timings,
LLM token usage and diary counters since the last restart.

Examples:
  diarist stats
  diarist stats --server http://diary.internal:3000`,
	Annotations: map[string]string{remoteAnnotation: "true"},
	RunE:        runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	stats, err := apiClient().Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("get server stats: %w", err)
	}
	printServerStats(stats)
	return nil
}

// printServerStats displays server runtime statistics.
func printServerStats(stats *metrics.Snapshot) {
	fmt.Printf("Server Statistics (in-memory, since restart)\n")
	fmt.Printf("═══════════════════════════════════════════════\n")
	fmt.Printf("Uptime: %.1f seconds\n", stats.UptimeSeconds)

	if stats.Synthesis != nil {
		fmt.Printf("\nDiary Synthesis:\n")
		printOpStats(stats.Synthesis)
	}

	if stats.LLMGenerate != nil {
		fmt.Printf("\nLLM Generate:\n")
		printOpStats(stats.LLMGenerate)
		printTokenStats(stats.LLMGenerate)
	}

	if stats.RAGQuery != nil {
		fmt.Printf("\nRetrieval:\n")
		printOpStats(stats.RAGQuery)
	}

	if stats.DBQuery != nil {
		fmt.Printf("\nDB Query:\n")
		printOpStats(stats.DBQuery)
	}

	if len(stats.Counters) > 0 {
		fmt.Printf("\nCounters:\n")
		names := make([]string, 0, len(stats.Counters))
		for name := range stats.Counters {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Printf("  %-18s %d\n", name, stats.Counters[name])
		}
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(op *metrics.OperationSnapshot) {
	fmt.Printf("  Calls: %d, Total: %dms\n", op.Count, op.TotalTimeMs)
	fmt.Printf("  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}

// printTokenStats displays token totals if available.
func printTokenStats(op *metrics.OperationSnapshot) {
	if op.TotalInputTokens == nil || op.TotalOutputTokens == nil {
		return
	}
	fmt.Printf("  Tokens In:  %d total\n", *op.TotalInputTokens)
	fmt.Printf("  Tokens Out: %d total\n", *op.TotalOutputTokens)
}
