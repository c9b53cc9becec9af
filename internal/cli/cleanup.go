package cli

import (
	"fmt"

	"github.com/raphaelgruber/diarist/internal/service"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup <user>",
	Short: "Drop short-lived metadata from old conversations",
	Long: `Remove emotion, condition and done-today notes from the user's
conversations older than the context window (DIARIST_CONTEXT_WINDOW).
Dialogue and preferences are kept.

Examples:
  diarist cleanup alice`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cleaner := service.NewCleanupService(dbClient, cfg.ContextWindow, logger)
		n, err := cleaner.CleanOldMetadata(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Cleaned %d conversations for %s\n", n, args[0])
		return nil
	},
}
