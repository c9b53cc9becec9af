// Package cli provides the command-line interface for diarist.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/diarist/internal/client"
	"github.com/raphaelgruber/diarist/internal/config"
	"github.com/raphaelgruber/diarist/internal/db"
	"github.com/raphaelgruber/diarist/internal/llm"
	"github.com/raphaelgruber/diarist/internal/service"
	"github.com/spf13/cobra"
)

// remoteAnnotation marks commands that talk to the server instead of the database.
const remoteAnnotation = "remote"

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string

	// Global config, logger and db client
	cfg          config.Config
	logger       *slog.Logger
	closeLogFile func() error
	dbClient     *db.Client

	// Lazy-initialized LLM components
	summaryModel *llm.Model
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "diarist",
	Short: "Conversational journaling: chat by day, diary by night",
	Long: `Diarist keeps a daily diary from your conversations.

Chat during the day; at your diary time the day's emotions, condition and
activities are summarized into one diary entry, tagged with an overall mood.

Local commands (write, sweep, backfill, export, import, ...) work directly against the
database. chat, watch, jobs and stats talk to a running diarist-server.`,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, closeLogFile = config.SetupLogger(cfg.LogFile, level)

		if cmd.Annotations[remoteAnnotation] == "true" {
			return nil
		}
		if f := cmd.Flags().Lookup("remote"); f != nil && f.Changed && f.Value.String() == "true" {
			return nil
		}

		// Connect to database
		ctx := context.Background()
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}

		var err error
		dbClient, err = db.NewClient(ctx, dbCfg, logger, nil)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		// Initialize schema
		if err := dbClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		// Close database connection
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if closeLogFile != nil {
			_ = closeLogFile()
		}
	},
}

// diaryService builds the diary service. Commands that synthesize pass
// requireLLM=true; read-only commands skip model setup.
func diaryService(requireLLM bool) (*service.DiaryService, error) {
	if requireLLM && summaryModel == nil {
		var err error
		summaryModel, err = llm.NewModel(cfg, cfg.SummaryModel, nil)
		if err != nil {
			return nil, fmt.Errorf("init model: %w", err)
		}
	}

	deps := service.DiaryDeps{
		Store:    dbClient,
		Location: cfg.Location(),
		Logger:   logger,
	}
	if summaryModel != nil {
		deps.Summarizer = summaryModel
		deps.Classifier = summaryModel
	}
	return service.NewDiaryService(deps), nil
}

// apiClient returns a client for the diarist server.
func apiClient() *client.Client {
	url := serverURL
	if url == "" {
		url = cfg.ServerURL
	}
	return client.New(url)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "diarist server URL (default $DIARIST_SERVER_URL)")

	// Add subcommands
	rootCmd.AddCommand(setTimeCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(diaryCmd)
	rootCmd.AddCommand(calendarCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(statsCmd)
}
