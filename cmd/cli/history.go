package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anstrom/netscope/internal/api/handlers"
	"github.com/anstrom/netscope/internal/config"
	"github.com/anstrom/netscope/internal/db"
	"github.com/anstrom/netscope/internal/history"
	"github.com/anstrom/netscope/internal/logging"
)

var historySource string

// Sources for the history command.
const (
	sourceAuto     = "auto"
	sourceAPI      = "api"
	sourceDatabase = "db"
)

// historyCmd represents the history command.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently scanned ranges",
	Long: `List the most recent scan ranges, newest first. With the postgres history
backend the table is read straight from the database; otherwise the running
daemon is asked over its API.`,
	Example: `  netscope history
  netscope history --source api
  netscope history --source db --config /etc/netscope/netscope.yaml`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historySource, "source", sourceAuto, "where to read history from: auto, api, db")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	source := historySource
	if source == sourceAuto {
		source = sourceAPI
		if cfg.UsesDatabase() {
			source = sourceDatabase
		}
	}

	var entries []history.Entry
	switch source {
	case sourceAPI:
		entries, err = historyFromAPI(cmd.Context(), NewAPIClient(cfg))
	case sourceDatabase:
		entries, err = historyFromDatabase(cmd.Context(), cfg)
	default:
		return fmt.Errorf("invalid source %q, valid sources: auto, api, db", historySource)
	}
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No scans recorded yet")
		return nil
	}
	displayHistoryTable(cmd.OutOrStdout(), entries)
	return nil
}

func historyFromAPI(ctx context.Context, client *APIClient) ([]history.Entry, error) {
	var resp handlers.HistoryResponse
	if err := client.Get(ctx, "/history", &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	return resp.Entries, nil
}

func historyFromDatabase(ctx context.Context, cfg *config.Config) ([]history.Entry, error) {
	logger := logging.Default()
	database, err := db.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	defer func() {
		if closeErr := database.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database connection: %v\n", closeErr)
		}
	}()

	return history.NewSQLStore(database, logger).Recent(ctx)
}
