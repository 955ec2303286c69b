package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ticketops/reconcile-api/internal/app"
	"github.com/ticketops/reconcile-api/internal/config"
	"github.com/ticketops/reconcile-api/internal/db"
)

// session holds the connections opened by the root command for the
// subcommand that runs after it.
type session struct {
	cfg      config.Config
	pool     *pgxpool.Pool
	sqlDB    *sql.DB
	services app.Services
}

var current session

var rootCmd = &cobra.Command{
	Use:   "ticketctl",
	Short: "Inspect and reconcile ticket imports from the command line",
	Long: `ticketctl works against the same database as the API server.

Examples:
  ticketctl list --status needs_review
  ticketctl classify 42
  ticketctl columns delivery_tickets
  ticketctl accept 42 --rows 0,2,3
  ticketctl reject 42 --reason "duplicate scan"`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		pool, err := db.Connect(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		sqlDB := db.OpenSQL(pool)
		current = session{cfg: cfg, pool: pool, sqlDB: sqlDB, services: app.NewServices(cfg, sqlDB, logger)}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if current.sqlDB != nil {
			_ = current.sqlDB.Close()
		}
		if current.pool != nil {
			current.pool.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json", false, "Output results in JSON format")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log pipeline details to stderr")

	rootCmd.AddCommand(listCmd, classifyCmd, columnsCmd, acceptCmd, rejectCmd)
}

func wantsJSON(cmd *cobra.Command) bool {
	useJSON, _ := cmd.Flags().GetBool("json")
	return useJSON
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
