package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/shoplist/internal/config"
	"github.com/dukerupert/shoplist/internal/database"
	"github.com/dukerupert/shoplist/internal/live"
	"github.com/dukerupert/shoplist/internal/logging"
	"github.com/dukerupert/shoplist/internal/shopping"
	"github.com/dukerupert/shoplist/internal/store"
)

// app carries the resolved settings shared by every subcommand.
type app struct {
	cfg    config.Config
	format string
	out    io.Writer
	logger *slog.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	var (
		dbPath   string
		logLevel string
	)

	root := &cobra.Command{
		Use:   "shoplist",
		Short: "Shopping list organised by category",
		Long: `Shoplist keeps a shopping list grouped into categories in a local SQLite
database. Run "shoplist serve" for the HTTP and WebSocket API, or use the
category, item and share commands directly.

Examples:
  shoplist category add Produce
  shoplist item add 1 Apples --quantity 6
  shoplist category toggle 1
  shoplist share`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.cfg = config.Load()
			if dbPath != "" {
				a.cfg.DBPath = dbPath
			}
			if logLevel != "" {
				a.cfg.LogLevel = logLevel
			}
			if err := checkFormat(a.format); err != nil {
				return err
			}
			a.logger = logging.Setup(a.cfg.LogLevel)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database file path (default $SHOPLIST_DB_PATH or shoplist.db)")
	root.PersistentFlags().StringVarP(&a.format, "format", "f", formatText, "Output format: text|json|yaml")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error")

	root.AddCommand(
		newServeCmd(a),
		newCategoryCmd(a),
		newItemCmd(a),
		newShareCmd(a),
		newBackupCmd(a),
	)
	return root
}

// withRepository opens the database for the duration of fn.
func (a *app) withRepository(ctx context.Context, fn func(db *database.DB, repo *shopping.Repository) error) error {
	db, err := database.Open(a.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	s := store.NewShoppingStore(db.DB, live.NewHub(a.logger.With("component", "live")))
	return fn(db, shopping.NewRepository(s))
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
