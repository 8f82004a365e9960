// Command dsaquestctl runs administrative tasks against a DSAQuest deployment:
// schema migrations, catalog validation and seeding, and leaderboard exports.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/dsaquest/internal/catalog"
	"github.com/p-n-ai/dsaquest/internal/platform/config"
	"github.com/p-n-ai/dsaquest/internal/platform/database"
	"github.com/p-n-ai/dsaquest/internal/platform/logging"
	"github.com/p-n-ai/dsaquest/internal/progress"
	"github.com/p-n-ai/dsaquest/internal/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "dsaquestctl",
		Short:        "Administrative commands for DSAQuest",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), cfg.Log))
			return nil
		},
	}
	root.PersistentFlags().String("database-url", "", "PostgreSQL URL (default $LEARN_DATABASE_URL)")

	root.AddCommand(newMigrateCmd(), newCatalogCmd(), newExportLeaderboardCmd())
	return root
}

// connect opens the database named by --database-url or LEARN_DATABASE_URL.
func connect(cmd *cobra.Command) (*database.DB, error) {
	url, _ := cmd.Flags().GetString("database-url")
	if url == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		url = cfg.Database.URL
	}
	if url == "" {
		return nil, fmt.Errorf("no database configured: set --database-url or LEARN_DATABASE_URL")
	}
	return database.New(cmd.Context(), url, 4, 1)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := connect(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			files, _ := database.MigrationFiles()
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(files))
			return nil
		},
	}
}

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate or seed the topic catalog",
	}
	cmd.PersistentFlags().String("path", "./catalog", "catalog directory")

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Load the catalog directory and list its topics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			topics, err := loadTopics(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range topics {
				fmt.Fprintf(out, "%-20s %-28s modules=%d unlock=%d\n", t.ID, t.Title, len(t.Modules), t.UnlockRequirement)
			}
			fmt.Fprintf(out, "%d topic(s) OK\n", len(topics))
			return nil
		},
	}

	seed := &cobra.Command{
		Use:   "seed",
		Short: "Upsert the catalog directory into PostgreSQL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			topics, err := loadTopics(cmd)
			if err != nil {
				return err
			}
			if len(topics) == 0 {
				return fmt.Errorf("catalog is empty, nothing to seed")
			}

			db, err := connect(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			n, err := catalog.Seed(cmd.Context(), db.Pool, topics)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d topic(s)\n", n)
			return nil
		},
	}

	cmd.AddCommand(validate, seed)
	return cmd
}

func loadTopics(cmd *cobra.Command) ([]catalog.Topic, error) {
	path, _ := cmd.Flags().GetString("path")
	loader, err := catalog.NewLoader(path)
	if err != nil {
		return nil, err
	}
	return loader.ListTopics(cmd.Context())
}

func newExportLeaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-leaderboard",
		Short: "Write the leaderboard to an .xlsx workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			output, _ := cmd.Flags().GetString("output")
			limit, _ := cmd.Flags().GetInt("limit")

			db, err := connect(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			store, err := progress.NewPostgresStore(db.Pool)
			if err != nil {
				return err
			}
			engine := progress.NewEngine(progress.EngineConfig{Store: store})
			entries, err := engine.Leaderboard(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeWorkbook(cmd.OutOrStdout(), output, entries)
		},
	}
	cmd.Flags().StringP("output", "o", "leaderboard.xlsx", "output file, - for stdout")
	cmd.Flags().Int("limit", progress.MaxLeaderboardLimit, "number of users to export")
	return cmd
}

func writeWorkbook(stdout io.Writer, output string, entries []progress.LeaderboardEntry) error {
	if output == "-" {
		return report.WriteLeaderboard(stdout, entries)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	if err := report.WriteLeaderboard(f, entries); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", output, err)
	}
	slog.Info("leaderboard exported", "path", output, "entries", len(entries))
	return nil
}
