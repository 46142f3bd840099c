package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
	"github.com/vladislavdragonenkov/flashcart/internal/storage/postgres"
	"github.com/vladislavdragonenkov/flashcart/internal/storage/seed"
)

const (
	defaultTimeout = 30 * time.Second
	envPostgresDSN = "FLASHCART_POSTGRES_DSN"
)

// migrator - операции над схемой, которые нужны CLI.
type migrator interface {
	MigrateUp(ctx context.Context, steps int) error
	MigrateDown(ctx context.Context, steps int) error
	MigrationStatus(ctx context.Context) (postgres.MigrationState, error)
	UpsertCategory(ctx context.Context, slug, name string) error
	UpsertProduct(ctx context.Context, p domain.Product) error
	Close() error
}

type openFunc func(ctx context.Context, dsn string) (migrator, error)

func openPostgres(ctx context.Context, dsn string) (migrator, error) {
	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func main() {
	if err := newRootCmd(openPostgres, os.LookupEnv).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(open openFunc, lookup func(string) (string, bool)) *cobra.Command {
	var (
		dsn     string
		timeout time.Duration
	)

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Управление схемой PostgreSQL checkout-service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: "+envPostgresDSN+")")
	root.PersistentFlags().DurationVar(&timeout, "timeout", defaultTimeout, "timeout for the whole command")

	// withStore открывает хранилище, выполняет fn и закрывает соединение.
	withStore := func(cmd *cobra.Command, fn func(ctx context.Context, store migrator, out io.Writer) error) error {
		resolved := strings.TrimSpace(dsn)
		if resolved == "" {
			if v, ok := lookup(envPostgresDSN); ok {
				resolved = strings.TrimSpace(v)
			}
		}
		if resolved == "" {
			return fmt.Errorf("%s (or --dsn) is required", envPostgresDSN)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		store, err := open(ctx, resolved)
		if err != nil {
			return fmt.Errorf("open postgres store: %w", err)
		}
		defer store.Close()
		return fn(ctx, store, cmd.OutOrStdout())
	}

	var upSteps int
	up := &cobra.Command{
		Use:   "up",
		Short: "Применить миграции (по умолчанию все)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, store migrator, out io.Writer) error {
				if err := store.MigrateUp(ctx, upSteps); err != nil {
					return fmt.Errorf("migrate up failed: %w", err)
				}
				return printStatus(ctx, store, out, "migrate up ok")
			})
		},
	}
	up.Flags().IntVar(&upSteps, "steps", 0, "number of migrations to apply (0=all)")

	var downSteps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Откатить последние миграции",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			steps := downSteps
			if steps <= 0 {
				steps = 1
			}
			return withStore(cmd, func(ctx context.Context, store migrator, out io.Writer) error {
				if err := store.MigrateDown(ctx, steps); err != nil {
					return fmt.Errorf("migrate down failed: %w", err)
				}
				return printStatus(ctx, store, out, "migrate down ok")
			})
		},
	}
	down.Flags().IntVar(&downSteps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Показать версию схемы и неприменённые миграции",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, store migrator, out io.Writer) error {
				return printStatus(ctx, store, out, "migration status")
			})
		},
	}

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Заполнить каталог демонстрационными категориями и товарами",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, store migrator, out io.Writer) error {
				n, err := seed.Apply(ctx, store, time.Now().UTC())
				if err != nil {
					return fmt.Errorf("seed failed: %w", err)
				}
				_, err = fmt.Fprintf(out, "seed ok: products=%d\n", n)
				return err
			})
		},
	}

	root.AddCommand(up, down, status, seedCmd)
	return root
}

func printStatus(ctx context.Context, store migrator, out io.Writer, prefix string) error {
	state, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, err = fmt.Fprintf(out, "%s: version=%d applied=%d pending=%d\n", prefix, state.Version, state.Applied, len(state.Pending))
	return err
}
