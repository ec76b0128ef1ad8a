// Утилита управления схемой БД магазина: migrate [flags] up|down|status.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/storage/postgres"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(out)
	steps := fs.Int("steps", 0, "number of migrations to apply or rollback (0 = all for up, 1 for down)")
	dsn := fs.String("dsn", "", "PostgreSQL DSN (fallback: SHOP_POSTGRES_DSN)")
	timeout := fs.Duration("timeout", 30*time.Second, "total time budget for the command")
	if err := fs.Parse(args); err != nil {
		return err
	}

	command, err := parseCommand(fs.Arg(0))
	if err != nil {
		return err
	}

	resolvedDSN, err := resolveDSN(*dsn)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := postgres.Open(ctx, resolvedDSN)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer store.Close()

	switch command {
	case "up":
		if err := store.MigrateUp(ctx, *steps); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
	case "down":
		if err := store.MigrateDown(ctx, *steps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
	case "status":
	}

	version, applied, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, _ = fmt.Fprintf(out, "%s ok: version=%d applied=%d\n", command, version, applied)
	return nil
}

// parseCommand нормализует подкоманду. Пустая команда означает status.
func parseCommand(raw string) (string, error) {
	command := strings.ToLower(strings.TrimSpace(raw))
	switch command {
	case "":
		return "status", nil
	case "up", "down", "status":
		return command, nil
	default:
		return "", fmt.Errorf("unknown command %q (use up, down or status)", raw)
	}
}

func resolveDSN(flagDSN string) (string, error) {
	if dsn := strings.TrimSpace(flagDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(os.Getenv("SHOP_POSTGRES_DSN")); dsn != "" {
		return dsn, nil
	}
	return "", fmt.Errorf("SHOP_POSTGRES_DSN (or -dsn) is required")
}
