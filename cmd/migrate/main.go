// Command migrate applies the Postgres schema used by the postgres lookup
// source and the pricing_audit sink.
package main

import (
	"embed"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/dtslogistics/pricing-agent/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

type command struct {
	dsn      string
	up       bool
	down     bool
	steps    int
	version  bool
	force    int
	forceSet bool
}

func main() {
	cmd, err := parseCommand(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}
	if err := run(cmd, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "migrate failed: %v\n", err)
		os.Exit(1)
	}
}

func parseCommand(args []string, stderr io.Writer) (command, error) {
	var cmd command
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cmd.dsn, "dsn", "", "Database connection string (defaults to the configured database)")
	fs.BoolVar(&cmd.up, "up", false, "Run all up migrations")
	fs.BoolVar(&cmd.down, "down", false, "Run all down migrations")
	fs.IntVar(&cmd.steps, "steps", 0, "Number of migrations (positive=up, negative=down)")
	fs.BoolVar(&cmd.version, "version", false, "Print current migration version")
	fs.IntVar(&cmd.force, "force", -1, "Force set version (use with caution)")
	if err := fs.Parse(args); err != nil {
		return cmd, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "force" {
			cmd.forceSet = true
		}
	})
	return cmd, nil
}

func resolveDSN(cmd command) (string, error) {
	if cmd.dsn != "" {
		return cmd.dsn, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg.Database.DSN(), nil
}

func run(cmd command, out io.Writer) error {
	if !cmd.up && !cmd.down && !cmd.version && !cmd.forceSet && cmd.steps == 0 {
		fmt.Fprintln(out, "usage: migrate [-dsn <connection-string>] -up|-down|-steps N|-version|-force N")
		return nil
	}

	dsn, err := resolveDSN(cmd)
	if err != nil {
		return err
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	switch {
	case cmd.version:
		v, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("failed to get version: %w", err)
		}
		fmt.Fprintf(out, "version: %d, dirty: %v\n", v, dirty)
	case cmd.forceSet:
		if err := m.Force(cmd.force); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
		fmt.Fprintf(out, "forced to version %d\n", cmd.force)
	case cmd.up:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run up migrations: %w", err)
		}
		fmt.Fprintln(out, "migrations applied successfully")
	case cmd.down:
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run down migrations: %w", err)
		}
		fmt.Fprintln(out, "migrations reverted successfully")
	default:
		if err := m.Steps(cmd.steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		fmt.Fprintf(out, "applied %d migration steps\n", cmd.steps)
	}
	return nil
}
