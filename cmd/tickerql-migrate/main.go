package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/tickerql/tickerql/internal/config"
	"github.com/tickerql/tickerql/internal/migrations"
	storepostgres "github.com/tickerql/tickerql/internal/store/postgres"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("tickerql-migrate", flag.ContinueOnError)
	flags.SetOutput(stderr)
	direction := flags.String("direction", "up", "up, down or status")
	steps := flags.Int("steps", 0, "migrations to run; 0 means all for up and one for down")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	switch *direction {
	case "up", "down", "status":
	default:
		fmt.Fprintf(stderr, "unknown direction %q\n", *direction)
		return 2
	}

	cfg, err := config.LoadFromEnv("tickerql-migrate")
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	if cfg.Store.DSN == "" {
		fmt.Fprintln(stderr, "TICKERQL_STORE_DSN is required")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := storepostgres.Open(ctx, cfg.Store)
	if err != nil {
		fmt.Fprintf(stderr, "open store: %v\n", err)
		return 1
	}
	defer func() { _ = db.Close() }()

	runner := migrations.NewRunner()
	switch *direction {
	case "up":
		n, err := runner.Up(ctx, db, *steps)
		fmt.Fprintf(stdout, "applied %d migration(s)\n", n)
		if err != nil {
			fmt.Fprintf(stderr, "up: %v\n", err)
			return 1
		}
	case "down":
		n, err := runner.Down(ctx, db, *steps)
		fmt.Fprintf(stdout, "rolled back %d migration(s)\n", n)
		if err != nil {
			fmt.Fprintf(stderr, "down: %v\n", err)
			return 1
		}
	case "status":
		states, err := runner.Status(ctx, db)
		if err != nil {
			fmt.Fprintf(stderr, "status: %v\n", err)
			return 1
		}
		writeStatus(stdout, states)
	}
	return 0
}

func writeStatus(w io.Writer, states []migrations.State) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED_AT")
	for _, state := range states {
		appliedAt := "pending"
		if state.AppliedAt != nil {
			appliedAt = state.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%06d\t%s\t%s\n", state.Version, state.Name, appliedAt)
	}
	_ = tw.Flush()
}
