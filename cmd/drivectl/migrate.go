package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/taoyao-code/drivelink/internal/config"
	"github.com/taoyao-code/drivelink/internal/migrate"
	pgstorage "github.com/taoyao-code/drivelink/internal/storage/pg"
)

// runMigrate drivectl migrate [-config f] [-dsn d] [-dir d] up|down [steps]|status
func runMigrate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file (database.dsn)")
	dsn := fs.String("dsn", "", "override database DSN")
	dir := fs.String("dir", "", "read migrations from a directory instead of the embedded set")
	if err := fs.Parse(args); err != nil {
		return err
	}
	action, steps, err := parseMigrateAction(fs.Args())
	if err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *dsn != "" {
		cfg.Database.DSN = *dsn
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	pool, err := pgstorage.NewPool(ctx, cfg.Database, nil)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	r := migrate.Runner{FS: migrate.Embedded()}
	if *dir != "" {
		r = migrate.Runner{Dir: *dir}
	}

	switch action {
	case "up":
		done, err := r.Up(ctx, pool)
		printVersions(out, "applied", done)
		return err
	case "down":
		done, err := r.Down(ctx, pool, steps)
		printVersions(out, "rolled back", done)
		return err
	default:
		entries, err := r.Status(ctx, pool)
		if err != nil {
			return err
		}
		for _, e := range entries {
			state := "pending"
			if e.AppliedAt != nil {
				state = "applied " + e.AppliedAt.Format(time.RFC3339)
			}
			fmt.Fprintf(out, "%04d %-24s %s\n", e.Version, e.Name, state)
		}
		return nil
	}
}

func parseMigrateAction(args []string) (string, int, error) {
	if len(args) == 0 {
		return "", 0, errors.New("migrate: expected up, down or status")
	}
	switch args[0] {
	case "up", "status":
		return args[0], 0, nil
	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return "", 0, fmt.Errorf("migrate down: invalid steps %q", args[1])
			}
			steps = n
		}
		return "down", steps, nil
	}
	return "", 0, fmt.Errorf("migrate: unknown action %q", args[0])
}

func printVersions(out io.Writer, verb string, versions []int64) {
	if len(versions) == 0 {
		fmt.Fprintf(out, "nothing %s\n", verb)
		return
	}
	for _, v := range versions {
		fmt.Fprintf(out, "%s %04d\n", verb, v)
	}
}
