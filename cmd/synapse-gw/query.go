package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mattjoyce/synapse-gw/internal/config"
	"github.com/mattjoyce/synapse-gw/internal/history"
	"github.com/mattjoyce/synapse-gw/internal/storage"
)

func openHistory(ctx context.Context, cfg *config.Config) (*history.Store, func(), error) {
	if !cfg.Storage.Enabled {
		return nil, nil, fmt.Errorf("query history is disabled (storage.enabled: false)")
	}
	db, err := storage.OpenSQLite(ctx, cfg.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return history.New(db), func() { _ = db.Close() }, nil
}

// splitFlagsAndPositionals separates flags from positional arguments so
// flags may appear on either side of them. Flags named in takesValue consume
// the following argument unless written as --flag=value.
func splitFlagsAndPositionals(args []string, takesValue map[string]bool) ([]string, []string) {
	flags := make([]string, 0, len(args))
	positionals := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			positionals = append(positionals, arg)
			continue
		}

		flags = append(flags, arg)
		if strings.Contains(arg, "=") {
			continue
		}
		if takesValue[strings.TrimLeft(arg, "-")] && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}

	return flags, positionals
}

func runQueryInspect(args []string) int {
	var configPath string
	var jsonOut bool

	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&jsonOut, "json", false, "Output report in JSON")

	flagArgs, positionals := splitFlagsAndPositionals(args, map[string]bool{"config": true})
	if err := fs.Parse(flagArgs); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if len(positionals) != 1 {
		fmt.Fprintf(os.Stderr, "Usage: synapse-gw query inspect <query_id> [--config PATH] [--json]\n")
		return 1
	}
	queryID := positionals[0]

	cfg, err := loadConfigForTool(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx := context.Background()
	store, closeDB, err := openHistory(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer closeDB()

	rec, err := store.Get(ctx, queryID)
	if errors.Is(err, history.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "Query not found: %s\n", queryID)
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Inspect failed: %v\n", err)
		return 1
	}

	if jsonOut {
		data, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Println(string(data))
		return 0
	}
	writeRecordReport(os.Stdout, rec)
	return 0
}

func writeRecordReport(w io.Writer, rec *history.Record) {
	fmt.Fprintf(w, "Query:    %s\n", rec.ID)
	fmt.Fprintf(w, "Task:     %s\n", rec.Task)
	if rec.Engine != "" {
		fmt.Fprintf(w, "Engine:   %s\n", rec.Engine)
	}
	fmt.Fprintf(w, "Caller:   %s\n", rec.Caller)
	fmt.Fprintf(w, "State:    %s\n", rec.State)
	fmt.Fprintf(w, "Priority: %g\n", rec.Priority)
	fmt.Fprintf(w, "Created:  %s\n", rec.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Updated:  %s (+%s)\n", rec.UpdatedAt.Format(time.RFC3339), rec.UpdatedAt.Sub(rec.CreatedAt).Round(time.Millisecond))
	if rec.Detail != nil {
		fmt.Fprintf(w, "Detail:   %s\n", *rec.Detail)
	}
	if rec.ErrorMessage != nil {
		fmt.Fprintf(w, "Error:    %s\n", *rec.ErrorMessage)
	}
}

func runQueryList(args []string) int {
	var configPath string
	var limit int
	var jsonOut bool

	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.IntVar(&limit, "limit", 20, "Maximum number of queries")
	fs.BoolVar(&jsonOut, "json", false, "Output in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfigForTool(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx := context.Background()
	store, closeDB, err := openHistory(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer closeDB()

	recs, err := store.Recent(ctx, limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		return 1
	}

	if jsonOut {
		data, _ := json.MarshalIndent(recs, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTASK\tCALLER\tSTATE\tCREATED")
	for _, rec := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", rec.ID, rec.Task, rec.Caller, rec.State, rec.CreatedAt.Format(time.RFC3339))
	}
	_ = tw.Flush()
	return 0
}

func runQueryPrune(args []string) int {
	var configPath string
	var olderThan time.Duration

	fs := flag.NewFlagSet("prune", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.DurationVar(&olderThan, "older-than", 0, "Retention window, e.g. 720h")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if olderThan <= 0 {
		fmt.Fprintf(os.Stderr, "Usage: synapse-gw query prune --older-than DURATION [--config PATH]\n")
		return 1
	}

	cfg, err := loadConfigForTool(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx := context.Background()
	store, closeDB, err := openHistory(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer closeDB()

	n, err := store.Prune(ctx, olderThan)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Prune failed: %v\n", err)
		return 1
	}
	fmt.Printf("Pruned %d queries older than %s\n", n, olderThan)
	return 0
}
