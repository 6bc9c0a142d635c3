package main

import (
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	os.Exit(run(os.Args[1], os.Args[2:]))
}

func run(cmd string, args []string) int {
	switch cmd {
	// --- NOUNS ---
	case "system":
		return runSystemNoun(args)
	case "config":
		return runConfigNoun(args)
	case "query":
		return runQueryNoun(args)

	// --- ROOT ALIASES ---
	case "start":
		return runStart(args)
	case "check":
		return runConfigCheck(args)
	case "version":
		fmt.Printf("synapse-gw version %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Print(`synapse-gw - Task dispatch and admission gateway for synapse workers

Usage:
  synapse-gw <noun> <action> [flags]

Core Resources (Nouns):
  system    Gateway lifecycle
  config    System configuration and integrity
  query     Recorded queries

System Commands:
  system start        Start the gateway service in foreground

Config Commands:
  config check        Validate configuration and print its fingerprint
  config lock         Authorize current state (write integrity hash)
  config show         Print the resolved configuration

Query Commands:
  query inspect <id>  Show one query's recorded state
  query list          Show the most recent queries
  query prune         Delete queries older than a retention window

General:
  version             Show version information
  help                Show this help message

Use 'synapse-gw <noun> help' for resource-specific flags.
`)
}

// --- NOUN DISPATCHERS ---

func runSystemNoun(args []string) int {
	if len(args) < 1 {
		printSystemNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printSystemNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "start":
		if hasHelpFlag(actionArgs) {
			printSystemStartHelp()
			return 0
		}
		return runStart(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", action)
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	case "lock":
		if hasHelpFlag(actionArgs) {
			printConfigLockHelp()
			return 0
		}
		return runConfigLock(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printConfigShowHelp()
			return 0
		}
		return runConfigShow(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runQueryNoun(args []string) int {
	if len(args) < 1 {
		printQueryNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printQueryNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "inspect":
		if hasHelpFlag(actionArgs) {
			printQueryInspectHelp()
			return 0
		}
		return runQueryInspect(actionArgs)
	case "list":
		if hasHelpFlag(actionArgs) {
			printQueryListHelp()
			return 0
		}
		return runQueryList(actionArgs)
	case "prune":
		if hasHelpFlag(actionArgs) {
			printQueryPruneHelp()
			return 0
		}
		return runQueryPrune(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown query action: %s\n", action)
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printSystemNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: synapse-gw system <action>")
	fmt.Fprintln(w, "Actions: start")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: synapse-gw config <action> [flags]")
	fmt.Fprintln(w, "Actions: check, lock, show")
}

func printQueryNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: synapse-gw query <action> [flags]")
	fmt.Fprintln(w, "Actions: inspect, list, prune")
}

func printSystemStartHelp() {
	fmt.Println("Usage: synapse-gw system start [--config PATH]")
	fmt.Println("Start the gateway service in the foreground.")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: synapse-gw config check [--config PATH] [--json] [--strict]")
	fmt.Println("Validate configuration syntax and integrity, then print its BLAKE3 fingerprint.")
}

func printConfigLockHelp() {
	fmt.Println("Usage: synapse-gw config lock [--config PATH] [--dry-run]")
	fmt.Println("Authorize the current configuration by writing its BLAKE3 checksum sidecar.")
}

func printConfigShowHelp() {
	fmt.Println("Usage: synapse-gw config show [--config PATH] [--json]")
	fmt.Println("Show the resolved configuration with secrets redacted.")
}

func printQueryInspectHelp() {
	fmt.Println("Usage: synapse-gw query inspect <query_id> [--config PATH] [--json]")
	fmt.Println("Show the recorded state of a single query.")
}

func printQueryListHelp() {
	fmt.Println("Usage: synapse-gw query list [--config PATH] [--limit N] [--json]")
	fmt.Println("Show the most recent queries, newest first.")
}

func printQueryPruneHelp() {
	fmt.Println("Usage: synapse-gw query prune --older-than DURATION [--config PATH]")
	fmt.Println("Delete recorded queries created before now minus DURATION (e.g. 720h).")
}
