// Command mosprep turns a scan sequence into multi-frame training samples
// and records a summary of each run in sqlite.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/mosgrid/internal/db"
	"github.com/banshee-data/mosgrid/internal/monitoring"
	"github.com/banshee-data/mosgrid/internal/version"
)

const defaultDBPath = "mosprep.db"

func main() {
	flag.Usage = func() { printUsage(os.Stdout) }
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage(os.Stderr)
		os.Exit(1)
	}
	monitoring.SetLogger(monitoring.WriterLogf(os.Stderr, "[mosprep] "))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "prep":
		err = handlePrep(ctx, args)
	case "runs":
		err = handleRuns(args)
	case "migrate":
		err = handleMigrate(args)
	case "version":
		fmt.Printf("mosprep %s\n", version.String())
	case "help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "mosprep %s: %v\n", command, err)
		os.Exit(1)
	}
}

func printUsage(out *os.File) {
	fmt.Fprintln(out, `mosprep - multi-frame LiDAR sample preparation

Usage: mosprep <command> [options]

Commands:
  prep       Build samples for a sequence and record the run
  runs       List recorded runs, or the frames of one run
  migrate    Manage the run database schema
  version    Show mosprep version
  help       Show this help message

Run 'mosprep <command> -h' for the options of a command.`)
}

func handleMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBPath, "Path to the run database")
	fs.Parse(args)
	return db.RunMigrateCommand(fs.Args(), *dbPath, os.Stdout)
}
