// Command discovery runs structured and adaptive discovery interviews from the
// terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"discovery/pkg/config"
	"discovery/pkg/logx"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string) error
}

func commands() []command {
	return []command{
		{"types", "List the interview archetypes in the question bank", runTypes},
		{"interview", "Run a structured interview and print its analysis", runInterview},
		{"adaptive", "Run an adaptive interview and print recommendations", runAdaptive},
		{"sessions", "List stored interview sessions and adaptive runs", runSessions},
		{"metrics", "Query interview totals from Prometheus", runMetrics},
		{"version", "Print the version", runVersion},
	}
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	name := os.Args[1]
	if name == "-h" || name == "--help" || name == "help" {
		printUsage()
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, cmd := range commands() {
		if cmd.name != name {
			continue
		}
		if err := cmd.run(ctx, os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			stop()
			os.Exit(1) //nolint:gocritic // stop already called
		}
		return
	}

	fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n\n", name)
	printUsage()
	os.Exit(1)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Discovery - Interview Orchestration\n\n")
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  %s <command> [flags]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	for _, cmd := range commands() {
		fmt.Fprintf(os.Stderr, "  %-10s - %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintf(os.Stderr, "\nEvery command accepts --config <file> and --debug.\n\n")
	fmt.Fprintf(os.Stderr, "Examples:\n")
	fmt.Fprintf(os.Stderr, "  %s interview --type financial_qualification --user alice\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s adaptive --domain \"retail bakery\" --objective \"grow weekday sales\"\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s adaptive --resume 3f2a9c1e-...\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s sessions --user alice --limit 10\n", os.Args[0])
}

// commonFlags are registered on every subcommand's flag set.
type commonFlags struct {
	configPath string
	debug      bool
}

func newFlagSet(name string, common *commonFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&common.configPath, "config", "", "Path to a JSON config file")
	fs.BoolVar(&common.debug, "debug", false, "Enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s %s:\n", os.Args[0], name)
		fs.PrintDefaults()
	}
	return fs
}

// loadConfig applies the common flags and loads configuration.
func loadConfig(common *commonFlags) (config.Config, error) {
	if common.debug {
		logx.SetDebug(true)
	}
	cfg, err := config.Load(common.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
