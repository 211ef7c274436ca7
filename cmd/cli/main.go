package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/spend-insights/internal/app"
	"github.com/dvloznov/spend-insights/internal/config"
	"github.com/dvloznov/spend-insights/internal/logger"
	"github.com/rs/zerolog"
)

const commandTimeout = 10 * time.Minute

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	run, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	log := logger.NewWithOptions(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	if err := run(ctx, cfg, os.Args[2:]); err != nil {
		log.Error().Err(err).Str("command", cmd).Msg("Command failed")
		cancel()
		os.Exit(1)
	}
}

type command func(ctx context.Context, cfg config.Config, args []string) error

var commands = map[string]command{
	"analyze":     runAnalyze,
	"batch":       runBatch,
	"import":      runImport,
	"award":       runAward,
	"stats":       runStats,
	"leaderboard": runLeaderboard,
	"project":     runProject,
}

func printUsage() {
	fmt.Println("Spend Insights CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  analyze       Detect subscriptions and waste in a transaction export")
	fmt.Println("  batch         Analyse many exports concurrently")
	fmt.Println("  import        Categorise an export and store it in BigQuery")
	fmt.Println("  award         Award reward points for a user action")
	fmt.Println("  stats         Show a user's points, tier and badges")
	fmt.Println("  leaderboard   Rank users by points")
	fmt.Println("  project       Project investment points for a monthly savings amount")
	fmt.Println("  help          Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
	fmt.Println("\nConfiguration is read from $SPEND_CONFIG or ~/.config/spend-insights/config.toml")
	fmt.Println("and SPEND_* environment variables.")
}

// withServices wires the configured collaborators for one command run.
func withServices(ctx context.Context, cfg config.Config, fn func(s *app.Services) error) error {
	s, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Msg("Closing services")
		}
	}()
	return fn(s)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func commandLogger(ctx context.Context, cmd string) zerolog.Logger {
	return logger.FromContext(ctx).With().Str("command", cmd).Logger()
}
