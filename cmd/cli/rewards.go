package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"

	"github.com/dvloznov/spend-insights/internal/app"
	"github.com/dvloznov/spend-insights/internal/config"
	"github.com/dvloznov/spend-insights/internal/rewards"
	"github.com/shopspring/decimal"
)

// metaFlag collects repeated -meta key=value pairs.
type metaFlag map[string]interface{}

func (m metaFlag) String() string {
	parts := make([]string, 0, len(m))
	for k, v := range m {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, ",")
}

func (m metaFlag) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return fmt.Errorf("want key=value, got %q", s)
	}
	m[strings.TrimSpace(k)] = strings.TrimSpace(v)
	return nil
}

func runAward(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("award", flag.ExitOnError)
	userID := fs.String("user", "", "User ID")
	action := fs.String("action", "", "Action: cancel_subscription, meet_savings_target, invest_savings, weekly_streak, monthly_goal_achieved")
	meta := metaFlag{}
	fs.Var(meta, "meta", "Action metadata as key=value (repeatable), e.g. -meta monthly_cost=499")
	metaJSON := fs.String("meta-json", "", "Action metadata as a JSON object, merged under -meta")
	fs.Parse(args)

	if *userID == "" || *action == "" {
		return fmt.Errorf("-user and -action are required")
	}

	metadata := map[string]interface{}{}
	if *metaJSON != "" {
		if err := json.Unmarshal([]byte(*metaJSON), &metadata); err != nil {
			return fmt.Errorf("-meta-json: %w", err)
		}
	}
	for k, v := range meta {
		metadata[k] = v
	}

	return withServices(ctx, cfg, func(s *app.Services) error {
		entry, err := s.Ledger.Award(ctx, *userID, *action, metadata)
		if err != nil {
			return err
		}
		return printJSON(entry)
	})
}

func runStats(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	userID := fs.String("user", "", "User ID")
	fs.Parse(args)

	if *userID == "" {
		return fmt.Errorf("-user is required")
	}

	return withServices(ctx, cfg, func(s *app.Services) error {
		stats, err := s.Ledger.GetStats(ctx, *userID)
		if err != nil {
			return err
		}
		return printJSON(stats)
	})
}

func runLeaderboard(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("leaderboard", flag.ExitOnError)
	limit := fs.Int("limit", rewards.DefaultLeaderboardLimit, "Number of users to show")
	fs.Parse(args)

	return withServices(ctx, cfg, func(s *app.Services) error {
		board, err := s.Ledger.Leaderboard(ctx, *limit)
		if err != nil {
			return err
		}
		return printJSON(board)
	})
}

func runProject(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("project", flag.ExitOnError)
	savings := fs.String("monthly-savings", "", "Monthly savings amount to invest")
	fs.Parse(args)

	amount, err := decimal.NewFromString(*savings)
	if err != nil {
		return fmt.Errorf("-monthly-savings: %w", err)
	}
	return printJSON(rewards.ProjectInvestmentPoints(amount))
}
