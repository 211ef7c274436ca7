package rewards

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	// RecentRewardsLimit caps Stats.RecentRewards.
	RecentRewardsLimit = 5

	// DefaultLeaderboardLimit is used when Leaderboard is given a non-positive limit.
	DefaultLeaderboardLimit = 10
)

// Badge IDs.
const (
	BadgeFirstCancel     = "first_cancel"
	BadgeFirstInvestment = "first_investment"
	BadgeSavings10       = "savings_10"
	BadgeSavings20       = "savings_20"
)

var badgeLabels = map[string]string{
	BadgeFirstCancel:     "Subscription Slayer",
	BadgeFirstInvestment: "Smart Investor",
	BadgeSavings10:       "10% Saver",
	BadgeSavings20:       "20% Saver",
}

// Badges compare the raw saved_amount metadata against these values.
var (
	savings10Threshold = decimal.NewFromInt(10)
	savings20Threshold = decimal.NewFromInt(20)
)

// Badge is an achievement derived from a user's history at read time.
type Badge struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Stats is a user's score with derived badges and recent activity.
type Stats struct {
	domain.UserScore
	Badges        []Badge              `json:"badges"`
	TotalRewards  int                  `json:"totalRewards"`
	RecentRewards []domain.RewardEntry `json:"recentRewards"`
}

// LeaderboardEntry is one ranked user.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"userId"`
	TotalPoints int64  `json:"points"`
	Tier        string `json:"tier"`
}

// GetStats returns userID's score, badges, reward count and most recent entries.
func (l *Ledger) GetStats(ctx context.Context, userID string) (Stats, error) {
	if strings.TrimSpace(userID) == "" {
		return Stats{}, fmt.Errorf("GetStats: %w", ErrEmptyUserID)
	}

	score, err := l.store.Score(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("GetStats: reading score: %w", err)
	}
	history, err := l.store.History(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("GetStats: reading history: %w", err)
	}

	return Stats{
		UserScore:     score,
		Badges:        BadgesFor(history),
		TotalRewards:  len(history),
		RecentRewards: recent(history, RecentRewardsLimit),
	}, nil
}

// BadgesFor derives badges from a user's history.
func BadgesFor(history []domain.RewardEntry) []Badge {
	badges := make([]Badge, 0)
	add := func(id string) {
		badges = append(badges, Badge{ID: id, Label: badgeLabels[id]})
	}

	if hasAction(history, domain.ActionCancelSubscription) {
		add(BadgeFirstCancel)
	}
	if hasAction(history, domain.ActionInvestSavings) {
		add(BadgeFirstInvestment)
	}

	var best decimal.Decimal
	found := false
	for _, e := range history {
		if e.Action != domain.ActionMeetSavingsTarget {
			continue
		}
		saved, _ := metaDecimal(e.Metadata, MetaSavedAmount)
		if !found || saved.GreaterThan(best) {
			best = saved
			found = true
		}
	}
	if found && best.GreaterThanOrEqual(savings10Threshold) {
		add(BadgeSavings10)
	}
	if found && best.GreaterThanOrEqual(savings20Threshold) {
		add(BadgeSavings20)
	}

	return badges
}

// recent returns up to n entries, newest first.
func recent(history []domain.RewardEntry, n int) []domain.RewardEntry {
	sorted := make([]domain.RewardEntry, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Leaderboard ranks users by total points, highest first. Ties are broken by
// user ID ascending so the order is the same for every store.
func (l *Ledger) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	scores, err := l.store.Scores(ctx)
	if err != nil {
		return nil, fmt.Errorf("Leaderboard: reading scores: %w", err)
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].TotalPoints != scores[j].TotalPoints {
			return scores[i].TotalPoints > scores[j].TotalPoints
		}
		return scores[i].UserID < scores[j].UserID
	})
	if len(scores) > limit {
		scores = scores[:limit]
	}

	board := make([]LeaderboardEntry, 0, len(scores))
	for i, s := range scores {
		board = append(board, LeaderboardEntry{
			Rank:        i + 1,
			UserID:      s.UserID,
			TotalPoints: s.TotalPoints,
			Tier:        TierFor(s.TotalPoints),
		})
	}
	return board, nil
}
