package domain

import "time"

// Reward actions recognised by the points rules.
const (
	ActionCancelSubscription  = "cancel_subscription"
	ActionMeetSavingsTarget   = "meet_savings_target"
	ActionInvestSavings       = "invest_savings"
	ActionWeeklyStreak        = "weekly_streak"
	ActionMonthlyGoalAchieved = "monthly_goal_achieved"
)

// Tier names, lowest first.
const (
	TierBronze   = "Bronze"
	TierSilver   = "Silver"
	TierGold     = "Gold"
	TierPlatinum = "Platinum"
)

// RewardEntry is one point-awarding action. Entries are append-only.
type RewardEntry struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"userId"`
	Action      string                 `json:"action"`
	Points      int64                  `json:"points"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata"`
	Timestamp   time.Time              `json:"timestamp"`
}

// UserScore is the per-user aggregate over all RewardEntry points.
// Version increases by one with every persisted award.
type UserScore struct {
	UserID      string `json:"userId"`
	TotalPoints int64  `json:"totalPoints"`
	Tier        string `json:"tier"`
	Version     int64  `json:"version"`
}
