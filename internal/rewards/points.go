package rewards

import (
	"fmt"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/shopspring/decimal"
)

// Fixed point values.
const (
	CancelBasePoints          int64 = 50
	FirstCancelBonus          int64 = 100
	FirstInvestmentBonus      int64 = 150
	WeeklyStreakPoints        int64 = 25
	MonthlyGoalAchievedPoints int64 = 200
)

var (
	ten     = decimal.NewFromInt(10)
	hundred = decimal.NewFromInt(100)

	// InvestmentMultiplier scales base investment points.
	InvestmentMultiplier = decimal.RequireFromString("1.2")
)

// award is the outcome of one points rule.
type award struct {
	points      int64
	description string
	known       bool
}

// IsKnownAction reports whether action has a points rule.
func IsKnownAction(action string) bool {
	switch action {
	case domain.ActionCancelSubscription,
		domain.ActionMeetSavingsTarget,
		domain.ActionInvestSavings,
		domain.ActionWeeklyStreak,
		domain.ActionMonthlyGoalAchieved:
		return true
	}
	return false
}

// computeAward applies the points rule for action. first reports whether
// the user has no earlier entry with the same action.
func computeAward(action string, meta map[string]interface{}, first bool, currency string) award {
	switch action {
	case domain.ActionCancelSubscription:
		cost, _ := metaDecimal(meta, MetaMonthlyCost)
		name := metaString(meta, MetaSubscriptionName, "subscription")
		a := award{
			points:      nonNegative(CancelBasePoints + cost.Div(ten).Floor().IntPart()),
			description: fmt.Sprintf("Canceled %s subscription", name),
			known:       true,
		}
		if first {
			a.points += FirstCancelBonus
			a.description += " (First cancellation bonus!)"
		}
		return a

	case domain.ActionMeetSavingsTarget:
		saved, _ := metaDecimal(meta, MetaSavedAmount)
		// No budget means no percentage to score, so the award is zero points
		// instead of treating the budget as 1.
		budget, ok := metaDecimal(meta, MetaBudget)
		percent := decimal.Zero
		var points int64
		if ok && budget.IsPositive() {
			percent = saved.Mul(hundred).Div(budget)
			// QuoRem keeps the integer quotient exact; negative savings clamp to zero.
			q, _ := saved.Mul(hundred).Mul(ten).QuoRem(budget, 0)
			points = nonNegative(q.IntPart())
		}
		return award{
			points:      points,
			description: fmt.Sprintf("Saved %s%% of monthly budget (%s%s)", percent.StringFixed(1), currency, saved.String()),
			known:       true,
		}

	case domain.ActionInvestSavings:
		amount, _ := metaDecimal(meta, MetaInvestmentAmount)
		kind := metaString(meta, MetaInvestmentType, "investment")
		a := award{
			points:      nonNegative(investmentPoints(amount)),
			description: fmt.Sprintf("Invested %s%s in %s", currency, amount.String(), kind),
			known:       true,
		}
		if first {
			a.points += FirstInvestmentBonus
			a.description += " (First investment bonus!)"
		}
		return a

	case domain.ActionWeeklyStreak:
		return award{points: WeeklyStreakPoints, description: "Maintained 7-day tracking streak", known: true}

	case domain.ActionMonthlyGoalAchieved:
		goal := metaString(meta, MetaGoalName, "goal")
		return award{points: MonthlyGoalAchievedPoints, description: fmt.Sprintf("Achieved monthly goal: %s", goal), known: true}
	}

	return award{description: fmt.Sprintf("No points rule for action %q", action)}
}

// basePoints is floor(amount / 10).
func basePoints(amount decimal.Decimal) int64 {
	return amount.Div(ten).Floor().IntPart()
}

// investmentPoints is floor(floor(amount / 10) * 1.2).
func investmentPoints(amount decimal.Decimal) int64 {
	return decimal.NewFromInt(basePoints(amount)).Mul(InvestmentMultiplier).Floor().IntPart()
}

func nonNegative(p int64) int64 {
	if p < 0 {
		return 0
	}
	return p
}

func hasAction(history []domain.RewardEntry, action string) bool {
	for _, e := range history {
		if e.Action == action {
			return true
		}
	}
	return false
}
