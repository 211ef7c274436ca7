// Package waste flags avoidable spending and estimates monthly savings.
package waste

import (
	"fmt"
	"strings"

	"github.com/dvloznov/spend-insights/internal/categorizer"
	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/shopspring/decimal"
)

// Rule thresholds.
const (
	// MaxGymUsage is the most fitness-merchant transactions an unused gym
	// subscription may show; its own billing charges count towards it.
	MaxGymUsage = 2

	// MinDuplicateStreaming is exceeded when streaming subscriptions overlap.
	MinDuplicateStreaming = 2

	// MinSmallFoodExpenses is exceeded when small food spend becomes a habit.
	MinSmallFoodExpenses = 20
)

const gymKeyword = "gym"

var (
	fitnessKeywords   = []string{"gym", "fitness", "yoga", "sports"}
	streamingKeywords = []string{"netflix", "hotstar", "amazon prime", "youtube"}
	gamblingKeywords  = []string{"dream11", "mpl", "paytm first games", "bet", "casino"}

	// SmallExpenseLimit is the exclusive upper bound for a small food expense.
	SmallExpenseLimit = decimal.NewFromInt(200)

	// SmallExpenseCut is the share of small food spend suggested as savings.
	SmallExpenseCut = decimal.RequireFromString("0.3")
)

// Report is the outcome of one analysis run.
type Report struct {
	Flags               []domain.WasteFlag `json:"flags"`
	TotalMonthlySavings decimal.Decimal    `json:"totalMonthlySavings"`
}

type rule func(txs []domain.Transaction, subs []domain.Subscription) []domain.WasteFlag

// rules run in this order and never suppress one another.
var rules = []rule{
	unusedGym,
	duplicateStreaming,
	smallFoodExpenses,
	gambling,
}

// Analyze evaluates every waste rule against the categorized transactions and
// detected subscriptions. It is pure and safe for concurrent use.
func Analyze(txs []domain.Transaction, subs []domain.Subscription) Report {
	report := Report{
		Flags:               make([]domain.WasteFlag, 0),
		TotalMonthlySavings: decimal.Zero,
	}
	for _, r := range rules {
		report.Flags = append(report.Flags, r(txs, subs)...)
	}
	for _, f := range report.Flags {
		report.TotalMonthlySavings = report.TotalMonthlySavings.Add(f.MonthlySavings)
	}
	return report
}

func unusedGym(txs []domain.Transaction, subs []domain.Subscription) []domain.WasteFlag {
	var flags []domain.WasteFlag
	usage := -1
	for _, sub := range subs {
		if !strings.Contains(strings.ToLower(sub.Service), gymKeyword) {
			continue
		}
		if usage < 0 {
			usage = countMatching(txs, fitnessKeywords)
		}
		if usage > MaxGymUsage {
			continue
		}
		flags = append(flags, domain.WasteFlag{
			Type:           domain.WasteUnusedSubscription,
			Service:        sub.Service,
			Amount:         sub.Amount,
			Reason:         "Gym membership with no usage",
			MonthlySavings: sub.Amount,
		})
	}
	return flags
}

func duplicateStreaming(_ []domain.Transaction, subs []domain.Subscription) []domain.WasteFlag {
	var streaming []domain.Subscription
	for _, sub := range subs {
		if containsAny(strings.ToLower(sub.Service), streamingKeywords) {
			streaming = append(streaming, sub)
		}
	}
	if len(streaming) <= MinDuplicateStreaming {
		return nil
	}

	names := make([]string, 0, len(streaming))
	total := decimal.Zero
	cheapest := streaming[0].Amount
	for _, sub := range streaming {
		names = append(names, sub.Service)
		total = total.Add(sub.Amount)
		cheapest = decimal.Min(cheapest, sub.Amount)
	}

	return []domain.WasteFlag{{
		Type:           domain.WasteDuplicateSubscription,
		Service:        strings.Join(names, ", "),
		Amount:         total,
		Reason:         fmt.Sprintf("Multiple streaming subscriptions (%d)", len(streaming)),
		MonthlySavings: cheapest,
	}}
}

func smallFoodExpenses(txs []domain.Transaction, _ []domain.Subscription) []domain.WasteFlag {
	count := 0
	total := decimal.Zero
	for _, tx := range txs {
		if tx.Category == categorizer.CategoryFood && tx.Amount.LessThan(SmallExpenseLimit) {
			count++
			total = total.Add(tx.Amount)
		}
	}
	if count <= MinSmallFoodExpenses {
		return nil
	}

	return []domain.WasteFlag{{
		Type:           domain.WasteSmallRepeatedExpenses,
		Service:        "Small food purchases",
		Amount:         total,
		Reason:         fmt.Sprintf("%d small food expenses", count),
		MonthlySavings: total.Mul(SmallExpenseCut),
	}}
}

func gambling(txs []domain.Transaction, _ []domain.Subscription) []domain.WasteFlag {
	count := 0
	total := decimal.Zero
	for _, tx := range txs {
		if containsAny(tx.MerchantKey(), gamblingKeywords) {
			count++
			total = total.Add(tx.Amount)
		}
	}
	if count == 0 {
		return nil
	}

	return []domain.WasteFlag{{
		Type:           domain.WasteGambling,
		Service:        "Gaming/Betting apps",
		Amount:         total,
		Reason:         fmt.Sprintf("%d gambling transactions", count),
		MonthlySavings: total,
	}}
}

func countMatching(txs []domain.Transaction, keywords []string) int {
	n := 0
	for _, tx := range txs {
		if containsAny(tx.MerchantKey(), keywords) {
			n++
		}
	}
	return n
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
