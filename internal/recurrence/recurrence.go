// Package recurrence detects monthly subscriptions in a transaction history.
package recurrence

import (
	"sort"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/shopspring/decimal"
)

// Monthly gap bounds in days, both inclusive.
const (
	MinMonthlyGap = 25
	MaxMonthlyGap = 35
)

// merchantGroup holds the transactions that share one case-folded merchant.
type merchantGroup struct {
	key string
	txs []domain.Transaction
}

// DetectSubscriptions returns one active monthly subscription per merchant
// whose charges are all between MinMonthlyGap and MaxMonthlyGap days apart.
// Results follow the order in which merchants first appear in txs.
// Amounts are averaged and never compared, so irregular amounts still qualify.
func DetectSubscriptions(txs []domain.Transaction) []domain.Subscription {
	subs := make([]domain.Subscription, 0)
	for _, g := range groupByMerchant(txs) {
		if sub, ok := detect(g); ok {
			subs = append(subs, sub)
		}
	}
	return subs
}

func groupByMerchant(txs []domain.Transaction) []*merchantGroup {
	index := make(map[string]*merchantGroup)
	var groups []*merchantGroup
	for _, tx := range txs {
		key := tx.MerchantKey()
		g, ok := index[key]
		if !ok {
			g = &merchantGroup{key: key}
			index[key] = g
			groups = append(groups, g)
		}
		g.txs = append(g.txs, tx)
	}
	return groups
}

func detect(g *merchantGroup) (domain.Subscription, bool) {
	if len(g.txs) < 2 {
		return domain.Subscription{}, false
	}

	sorted := make([]domain.Transaction, len(g.txs))
	copy(sorted, g.txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	for _, gap := range dayGaps(sorted) {
		if gap < MinMonthlyGap || gap > MaxMonthlyGap {
			return domain.Subscription{}, false
		}
	}

	return domain.Subscription{
		Service:          sorted[0].Merchant,
		Amount:           meanAmount(sorted),
		Frequency:        domain.FrequencyMonthly,
		LastCharged:      sorted[len(sorted)-1].Date,
		Status:           domain.SubscriptionStatusActive,
		TransactionCount: len(sorted),
	}, true
}

// dayGaps expects txs sorted by date.
func dayGaps(txs []domain.Transaction) []int {
	gaps := make([]int, 0, len(txs)-1)
	for i := 1; i < len(txs); i++ {
		gaps = append(gaps, txs[i].Date.DaysSince(txs[i-1].Date))
	}
	return gaps
}

func meanAmount(txs []domain.Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range txs {
		sum = sum.Add(tx.Amount)
	}
	return sum.Div(decimal.NewFromInt(int64(len(txs))))
}
