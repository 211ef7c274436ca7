package rewards

import "github.com/shopspring/decimal"

// InvestmentProjection estimates the points a recurring monthly investment
// would earn, excluding the one-time first investment bonus.
type InvestmentProjection struct {
	MonthlySavings  decimal.Decimal `json:"monthlySavings"`
	BasePoints      int64           `json:"basePoints"`
	InvestmentBonus int64           `json:"investmentBonus"`
	TotalPoints     int64           `json:"totalPoints"`
	Points6Months   int64           `json:"points6Months"`
	Points12Months  int64           `json:"points12Months"`
}

// ProjectInvestmentPoints applies the invest_savings formula to monthlySavings
// and extends it over six and twelve months.
func ProjectInvestmentPoints(monthlySavings decimal.Decimal) InvestmentProjection {
	base := nonNegative(basePoints(monthlySavings))
	total := nonNegative(investmentPoints(monthlySavings))
	return InvestmentProjection{
		MonthlySavings:  monthlySavings,
		BasePoints:      base,
		InvestmentBonus: total - base,
		TotalPoints:     total,
		Points6Months:   total * 6,
		Points12Months:  total * 12,
	}
}
