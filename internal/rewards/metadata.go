package rewards

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Metadata keys read by the points rules.
const (
	MetaSubscriptionName = "subscription_name"
	MetaMonthlyCost      = "monthly_cost"
	MetaSavedAmount      = "saved_amount"
	MetaBudget           = "budget"
	MetaInvestmentAmount = "investment_amount"
	MetaInvestmentType   = "investment_type"
	MetaGoalName         = "goal_name"
)

// metaDecimal reads a numeric metadata value. Values arrive as Go numbers
// from callers and as float64 or json.Number after a JSON round trip.
func metaDecimal(meta map[string]interface{}, key string) (decimal.Decimal, bool) {
	v, ok := meta[key]
	if !ok || v == nil {
		return decimal.Zero, false
	}
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case uint:
		return fromString(strconv.FormatUint(uint64(n), 10))
	case uint32:
		return decimal.NewFromInt(int64(n)), true
	case uint64:
		return fromString(strconv.FormatUint(n, 10))
	case json.Number:
		return fromString(n.String())
	case string:
		return fromString(strings.TrimSpace(n))
	default:
		return decimal.Zero, false
	}
}

func fromString(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func metaString(meta map[string]interface{}, key, fallback string) string {
	if s, ok := meta[key].(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return fallback
}

func copyMetadata(meta map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
