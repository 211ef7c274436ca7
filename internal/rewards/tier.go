package rewards

import "github.com/dvloznov/spend-insights/internal/domain"

// Inclusive lower bounds of each tier.
const (
	SilverThreshold   int64 = 500
	GoldThreshold     int64 = 1500
	PlatinumThreshold int64 = 3000
)

// TierFor maps a running points total to its tier, checking the highest tier first.
func TierFor(totalPoints int64) string {
	switch {
	case totalPoints >= PlatinumThreshold:
		return domain.TierPlatinum
	case totalPoints >= GoldThreshold:
		return domain.TierGold
	case totalPoints >= SilverThreshold:
		return domain.TierSilver
	default:
		return domain.TierBronze
	}
}
