package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

const (
	// FrequencyMonthly is the only recurrence class detected today.
	FrequencyMonthly = "monthly"

	// SubscriptionStatusActive is assigned to every detected subscription.
	SubscriptionStatusActive = "active"
)

// Subscription is a recurring charge derived from a merchant's transaction history.
// It is recomputed on every detection run and never diffed against earlier runs.
type Subscription struct {
	Service          string          `json:"service"`
	Amount           decimal.Decimal `json:"amount"` // mean of the group's amounts
	Frequency        string          `json:"frequency"`
	LastCharged      civil.Date      `json:"lastCharged"`
	Status           string          `json:"status"`
	TransactionCount int             `json:"transactionCount"`
}
