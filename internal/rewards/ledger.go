// Package rewards keeps the append-only points ledger: it awards points for
// user actions, derives tiers and badges, and ranks users.
package rewards

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/dvloznov/spend-insights/internal/logger"
	"github.com/google/uuid"
)

// DefaultCurrencySymbol prefixes amounts in entry descriptions.
const DefaultCurrencySymbol = "₹"

// Ledger awards points and reads aggregate stats through a Store.
type Ledger struct {
	store    Store
	now      func() time.Time
	newID    func() string
	currency string
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithClock overrides the entry timestamp source.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithIDGenerator overrides the entry ID source.
func WithIDGenerator(newID func() string) LedgerOption {
	return func(l *Ledger) {
		l.newID = newID
	}
}

// WithCurrencySymbol sets the symbol used in entry descriptions.
func WithCurrencySymbol(symbol string) LedgerOption {
	return func(l *Ledger) {
		l.currency = symbol
	}
}

// NewLedger creates a Ledger on top of store.
func NewLedger(store Store, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store:    store,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		currency: DefaultCurrencySymbol,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Award records one action for userID and returns the appended entry.
// Unknown actions and inputs that earn nothing still append a zero-point
// entry; neither is an error.
func (l *Ledger) Award(ctx context.Context, userID, action string, metadata map[string]interface{}) (domain.RewardEntry, error) {
	log := logger.FromContext(ctx)

	if strings.TrimSpace(userID) == "" {
		return domain.RewardEntry{}, fmt.Errorf("Award: %w", ErrEmptyUserID)
	}
	if !IsKnownAction(action) {
		log.Warn().
			Str("user_id", userID).
			Str("action", action).
			Msg("No points rule for action, recording zero-point entry")
	}

	meta := copyMetadata(metadata)
	id := l.newID()
	ts := l.now()

	entry, score, err := l.store.Mutate(ctx, userID, func(history []domain.RewardEntry, current domain.UserScore) (domain.RewardEntry, domain.UserScore, error) {
		a := computeAward(action, meta, !hasAction(history, action), l.currency)

		entry := domain.RewardEntry{
			ID:          id,
			UserID:      userID,
			Action:      action,
			Points:      a.points,
			Description: a.description,
			Metadata:    meta,
			Timestamp:   ts,
		}

		total := current.TotalPoints + a.points
		next := domain.UserScore{
			UserID:      userID,
			TotalPoints: total,
			Tier:        TierFor(total),
			Version:     current.Version + 1,
		}
		return entry, next, nil
	})
	if err != nil {
		return domain.RewardEntry{}, fmt.Errorf("Award: storing %s for user %s: %w", action, userID, err)
	}

	log.Info().
		Str("user_id", userID).
		Str("action", action).
		Int64("points", entry.Points).
		Int64("total_points", score.TotalPoints).
		Str("tier", score.Tier).
		Msg("Points awarded")

	return entry, nil
}
