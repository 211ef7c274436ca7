package rewards

import (
	"context"
	"errors"

	"github.com/dvloznov/spend-insights/internal/domain"
)

var (
	// ErrEmptyUserID is returned when an operation is given a blank user ID.
	ErrEmptyUserID = errors.New("user ID is required")

	// ErrConflict is returned by optimistic stores that could not apply an
	// award after exhausting their retries.
	ErrConflict = errors.New("concurrent score update conflict")
)

// MutateFunc derives the next ledger entry and score from a user's full
// history and current score. Stores may call it more than once when they
// retry, so it must not have side effects.
type MutateFunc func(history []domain.RewardEntry, current domain.UserScore) (domain.RewardEntry, domain.UserScore, error)

// Store persists reward entries and per-user scores.
//
// Mutate must serialise calls for the same user so that fn always sees the
// latest history and score, and must persist the returned entry and score
// together or not at all. Calls for different users may run in parallel.
type Store interface {
	// Mutate runs fn against the user's state and persists its result.
	Mutate(ctx context.Context, userID string, fn MutateFunc) (domain.RewardEntry, domain.UserScore, error)

	// History returns the user's entries in the order they were appended.
	History(ctx context.Context, userID string) ([]domain.RewardEntry, error)

	// Score returns the user's score, or NewUserScore(userID) if the user
	// has never been awarded anything.
	Score(ctx context.Context, userID string) (domain.UserScore, error)

	// Scores returns every stored score in no particular order.
	Scores(ctx context.Context) ([]domain.UserScore, error)
}

// NewUserScore is the score of a user with an empty ledger.
func NewUserScore(userID string) domain.UserScore {
	return domain.UserScore{
		UserID: userID,
		Tier:   TierFor(0),
	}
}
