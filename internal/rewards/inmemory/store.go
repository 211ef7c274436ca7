package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/dvloznov/spend-insights/internal/rewards"
)

// Store is an in-memory implementation of rewards.Store.
// Each user has their own lock, so awards for one user serialise while
// different users proceed in parallel. Data is lost on restart; use the
// sqlite or bigquery store for persistence.
type Store struct {
	mu    sync.RWMutex
	users map[string]*userLedger
}

type userLedger struct {
	mu      sync.Mutex
	history []domain.RewardEntry
	score   domain.UserScore
}

// NewStore creates a new in-memory reward store.
func NewStore() *Store {
	return &Store{
		users: make(map[string]*userLedger),
	}
}

// user returns the ledger for userID, creating it when create is set.
func (s *Store) user(userID string, create bool) *userLedger {
	s.mu.RLock()
	u, ok := s.users[userID]
	s.mu.RUnlock()
	if ok || !create {
		return u
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		return u
	}
	u = &userLedger{score: rewards.NewUserScore(userID)}
	s.users[userID] = u
	return u
}

// Mutate implements rewards.Store.
func (s *Store) Mutate(ctx context.Context, userID string, fn rewards.MutateFunc) (domain.RewardEntry, domain.UserScore, error) {
	if userID == "" {
		return domain.RewardEntry{}, domain.UserScore{}, rewards.ErrEmptyUserID
	}
	if err := ctx.Err(); err != nil {
		return domain.RewardEntry{}, domain.UserScore{}, err
	}

	u := s.user(userID, true)
	u.mu.Lock()
	defer u.mu.Unlock()

	entry, score, err := fn(copyHistory(u.history), u.score)
	if err != nil {
		return domain.RewardEntry{}, domain.UserScore{}, err
	}
	if score.Version != u.score.Version+1 {
		return domain.RewardEntry{}, domain.UserScore{}, fmt.Errorf("Mutate: version %d does not follow %d: %w", score.Version, u.score.Version, rewards.ErrConflict)
	}

	u.history = append(u.history, entry)
	u.score = score

	return entry, score, nil
}

// History implements rewards.Store.
func (s *Store) History(ctx context.Context, userID string) ([]domain.RewardEntry, error) {
	u := s.user(userID, false)
	if u == nil {
		return []domain.RewardEntry{}, nil
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	return copyHistory(u.history), nil
}

// Score implements rewards.Store.
func (s *Store) Score(ctx context.Context, userID string) (domain.UserScore, error) {
	u := s.user(userID, false)
	if u == nil {
		return rewards.NewUserScore(userID), nil
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	return u.score, nil
}

// Scores implements rewards.Store.
func (s *Store) Scores(ctx context.Context) ([]domain.UserScore, error) {
	s.mu.RLock()
	users := make([]*userLedger, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	s.mu.RUnlock()

	scores := make([]domain.UserScore, 0, len(users))
	for _, u := range users {
		u.mu.Lock()
		scores = append(scores, u.score)
		u.mu.Unlock()
	}
	return scores, nil
}

// copyHistory returns a copy so callers cannot modify stored entries.
func copyHistory(history []domain.RewardEntry) []domain.RewardEntry {
	out := make([]domain.RewardEntry, len(history))
	copy(out, history)
	return out
}

// Ensure Store implements rewards.Store interface.
var _ rewards.Store = (*Store)(nil)
