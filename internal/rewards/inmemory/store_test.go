package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/dvloznov/spend-insights/internal/rewards"
)

func addPoints(points int64) rewards.MutateFunc {
	return func(history []domain.RewardEntry, current domain.UserScore) (domain.RewardEntry, domain.UserScore, error) {
		entry := domain.RewardEntry{UserID: current.UserID, Action: "test", Points: points}
		total := current.TotalPoints + points
		return entry, domain.UserScore{
			UserID:      current.UserID,
			TotalPoints: total,
			Tier:        rewards.TierFor(total),
			Version:     current.Version + 1,
		}, nil
	}
}

func TestStore_MutateAndRead(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if _, _, err := s.Mutate(ctx, "u1", addPoints(300)); err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}
	_, score, err := s.Mutate(ctx, "u1", addPoints(250))
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}

	if score.TotalPoints != 550 || score.Tier != domain.TierSilver || score.Version != 2 {
		t.Errorf("score = %+v, want 550 Silver version 2", score)
	}

	history, err := s.History(ctx, "u1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Points != 300 || history[1].Points != 250 {
		t.Errorf("history = %+v, want [300 250] in append order", history)
	}

	stored, err := s.Score(ctx, "u1")
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if stored != score {
		t.Errorf("Score() = %+v, want %+v", stored, score)
	}
}

func TestStore_UnknownUser(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	score, err := s.Score(ctx, "ghost")
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if score != rewards.NewUserScore("ghost") {
		t.Errorf("Score() = %+v, want empty Bronze score", score)
	}

	history, err := s.History(ctx, "ghost")
	if err != nil || len(history) != 0 {
		t.Errorf("History() = %v, %v; want empty, nil", history, err)
	}

	scores, _ := s.Scores(ctx)
	if len(scores) != 0 {
		t.Errorf("reads created %d users, want 0", len(scores))
	}
}

func TestStore_FnErrorPersistsNothing(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	_, _, err := s.Mutate(ctx, "u1", func(h []domain.RewardEntry, c domain.UserScore) (domain.RewardEntry, domain.UserScore, error) {
		return domain.RewardEntry{}, domain.UserScore{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Mutate() error = %v, want %v", err, boom)
	}

	history, _ := s.History(ctx, "u1")
	if len(history) != 0 {
		t.Errorf("history has %d entries after failed mutate, want 0", len(history))
	}
}

func TestStore_RejectsStaleVersion(t *testing.T) {
	s := NewStore()
	_, _, err := s.Mutate(context.Background(), "u1", func(h []domain.RewardEntry, c domain.UserScore) (domain.RewardEntry, domain.UserScore, error) {
		return domain.RewardEntry{}, c, nil
	})
	if !errors.Is(err, rewards.ErrConflict) {
		t.Errorf("Mutate() error = %v, want ErrConflict", err)
	}
}

func TestStore_HistoryIsACopy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	s.Mutate(ctx, "u1", addPoints(10))

	history, _ := s.History(ctx, "u1")
	history[0].Points = 9999

	again, _ := s.History(ctx, "u1")
	if again[0].Points != 10 {
		t.Errorf("stored entry changed through returned slice: %d", again[0].Points)
	}
}

func TestStore_ConcurrentMutate(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		for _, user := range []string{"u1", "u2"} {
			wg.Add(1)
			go func(user string) {
				defer wg.Done()
				if _, _, err := s.Mutate(ctx, user, addPoints(7)); err != nil {
					t.Errorf("Mutate(%s) error = %v", user, err)
				}
			}(user)
		}
	}
	wg.Wait()

	for _, user := range []string{"u1", "u2"} {
		score, _ := s.Score(ctx, user)
		if score.TotalPoints != n*7 || score.Version != n {
			t.Errorf("%s score = %+v, want %d points at version %d", user, score, n*7, n)
		}
	}
}
