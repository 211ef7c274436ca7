package bigquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/dvloznov/spend-insights/internal/logger"
	"github.com/dvloznov/spend-insights/internal/rewards"
	"google.golang.org/api/iterator"
)

const (
	// versionConflictMessage is raised by the ASSERT in the award script.
	versionConflictMessage = "score version conflict"

	defaultMaxAttempts = 5
	defaultRetryDelay  = 200 * time.Millisecond
)

// RewardStore implements rewards.Store on BigQuery. BigQuery has no row
// locks, so Mutate reads the user's state, then applies the award in a
// multi-statement transaction that asserts the score version is unchanged,
// and starts over when another writer got there first.
type RewardStore struct {
	client      *bigquery.Client
	ds          Dataset
	maxAttempts int
	retryDelay  time.Duration
}

// RewardStoreOption configures a RewardStore.
type RewardStoreOption func(*RewardStore)

// WithMaxAttempts bounds how often Mutate retries after a version conflict.
func WithMaxAttempts(n int) RewardStoreOption {
	return func(s *RewardStore) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the base delay between attempts. It doubles on each retry.
func WithRetryDelay(d time.Duration) RewardStoreOption {
	return func(s *RewardStore) {
		s.retryDelay = d
	}
}

// RewardStore returns a reward store sharing the repository's client.
func (r *Repository) RewardStore(opts ...RewardStoreOption) *RewardStore {
	return NewRewardStoreWithClient(r.client, r.ds, opts...)
}

// NewRewardStoreWithClient creates a reward store using the provided BigQuery client.
func NewRewardStoreWithClient(client *bigquery.Client, ds Dataset, opts ...RewardStoreOption) *RewardStore {
	s := &RewardStore{
		client:      client,
		ds:          ds,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mutate implements rewards.Store.
func (s *RewardStore) Mutate(ctx context.Context, userID string, fn rewards.MutateFunc) (domain.RewardEntry, domain.UserScore, error) {
	log := logger.FromContext(ctx)

	if userID == "" {
		return domain.RewardEntry{}, domain.UserScore{}, rewards.ErrEmptyUserID
	}

	delay := s.retryDelay
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		history, err := s.History(ctx, userID)
		if err != nil {
			return domain.RewardEntry{}, domain.UserScore{}, fmt.Errorf("Mutate: %w", err)
		}
		current, err := s.Score(ctx, userID)
		if err != nil {
			return domain.RewardEntry{}, domain.UserScore{}, fmt.Errorf("Mutate: %w", err)
		}

		entry, next, err := fn(history, current)
		if err != nil {
			return domain.RewardEntry{}, domain.UserScore{}, err
		}

		q, err := s.awardQuery(current.Version, entry, next)
		if err != nil {
			return domain.RewardEntry{}, domain.UserScore{}, fmt.Errorf("Mutate: %w", err)
		}

		err = runDML(ctx, q)
		if err == nil {
			return entry, next, nil
		}
		if !isConflict(err) {
			return domain.RewardEntry{}, domain.UserScore{}, fmt.Errorf("Mutate: applying award: %w", err)
		}

		log.Debug().
			Err(err).
			Str("user_id", userID).
			Int("attempt", attempt).
			Msg("Score changed concurrently, retrying award")

		if attempt == s.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return domain.RewardEntry{}, domain.UserScore{}, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return domain.RewardEntry{}, domain.UserScore{}, fmt.Errorf("Mutate: user %s after %d attempts: %w", userID, s.maxAttempts, rewards.ErrConflict)
}

// awardScript builds the transaction that appends one entry and moves the
// score from expected_version to version.
func awardScript(ds Dataset) string {
	return fmt.Sprintf(`
		BEGIN TRANSACTION;

		ASSERT (
			SELECT COALESCE(MAX(version), 0) FROM %[2]s WHERE user_id = @user_id
		) = @expected_version AS '%[3]s';

		INSERT INTO %[1]s (
			entry_id, user_id, seq, action, points,
			description, metadata, created_ts
		)
		VALUES (
			@entry_id, @user_id, @version, @action, @points,
			@description, PARSE_JSON(@metadata), @created_ts
		);

		MERGE %[2]s s
		USING (SELECT @user_id AS user_id) n
		ON s.user_id = n.user_id
		WHEN MATCHED THEN
			UPDATE SET total_points = @total_points, tier = @tier,
			           version = @version, updated_ts = CURRENT_TIMESTAMP()
		WHEN NOT MATCHED THEN
			INSERT (user_id, total_points, tier, version, updated_ts)
			VALUES (@user_id, @total_points, @tier, @version, CURRENT_TIMESTAMP());

		COMMIT TRANSACTION;
	`, ds.Table(rewardEntriesTable), ds.Table(userScoresTable), versionConflictMessage)
}

// awardParams binds the script parameters.
func awardParams(expected int64, entry domain.RewardEntry, next domain.UserScore) ([]bigquery.QueryParameter, error) {
	if next.Version != expected+1 {
		return nil, fmt.Errorf("version %d does not follow %d: %w", next.Version, expected, rewards.ErrConflict)
	}

	meta := entry.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	metadata, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}

	return []bigquery.QueryParameter{
		{Name: "user_id", Value: next.UserID},
		{Name: "expected_version", Value: expected},
		{Name: "entry_id", Value: entry.ID},
		{Name: "version", Value: next.Version},
		{Name: "action", Value: entry.Action},
		{Name: "points", Value: entry.Points},
		{Name: "description", Value: entry.Description},
		{Name: "metadata", Value: string(metadata)},
		{Name: "created_ts", Value: entry.Timestamp},
		{Name: "total_points", Value: next.TotalPoints},
		{Name: "tier", Value: next.Tier},
	}, nil
}

func (s *RewardStore) awardQuery(expected int64, entry domain.RewardEntry, next domain.UserScore) (*bigquery.Query, error) {
	params, err := awardParams(expected, entry, next)
	if err != nil {
		return nil, err
	}
	q := s.client.Query(awardScript(s.ds))
	q.Parameters = params
	return q, nil
}

// isConflict reports whether err means another writer changed the score
// first: either our ASSERT fired or BigQuery aborted a concurrent transaction.
func isConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, rewards.ErrConflict) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, versionConflictMessage) ||
		strings.Contains(msg, "concurrent update") ||
		strings.Contains(msg, "transaction is aborted")
}

// History implements rewards.Store.
func (s *RewardStore) History(ctx context.Context, userID string) ([]domain.RewardEntry, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT entry_id, user_id, seq, action, points, description, metadata, created_ts
		FROM %s
		WHERE user_id = @user_id
		ORDER BY seq
	`, s.ds.Table(rewardEntriesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("History: query read: %w", err)
	}

	entries := make([]domain.RewardEntry, 0)
	for {
		var row RewardEntryRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("History: iter next: %w", err)
		}
		entry, err := row.ToEntry()
		if err != nil {
			return nil, fmt.Errorf("History: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Score implements rewards.Store.
func (s *RewardStore) Score(ctx context.Context, userID string) (domain.UserScore, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT user_id, total_points, tier, version, updated_ts
		FROM %s
		WHERE user_id = @user_id
		LIMIT 1
	`, s.ds.Table(userScoresTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return domain.UserScore{}, fmt.Errorf("Score: query read: %w", err)
	}

	var row UserScoreRow
	err = it.Next(&row)
	if err == iterator.Done {
		return rewards.NewUserScore(userID), nil
	}
	if err != nil {
		return domain.UserScore{}, fmt.Errorf("Score: iter next: %w", err)
	}
	return row.ToScore(), nil
}

// Scores implements rewards.Store.
func (s *RewardStore) Scores(ctx context.Context) ([]domain.UserScore, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT user_id, total_points, tier, version, updated_ts
		FROM %s
	`, s.ds.Table(userScoresTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("Scores: query read: %w", err)
	}

	scores := make([]domain.UserScore, 0)
	for {
		var row UserScoreRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("Scores: iter next: %w", err)
		}
		scores = append(scores, row.ToScore())
	}
	return scores, nil
}

// Ensure RewardStore implements rewards.Store interface.
var _ rewards.Store = (*RewardStore)(nil)
