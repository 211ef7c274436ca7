package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/dvloznov/spend-insights/internal/rewards"
)

// Store implements rewards.Store on SQLite. Every Mutate runs in one
// IMMEDIATE transaction, so awards are serialised across processes sharing
// the file as well as within one.
type Store struct {
	db *sql.DB
}

// NewStore wraps an already migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Mutate implements rewards.Store.
func (s *Store) Mutate(ctx context.Context, userID string, fn rewards.MutateFunc) (domain.RewardEntry, domain.UserScore, error) {
	if userID == "" {
		return domain.RewardEntry{}, domain.UserScore{}, rewards.ErrEmptyUserID
	}

	var entry domain.RewardEntry
	var next domain.UserScore
	err := WithTx(ctx, s.db, func(tx *sql.Tx) error {
		history, err := history(ctx, tx, userID)
		if err != nil {
			return err
		}
		current, err := score(ctx, tx, userID)
		if err != nil {
			return err
		}

		entry, next, err = fn(history, current)
		if err != nil {
			return err
		}

		if err := insertEntry(ctx, tx, entry); err != nil {
			return err
		}
		return saveScore(ctx, tx, current.Version, next)
	})
	if err != nil {
		return domain.RewardEntry{}, domain.UserScore{}, fmt.Errorf("Mutate: %w", err)
	}
	return entry, next, nil
}

// History implements rewards.Store.
func (s *Store) History(ctx context.Context, userID string) ([]domain.RewardEntry, error) {
	entries, err := history(ctx, s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("History: %w", err)
	}
	return entries, nil
}

// Score implements rewards.Store.
func (s *Store) Score(ctx context.Context, userID string) (domain.UserScore, error) {
	sc, err := score(ctx, s.db, userID)
	if err != nil {
		return domain.UserScore{}, fmt.Errorf("Score: %w", err)
	}
	return sc, nil
}

// Scores implements rewards.Store.
func (s *Store) Scores(ctx context.Context) ([]domain.UserScore, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, total_points, tier, version FROM user_scores`)
	if err != nil {
		return nil, fmt.Errorf("Scores: querying user_scores: %w", err)
	}
	defer rows.Close()

	scores := make([]domain.UserScore, 0)
	for rows.Next() {
		var sc domain.UserScore
		if err := rows.Scan(&sc.UserID, &sc.TotalPoints, &sc.Tier, &sc.Version); err != nil {
			return nil, fmt.Errorf("Scores: scanning row: %w", err)
		}
		scores = append(scores, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Scores: iterating rows: %w", err)
	}
	return scores, nil
}

func history(ctx context.Context, q querier, userID string) ([]domain.RewardEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, action, points, description, metadata, created_at
		FROM reward_entries
		WHERE user_id = ?
		ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying reward_entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.RewardEntry, 0)
	for rows.Next() {
		var (
			e        domain.RewardEntry
			metadata string
			created  string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Points, &e.Description, &metadata, &created); err != nil {
			return nil, fmt.Errorf("scanning reward entry: %w", err)
		}
		if e.Metadata, err = decodeMetadata(metadata); err != nil {
			return nil, fmt.Errorf("reward entry %s: %w", e.ID, err)
		}
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("reward entry %s: parsing created_at: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reward entries: %w", err)
	}
	return entries, nil
}

func score(ctx context.Context, q querier, userID string) (domain.UserScore, error) {
	sc := domain.UserScore{UserID: userID}
	err := q.QueryRowContext(ctx,
		`SELECT total_points, tier, version FROM user_scores WHERE user_id = ?`, userID,
	).Scan(&sc.TotalPoints, &sc.Tier, &sc.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return rewards.NewUserScore(userID), nil
	}
	if err != nil {
		return domain.UserScore{}, fmt.Errorf("querying user_scores: %w", err)
	}
	return sc, nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, e domain.RewardEntry) error {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if e.Metadata == nil {
		metadata = []byte("{}")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reward_entries (id, user_id, action, points, description, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Action, e.Points, e.Description, string(metadata),
		e.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting reward entry: %w", err)
	}
	return nil
}

// saveScore writes next only if the stored version still equals expected.
func saveScore(ctx context.Context, tx *sql.Tx, expected int64, next domain.UserScore) error {
	if next.Version != expected+1 {
		return fmt.Errorf("version %d does not follow %d: %w", next.Version, expected, rewards.ErrConflict)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	var (
		res sql.Result
		err error
	)
	if expected == 0 {
		res, err = tx.ExecContext(ctx, `
			INSERT INTO user_scores (user_id, total_points, tier, version, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO NOTHING`,
			next.UserID, next.TotalPoints, next.Tier, next.Version, now)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE user_scores
			SET total_points = ?, tier = ?, version = ?, updated_at = ?
			WHERE user_id = ? AND version = ?`,
			next.TotalPoints, next.Tier, next.Version, now, next.UserID, expected)
	}
	if err != nil {
		return fmt.Errorf("saving user score: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("saving user score: %w", err)
	}
	if n != 1 {
		return rewards.ErrConflict
	}
	return nil
}

func decodeMetadata(raw string) (map[string]interface{}, error) {
	meta := make(map[string]interface{})
	if strings.TrimSpace(raw) == "" {
		return meta, nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&meta); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return meta, nil
}

// Ensure Store implements rewards.Store interface.
var _ rewards.Store = (*Store)(nil)
