package bigquery

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/spend-insights/internal/domain"
)

type RewardEntryRow struct {
	EntryID     string            `bigquery:"entry_id"`    // REQUIRED
	UserID      string            `bigquery:"user_id"`     // REQUIRED
	Seq         int64             `bigquery:"seq"`         // REQUIRED, score version after this entry
	Action      string            `bigquery:"action"`      // REQUIRED
	Points      int64             `bigquery:"points"`      // REQUIRED
	Description string            `bigquery:"description"` // REQUIRED
	Metadata    bigquery.NullJSON `bigquery:"metadata"`    // NULLABLE JSON
	CreatedTS   time.Time         `bigquery:"created_ts"`  // REQUIRED
}

type UserScoreRow struct {
	UserID      string                 `bigquery:"user_id"`      // REQUIRED
	TotalPoints int64                  `bigquery:"total_points"` // REQUIRED
	Tier        string                 `bigquery:"tier"`         // REQUIRED
	Version     int64                  `bigquery:"version"`      // REQUIRED
	UpdatedTS   bigquery.NullTimestamp `bigquery:"updated_ts"`   // NULLABLE
}

// ToEntry converts a stored row into the domain type. Numbers in metadata
// come back as json.Number.
func (r *RewardEntryRow) ToEntry() (domain.RewardEntry, error) {
	meta := make(map[string]interface{})
	if r.Metadata.Valid && strings.TrimSpace(r.Metadata.JSONVal) != "" {
		dec := json.NewDecoder(strings.NewReader(r.Metadata.JSONVal))
		dec.UseNumber()
		if err := dec.Decode(&meta); err != nil {
			return domain.RewardEntry{}, fmt.Errorf("entry %s: decoding metadata: %w", r.EntryID, err)
		}
	}

	return domain.RewardEntry{
		ID:          r.EntryID,
		UserID:      r.UserID,
		Action:      r.Action,
		Points:      r.Points,
		Description: r.Description,
		Metadata:    meta,
		Timestamp:   r.CreatedTS,
	}, nil
}

// ToScore converts a stored row into the domain type.
func (r *UserScoreRow) ToScore() domain.UserScore {
	return domain.UserScore{
		UserID:      r.UserID,
		TotalPoints: r.TotalPoints,
		Tier:        r.Tier,
		Version:     r.Version,
	}
}
