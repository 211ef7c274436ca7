package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// Table names inside the configured dataset.
const (
	transactionsTable    = "transactions"
	rewardEntriesTable   = "reward_entries"
	userScoresTable      = "user_scores"
	analysisReportsTable = "analysis_reports"
)

// Dataset locates the tables this package reads and writes.
type Dataset struct {
	ProjectID string
	Name      string
}

// Table returns the fully qualified, backquoted name of table.
func (d Dataset) Table(table string) string {
	return "`" + d.ProjectID + "." + d.Name + "." + table + "`"
}

// Repository holds a shared BigQuery client for one dataset.
type Repository struct {
	client *bigquery.Client
	ds     Dataset
}

// NewRepository creates a BigQuery client for projectID and wraps it.
func NewRepository(ctx context.Context, projectID, dataset string) (*Repository, error) {
	if projectID == "" || dataset == "" {
		return nil, fmt.Errorf("NewRepository: project ID and dataset are required")
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{
		client: client,
		ds:     Dataset{ProjectID: projectID, Name: dataset},
	}, nil
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Dataset returns the dataset the repository targets.
func (r *Repository) Dataset() Dataset {
	return r.ds
}

// runDML runs a DML statement or script and waits for it to finish.
func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
