package pipeline

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/spend-insights/internal/domain"
	infra "github.com/dvloznov/spend-insights/internal/infra/bigquery"
)

// StorageService is an interface for Cloud Storage operations.
type StorageService interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
	UploadBytes(ctx context.Context, gcsURI string, data []byte, contentType string) error
}

// TransactionSource loads a user's stored transactions.
type TransactionSource interface {
	TransactionsByUser(ctx context.Context, userID string, from, to civil.Date) ([]domain.Transaction, error)
}

// TransactionSink stores a user's parsed transactions.
type TransactionSink interface {
	InsertTransactions(ctx context.Context, userID string, txs []domain.Transaction) error
}

// ReportSink persists analysis reports.
type ReportSink interface {
	InsertAnalysisReport(ctx context.Context, row *infra.AnalysisReportRow) error
}

// Categorizer assigns categories to a batch of transactions.
// This interface enables mocking of the entity-recognition fallback.
type Categorizer interface {
	CategorizeBatch(ctx context.Context, txs []domain.Transaction) ([]domain.Transaction, error)
}
