package pipeline_test

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/spend-insights/internal/domain"
	infra "github.com/dvloznov/spend-insights/internal/infra/bigquery"
)

// MockStorageService is a mock implementation of pipeline.StorageService.
type MockStorageService struct {
	FetchFromGCSFunc func(ctx context.Context, gcsURI string) ([]byte, error)
	UploadBytesFunc  func(ctx context.Context, gcsURI string, data []byte, contentType string) error
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	if m.FetchFromGCSFunc != nil {
		return m.FetchFromGCSFunc(ctx, gcsURI)
	}
	return nil, nil
}

func (m *MockStorageService) UploadBytes(ctx context.Context, gcsURI string, data []byte, contentType string) error {
	if m.UploadBytesFunc != nil {
		return m.UploadBytesFunc(ctx, gcsURI, data, contentType)
	}
	return nil
}

// MockTransactionSource is a mock implementation of pipeline.TransactionSource.
type MockTransactionSource struct {
	TransactionsByUserFunc func(ctx context.Context, userID string, from, to civil.Date) ([]domain.Transaction, error)
}

func (m *MockTransactionSource) TransactionsByUser(ctx context.Context, userID string, from, to civil.Date) ([]domain.Transaction, error) {
	if m.TransactionsByUserFunc != nil {
		return m.TransactionsByUserFunc(ctx, userID, from, to)
	}
	return nil, nil
}

// MockReportSink records inserted report rows.
type MockReportSink struct {
	Rows []*infra.AnalysisReportRow
	Err  error
}

func (m *MockReportSink) InsertAnalysisReport(ctx context.Context, row *infra.AnalysisReportRow) error {
	if m.Err != nil {
		return m.Err
	}
	m.Rows = append(m.Rows, row)
	return nil
}

// MockTransactionSink records stored transactions.
type MockTransactionSink struct {
	UserID string
	Txs    []domain.Transaction
	Err    error
}

func (m *MockTransactionSink) InsertTransactions(ctx context.Context, userID string, txs []domain.Transaction) error {
	if m.Err != nil {
		return m.Err
	}
	m.UserID = userID
	m.Txs = append(m.Txs, txs...)
	return nil
}
