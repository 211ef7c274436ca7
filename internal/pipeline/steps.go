package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/dvloznov/spend-insights/internal/gcsuploader"
	infra "github.com/dvloznov/spend-insights/internal/infra/bigquery"
	"github.com/dvloznov/spend-insights/internal/logger"
	"github.com/dvloznov/spend-insights/internal/recurrence"
	"github.com/dvloznov/spend-insights/internal/waste"
	"github.com/google/uuid"
)

// PipelineStep represents a single step in the analysis pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// Step 1: LoadTransactionsStep reads the input from a file, Cloud Storage or BigQuery.
type LoadTransactionsStep struct {
	storage StorageService
	source  TransactionSource
}

func (s *LoadTransactionsStep) Name() string { return "load transactions" }

func (s *LoadTransactionsStep) Execute(ctx context.Context, state *PipelineState) error {
	in := state.Input
	log := logger.FromContext(ctx)

	switch {
	case in.Source == SourceBigQuery:
		if s.source == nil {
			return fmt.Errorf("LoadTransactions: no BigQuery transaction source configured")
		}
		if in.UserID == "" {
			return fmt.Errorf("LoadTransactions: user id is required for %s source", SourceBigQuery)
		}
		txs, err := s.source.TransactionsByUser(ctx, in.UserID, in.From, in.To)
		if err != nil {
			return fmt.Errorf("LoadTransactions: querying transactions: %w", err)
		}
		state.Transactions = txs

	case gcsuploader.IsGCSURI(in.Source):
		if s.storage == nil {
			return fmt.Errorf("LoadTransactions: no storage service configured for %s", in.Source)
		}
		data, err := s.storage.FetchFromGCS(ctx, in.Source)
		if err != nil {
			return fmt.Errorf("LoadTransactions: fetching %s: %w", in.Source, err)
		}
		state.RawData = data

	default:
		data, err := os.ReadFile(in.Source)
		if err != nil {
			return fmt.Errorf("LoadTransactions: reading %s: %w", in.Source, err)
		}
		state.RawData = data
	}

	if state.RawData != nil {
		txs, err := ParseTransactions(in.Source, state.RawData)
		if err != nil {
			return fmt.Errorf("LoadTransactions: parsing %s: %w", in.Source, err)
		}
		state.Transactions = txs
	}

	log.Debug().
		Str("source", in.Source).
		Int("transactions", len(state.Transactions)).
		Msg("loaded transactions")
	return nil
}

// Step 2: ValidateStep rejects the batch if any transaction is malformed.
type ValidateStep struct{}

func (s *ValidateStep) Name() string { return "validate" }

func (s *ValidateStep) Execute(ctx context.Context, state *PipelineState) error {
	return domain.ValidateTransactions(state.Transactions)
}

// Step 3: CategorizeStep assigns a category to every uncategorised transaction.
type CategorizeStep struct {
	categorizer Categorizer
}

func (s *CategorizeStep) Name() string { return "categorize" }

func (s *CategorizeStep) Execute(ctx context.Context, state *PipelineState) error {
	txs, err := s.categorizer.CategorizeBatch(ctx, state.Transactions)
	if err != nil {
		return err
	}
	state.Transactions = txs
	return nil
}

// Step 4: DetectSubscriptionsStep finds monthly recurring charges.
type DetectSubscriptionsStep struct{}

func (s *DetectSubscriptionsStep) Name() string { return "detect subscriptions" }

func (s *DetectSubscriptionsStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Subscriptions = recurrence.DetectSubscriptions(state.Transactions)
	return nil
}

// Step 5: AnalyzeWasteStep flags avoidable spending.
type AnalyzeWasteStep struct{}

func (s *AnalyzeWasteStep) Name() string { return "analyze waste" }

func (s *AnalyzeWasteStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Waste = waste.Analyze(state.Transactions, state.Subscriptions)
	return nil
}

// Step 6: SummarizeStep totals the batch and assembles the report.
type SummarizeStep struct {
	now   func() time.Time
	newID func() string
}

func (s *SummarizeStep) Name() string { return "summarize" }

func (s *SummarizeStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Summary = Summarize(state.Transactions)
	state.Report = &Report{
		ReportID:            s.newID(),
		UserID:              state.Input.UserID,
		Source:              state.Input.Source,
		GeneratedAt:         s.now().UTC(),
		Transactions:        state.Transactions,
		Subscriptions:       state.Subscriptions,
		WastefulExpenses:    state.Waste.Flags,
		TotalMonthlySavings: state.Waste.TotalMonthlySavings,
		Summary:             state.Summary,
	}
	if state.Report.WastefulExpenses == nil {
		state.Report.WastefulExpenses = []domain.WasteFlag{}
	}
	return nil
}

// Step 7: StoreReportStep writes the report JSON and records it in BigQuery.
type StoreReportStep struct {
	storage StorageService
	sink    ReportSink
}

func (s *StoreReportStep) Name() string { return "store report" }

func (s *StoreReportStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Report == nil {
		return fmt.Errorf("StoreReport: no report built")
	}
	out := state.Input.Output
	if out == "" && s.sink == nil {
		return nil
	}

	data, err := json.MarshalIndent(state.Report, "", "  ")
	if err != nil {
		return fmt.Errorf("StoreReport: marshaling report: %w", err)
	}

	switch {
	case out == "":
	case gcsuploader.IsGCSURI(out):
		if s.storage == nil {
			return fmt.Errorf("StoreReport: no storage service configured for %s", out)
		}
		if err := s.storage.UploadBytes(ctx, out, data, ContentTypeJSON); err != nil {
			return fmt.Errorf("StoreReport: uploading %s: %w", out, err)
		}
	default:
		if dir := filepath.Dir(out); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("StoreReport: creating %s: %w", dir, err)
			}
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("StoreReport: writing %s: %w", out, err)
		}
	}

	if s.sink != nil {
		if err := s.sink.InsertAnalysisReport(ctx, reportRow(state.Report, data)); err != nil {
			return fmt.Errorf("StoreReport: inserting report row: %w", err)
		}
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("report_id", state.Report.ReportID).
		Str("output", out).
		Int("flags", len(state.Report.WastefulExpenses)).
		Msg("stored analysis report")
	return nil
}

// StoreTransactionsStep writes the categorised transactions for the input's user.
type StoreTransactionsStep struct {
	sink TransactionSink
}

func (s *StoreTransactionsStep) Name() string { return "store transactions" }

func (s *StoreTransactionsStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := s.sink.InsertTransactions(ctx, state.Input.UserID, state.Transactions); err != nil {
		return fmt.Errorf("StoreTransactions: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().
		Str("user_id", state.Input.UserID).
		Int("transactions", len(state.Transactions)).
		Msg("stored transactions")
	return nil
}

func reportRow(r *Report, data []byte) *infra.AnalysisReportRow {
	return &infra.AnalysisReportRow{
		ReportID:            r.ReportID,
		UserID:              r.UserID,
		Source:              r.Source,
		TransactionCount:    int64(len(r.Transactions)),
		SubscriptionCount:   int64(len(r.Subscriptions)),
		FlagCount:           int64(len(r.WastefulExpenses)),
		TotalMonthlySavings: r.TotalMonthlySavings.Rat(),
		ReportJSON:          string(data),
		CreatedTS:           r.GeneratedAt,
	}
}

func defaultNow() time.Time { return time.Now() }

func defaultID() string { return uuid.NewString() }
