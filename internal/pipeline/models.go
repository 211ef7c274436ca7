package pipeline

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/dvloznov/spend-insights/internal/waste"
	"github.com/shopspring/decimal"
)

// Input names what to analyse and where to put the result.
type Input struct {
	// Source is a local file path, a gs:// URI, or SourceBigQuery.
	Source string `json:"source"`

	// UserID owns the transactions. Required for SourceBigQuery.
	UserID string `json:"userId,omitempty"`

	// From and To bound BigQuery loads; zero dates leave the range open.
	From civil.Date `json:"from,omitempty"`
	To   civil.Date `json:"to,omitempty"`

	// Output is a local path or gs:// URI for the JSON report. Empty skips writing.
	Output string `json:"output,omitempty"`
}

// Summary is the dashboard view of a batch: totals and spend per category.
type Summary struct {
	Income     decimal.Decimal            `json:"income"`
	Expenses   decimal.Decimal            `json:"expenses"`
	Balance    decimal.Decimal            `json:"balance"`
	ByCategory map[string]decimal.Decimal `json:"byCategory"`
}

// Report is the result of one analysis run.
type Report struct {
	ReportID            string                `json:"reportId"`
	UserID              string                `json:"userId,omitempty"`
	Source              string                `json:"source"`
	GeneratedAt         time.Time             `json:"generatedAt"`
	Transactions        []domain.Transaction  `json:"transactions"`
	Subscriptions       []domain.Subscription `json:"subscriptions"`
	WastefulExpenses    []domain.WasteFlag    `json:"wastefulExpenses"`
	TotalMonthlySavings decimal.Decimal       `json:"potentialMonthlySavings"`
	Summary             Summary               `json:"summary"`
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Input         Input
	RawData       []byte
	Transactions  []domain.Transaction
	Subscriptions []domain.Subscription
	Waste         waste.Report
	Summary       Summary
	Report        *Report
}
