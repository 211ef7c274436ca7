// Package pipeline runs one analysis over a batch of transactions: load,
// validate, categorise, detect subscriptions, flag waste, summarise and store.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/spend-insights/internal/domain"
)

// Deps are the collaborators the analysis pipeline needs. Storage, Source and
// Sink may be nil when the input and output do not use them.
type Deps struct {
	Categorizer Categorizer
	Storage     StorageService
	Source      TransactionSource
	Sink        ReportSink
	Store       TransactionSink

	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
	}
	return nil
}

// NewAnalysisPipeline creates the standard 7-step analysis pipeline.
func NewAnalysisPipeline(deps Deps) *Pipeline {
	now, newID := deps.Now, deps.NewID
	if now == nil {
		now = defaultNow
	}
	if newID == nil {
		newID = defaultID
	}
	return NewPipeline(
		&LoadTransactionsStep{storage: deps.Storage, source: deps.Source},
		&ValidateStep{},
		&CategorizeStep{categorizer: deps.Categorizer},
		&DetectSubscriptionsStep{},
		&AnalyzeWasteStep{},
		&SummarizeStep{now: now, newID: newID},
		&StoreReportStep{storage: deps.Storage, sink: deps.Sink},
	)
}

// NewImportPipeline creates the pipeline that loads an export, categorises it
// and stores the transactions for later BigQuery-sourced analysis.
func NewImportPipeline(deps Deps) *Pipeline {
	return NewPipeline(
		&LoadTransactionsStep{storage: deps.Storage, source: deps.Source},
		&ValidateStep{},
		&CategorizeStep{categorizer: deps.Categorizer},
		&StoreTransactionsStep{sink: deps.Store},
	)
}

// Import loads in.Source and stores its transactions under in.UserID.
// It returns the stored transactions.
func Import(ctx context.Context, deps Deps, in Input) ([]domain.Transaction, error) {
	if deps.Categorizer == nil {
		return nil, fmt.Errorf("Import: categorizer is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("Import: transaction store is required")
	}
	if in.UserID == "" {
		return nil, fmt.Errorf("Import: user id is required")
	}
	if in.Source == SourceBigQuery {
		return nil, fmt.Errorf("Import: cannot import from %s", SourceBigQuery)
	}
	state := &PipelineState{Input: in}
	if err := NewImportPipeline(deps).Execute(ctx, state); err != nil {
		return nil, err
	}
	return state.Transactions, nil
}

// Analyze runs the analysis pipeline for one input and returns its report.
func Analyze(ctx context.Context, deps Deps, in Input) (*Report, error) {
	if deps.Categorizer == nil {
		return nil, fmt.Errorf("Analyze: categorizer is required")
	}
	state := &PipelineState{Input: in}
	if err := NewAnalysisPipeline(deps).Execute(ctx, state); err != nil {
		return nil, err
	}
	return state.Report, nil
}
