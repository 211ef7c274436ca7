package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/dvloznov/spend-insights/internal/logger"
	"github.com/dvloznov/spend-insights/internal/pipeline"
)

// ErrPermanent marks a job failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent job failure")

// NewAnalyzeHandler returns a JobHandler that runs the analysis pipeline for
// each AnalyzeJob and records the report summary on the job.
func NewAnalyzeHandler(deps pipeline.Deps) JobHandler {
	return func(ctx context.Context, job Job) error {
		aj, ok := job.(*AnalyzeJob)
		if !ok {
			return fmt.Errorf("analyze handler: unexpected job type %s: %w", job.GetType(), ErrPermanent)
		}

		log := logger.FromContext(ctx).With().
			Str("job_id", aj.JobID).
			Str("source", aj.Input.Source).
			Logger()

		report, err := pipeline.Analyze(logger.WithContext(ctx, log), deps, aj.Input)
		if err != nil {
			// Malformed input fails the same way on every attempt.
			if errors.Is(err, domain.ErrInvalidTransaction) {
				return fmt.Errorf("%w: %w", ErrPermanent, err)
			}
			return err
		}

		aj.ReportID = report.ReportID
		aj.Flags = len(report.WastefulExpenses)
		aj.Savings = report.TotalMonthlySavings.String()
		log.Info().
			Str("report_id", report.ReportID).
			Int("flags", aj.Flags).
			Msg("analysis job finished")
		return nil
	}
}
