package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
)

type AnalysisReportRow struct {
	ReportID            string    `bigquery:"report_id"`             // REQUIRED
	UserID              string    `bigquery:"user_id"`               // NULLABLE, empty for anonymous runs
	Source              string    `bigquery:"source"`                // REQUIRED input location
	TransactionCount    int64     `bigquery:"transaction_count"`     // REQUIRED
	SubscriptionCount   int64     `bigquery:"subscription_count"`    // REQUIRED
	FlagCount           int64     `bigquery:"flag_count"`            // REQUIRED
	TotalMonthlySavings *big.Rat  `bigquery:"total_monthly_savings"` // REQUIRED NUMERIC
	ReportJSON          string    `bigquery:"report"`                // REQUIRED JSON
	CreatedTS           time.Time `bigquery:"created_ts"`            // REQUIRED
}

// InsertAnalysisReport stores one analysis report.
func (r *Repository) InsertAnalysisReport(ctx context.Context, row *AnalysisReportRow) error {
	return InsertAnalysisReportWithClient(ctx, r.client, r.ds, row)
}

// InsertAnalysisReportWithClient stores one analysis report using the provided
// BigQuery client. Uses DML INSERT to avoid streaming buffer issues.
func InsertAnalysisReportWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, row *AnalysisReportRow) error {
	q := client.Query(fmt.Sprintf(`
		INSERT INTO %s (
			report_id, user_id, source,
			transaction_count, subscription_count, flag_count,
			total_monthly_savings, report, created_ts
		)
		VALUES (
			@report_id, NULLIF(@user_id, ''), @source,
			@transaction_count, @subscription_count, @flag_count,
			@total_monthly_savings, PARSE_JSON(@report), @created_ts
		)
	`, ds.Table(analysisReportsTable)))
	q.Parameters = analysisReportParams(row)

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertAnalysisReport: %w", err)
	}
	return nil
}

func analysisReportParams(row *AnalysisReportRow) []bigquery.QueryParameter {
	savings := row.TotalMonthlySavings
	if savings == nil {
		savings = new(big.Rat)
	}
	return []bigquery.QueryParameter{
		{Name: "report_id", Value: row.ReportID},
		{Name: "user_id", Value: row.UserID},
		{Name: "source", Value: row.Source},
		{Name: "transaction_count", Value: row.TransactionCount},
		{Name: "subscription_count", Value: row.SubscriptionCount},
		{Name: "flag_count", Value: row.FlagCount},
		{Name: "total_monthly_savings", Value: savings},
		{Name: "report", Value: row.ReportJSON},
		{Name: "created_ts", Value: row.CreatedTS},
	}
}
