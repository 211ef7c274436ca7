package pipeline

// Input locations and formats.
const (
	// SourceBigQuery loads the user's transactions from the BigQuery transactions table.
	SourceBigQuery = "bigquery"

	// ContentTypeJSON is used for uploaded reports.
	ContentTypeJSON = "application/json"

	// DefaultSource is recorded on transactions whose input does not name one.
	DefaultSource = "Manual"

	dateFormat = "2006-01-02"
)
