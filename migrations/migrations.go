// Package migrations embeds the BigQuery schema migrations applied by cmd/migrate.
package migrations

import "embed"

// BigQuery holds files named NNNN_name.sql under bigquery/. They may use the
// {{PROJECT_ID}} and {{DATASET_ID}} placeholders.
//
//go:embed bigquery/*.sql
var BigQuery embed.FS
