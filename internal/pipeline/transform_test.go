package pipeline_test

import (
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/dvloznov/spend-insights/internal/pipeline"
	"github.com/shopspring/decimal"
)

func TestParseTransactionsJSON_Array(t *testing.T) {
	data := []byte(`[
		{"id": "t1", "date": "2024-01-05", "amount": 499, "merchant": "Netflix", "rawDescription": "NETFLIX.COM", "paymentMethod": "card"},
		{"transactionId": "t2", "date": "2024-01-06T10:30:00Z", "amount": "1,250.50", "vendor": "Salary", "type": "INCOME", "source": "CSV"}
	]`)

	txs, err := pipeline.ParseTransactionsJSON(data)
	if err != nil {
		t.Fatalf("ParseTransactionsJSON() error = %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("len(txs) = %d, want 2", len(txs))
	}

	first := txs[0]
	if first.ID != "t1" || first.Merchant != "Netflix" || first.RawDescription != "NETFLIX.COM" {
		t.Errorf("first = %+v", first)
	}
	if first.Date != (civil.Date{Year: 2024, Month: 1, Day: 5}) {
		t.Errorf("first.Date = %v", first.Date)
	}
	if !first.Amount.Equal(decimal.NewFromInt(499)) {
		t.Errorf("first.Amount = %s, want 499", first.Amount)
	}
	if first.Type != domain.TypeExpense {
		t.Errorf("first.Type = %q, want expense", first.Type)
	}
	if first.Source != pipeline.DefaultSource {
		t.Errorf("first.Source = %q, want %q", first.Source, pipeline.DefaultSource)
	}

	second := txs[1]
	if second.ID != "t2" || second.Merchant != "Salary" || second.Source != "CSV" {
		t.Errorf("second = %+v", second)
	}
	if second.Type != domain.TypeIncome {
		t.Errorf("second.Type = %q, want income", second.Type)
	}
	if second.Date != (civil.Date{Year: 2024, Month: 1, Day: 6}) {
		t.Errorf("second.Date = %v", second.Date)
	}
	if !second.Amount.Equal(decimal.RequireFromString("1250.50")) {
		t.Errorf("second.Amount = %s, want 1250.50", second.Amount)
	}
}

func TestParseTransactionsJSON_Wrapped(t *testing.T) {
	data := []byte(`{"transactions": [{"date": "2024-02-01", "amount": 12.5, "merchant": "Cafe", "rawText": "coffee", "category": "Food"}]}`)

	txs, err := pipeline.ParseTransactionsJSON(data)
	if err != nil {
		t.Fatalf("ParseTransactionsJSON() error = %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("len(txs) = %d, want 1", len(txs))
	}
	if txs[0].RawDescription != "coffee" || txs[0].Category != "Food" {
		t.Errorf("tx = %+v", txs[0])
	}
	if !txs[0].Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("Amount = %s, want 12.5", txs[0].Amount)
	}
}

func TestParseTransactionsJSON_Errors(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantField string
		wantIndex int
	}{
		{
			name:      "missing merchant",
			data:      `[{"date":"2024-01-01","amount":1,"merchant":"A"},{"date":"2024-01-02","amount":2}]`,
			wantField: "merchant",
			wantIndex: 1,
		},
		{
			name:      "blank merchant",
			data:      `[{"date":"2024-01-01","amount":1,"merchant":"  "}]`,
			wantField: "merchant",
		},
		{
			name:      "missing date",
			data:      `[{"amount":1,"merchant":"A"}]`,
			wantField: "date",
		},
		{
			name:      "bad date",
			data:      `[{"date":"01/02/2024","amount":1,"merchant":"A"}]`,
			wantField: "date",
		},
		{
			name:      "missing amount",
			data:      `[{"date":"2024-01-01","merchant":"A"}]`,
			wantField: "amount",
		},
		{
			name:      "bad amount",
			data:      `[{"date":"2024-01-01","amount":"lots","merchant":"A"}]`,
			wantField: "amount",
		},
		{
			name:      "record not an object",
			data:      `["nope"]`,
			wantField: "record",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs, err := pipeline.ParseTransactionsJSON([]byte(tt.data))
			if err == nil {
				t.Fatalf("expected error, got %d transactions", len(txs))
			}
			if !errors.Is(err, domain.ErrInvalidTransaction) {
				t.Fatalf("errors.Is(err, ErrInvalidTransaction) = false, err = %v", err)
			}
			var de *domain.DataError
			if !errors.As(err, &de) {
				t.Fatalf("error is not a DataError: %v", err)
			}
			if de.Field != tt.wantField || de.Index != tt.wantIndex {
				t.Errorf("DataError = {Index: %d, Field: %q}, want {Index: %d, Field: %q}", de.Index, de.Field, tt.wantIndex, tt.wantField)
			}
		})
	}
}

func TestParseTransactionsJSON_BadShape(t *testing.T) {
	for _, data := range []string{`not json`, `42`, `{"items": []}`, `{"transactions": "x"}`} {
		if _, err := pipeline.ParseTransactionsJSON([]byte(data)); err == nil {
			t.Errorf("ParseTransactionsJSON(%q) expected error", data)
		}
	}
}

func TestParseTransactionsCSV(t *testing.T) {
	data := []byte("date,amount,merchant,description,category,type\n" +
		"2024-01-05,499,Netflix,NETFLIX.COM,,\n" +
		"2024-01-06,\"2,000\",Employer,salary,,income\n")

	txs, err := pipeline.ParseTransactionsCSV(data)
	if err != nil {
		t.Fatalf("ParseTransactionsCSV() error = %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("len(txs) = %d, want 2", len(txs))
	}
	if txs[0].Merchant != "Netflix" || txs[0].RawDescription != "NETFLIX.COM" || txs[0].Category != "" {
		t.Errorf("txs[0] = %+v", txs[0])
	}
	if txs[0].Type != domain.TypeExpense {
		t.Errorf("txs[0].Type = %q, want expense", txs[0].Type)
	}
	if txs[1].Type != domain.TypeIncome || !txs[1].Amount.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("txs[1] = %+v", txs[1])
	}
}

func TestParseTransactionsCSV_Errors(t *testing.T) {
	data := []byte("date,amount,merchant\n2024-01-05,10,A\n2024-01-06,,B\n")

	_, err := pipeline.ParseTransactionsCSV(data)
	var de *domain.DataError
	if !errors.As(err, &de) {
		t.Fatalf("expected DataError, got %v", err)
	}
	if de.Index != 1 || de.Field != "amount" {
		t.Errorf("DataError = %+v, want index 1 amount", de)
	}
}

func TestParseTransactionsCSV_Empty(t *testing.T) {
	for _, data := range []string{"", "date,amount,merchant\n"} {
		txs, err := pipeline.ParseTransactionsCSV([]byte(data))
		if err != nil {
			t.Fatalf("ParseTransactionsCSV(%q) error = %v", data, err)
		}
		if txs == nil || len(txs) != 0 {
			t.Errorf("ParseTransactionsCSV(%q) = %v, want empty slice", data, txs)
		}
	}
}

func TestParseTransactions_PicksFormatByExtension(t *testing.T) {
	csvData := []byte("date,amount,merchant\n2024-01-05,10,A\n")
	if _, err := pipeline.ParseTransactions("export.CSV", csvData); err != nil {
		t.Errorf("ParseTransactions(.CSV) error = %v", err)
	}
	if _, err := pipeline.ParseTransactions("export.json", csvData); err == nil {
		t.Error("ParseTransactions(.json) with CSV content expected error")
	}
}
