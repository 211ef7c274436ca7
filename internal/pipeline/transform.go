package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/shopspring/decimal"
)

// Accepted spellings for each transaction field, first match wins.
var fieldAliases = map[string][]string{
	"id":             {"id", "transactionId", "transaction_id"},
	"date":           {"date", "transactionDate", "transaction_date"},
	"amount":         {"amount"},
	"merchant":       {"merchant", "vendor"},
	"rawDescription": {"rawDescription", "raw_description", "rawText", "description"},
	"category":       {"category"},
	"type":           {"type", "direction"},
	"paymentMethod":  {"paymentMethod", "payment_method"},
	"source":         {"source"},
}

// ParseTransactions decodes a transaction export. name is used to pick the
// format: ".csv" is parsed as CSV, anything else as JSON.
func ParseTransactions(name string, data []byte) ([]domain.Transaction, error) {
	if strings.EqualFold(path.Ext(name), ".csv") {
		return ParseTransactionsCSV(data)
	}
	return ParseTransactionsJSON(data)
}

// ParseTransactionsJSON decodes either a JSON array of transaction objects
// or an object holding one under "transactions".
func ParseTransactionsJSON(data []byte) ([]domain.Transaction, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("ParseTransactionsJSON: decoding: %w", err)
	}

	var items []interface{}
	switch v := raw.(type) {
	case []interface{}:
		items = v
	case map[string]interface{}:
		txAny, ok := v["transactions"]
		if !ok {
			return nil, fmt.Errorf("ParseTransactionsJSON: missing 'transactions' key")
		}
		if items, ok = txAny.([]interface{}); !ok {
			return nil, fmt.Errorf("ParseTransactionsJSON: 'transactions' is %T, want array", txAny)
		}
	default:
		return nil, fmt.Errorf("ParseTransactionsJSON: top level is %T, want array or object", raw)
	}

	result := make([]domain.Transaction, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, &domain.DataError{Index: i, Field: "record", Reason: fmt.Sprintf("is %T, want object", item)}
		}
		tx, err := transformRecord(i, obj)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, nil
}

// ParseTransactionsCSV decodes CSV with a header row naming the fields.
func ParseTransactionsCSV(data []byte) ([]domain.Transaction, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return []domain.Transaction{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ParseTransactionsCSV: reading header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var result []domain.Transaction
	for i := 0; ; i++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ParseTransactionsCSV: reading row %d: %w", i+1, err)
		}

		obj := make(map[string]interface{}, len(header))
		for j, name := range header {
			if j < len(record) && strings.TrimSpace(record[j]) != "" {
				obj[name] = record[j]
			}
		}
		tx, err := transformRecord(i, obj)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	if result == nil {
		result = []domain.Transaction{}
	}
	return result, nil
}

// transformRecord converts one decoded record. Missing date, amount or
// merchant is a DataError; the caller rejects the whole batch.
func transformRecord(i int, obj map[string]interface{}) (domain.Transaction, error) {
	dateVal, ok := lookup(obj, "date")
	if !ok {
		return domain.Transaction{}, &domain.DataError{Index: i, Field: "date", Reason: "missing"}
	}
	date, err := parseDate(dateVal)
	if err != nil {
		return domain.Transaction{}, &domain.DataError{Index: i, Field: "date", Reason: err.Error()}
	}

	amountVal, ok := lookup(obj, "amount")
	if !ok {
		return domain.Transaction{}, &domain.DataError{Index: i, Field: "amount", Reason: "missing"}
	}
	amount, err := parseAmount(amountVal)
	if err != nil {
		return domain.Transaction{}, &domain.DataError{Index: i, Field: "amount", Reason: err.Error()}
	}

	merchant := lookupString(obj, "merchant")
	if merchant == "" {
		return domain.Transaction{}, &domain.DataError{Index: i, Field: "merchant", Reason: "missing"}
	}

	txType := domain.TransactionType(strings.ToLower(lookupString(obj, "type")))
	if txType == "" {
		txType = domain.TypeExpense
	}

	source := lookupString(obj, "source")
	if source == "" {
		source = DefaultSource
	}

	return domain.Transaction{
		ID:             lookupString(obj, "id"),
		Date:           date,
		Amount:         amount,
		Merchant:       merchant,
		RawDescription: lookupString(obj, "rawDescription"),
		Category:       lookupString(obj, "category"),
		Type:           txType,
		PaymentMethod:  lookupString(obj, "paymentMethod"),
		Source:         source,
	}, nil
}

func lookup(obj map[string]interface{}, field string) (interface{}, bool) {
	for _, key := range fieldAliases[field] {
		if v, ok := obj[key]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v, true
		}
	}
	return nil, false
}

func lookupString(obj map[string]interface{}, field string) string {
	v, ok := lookup(obj, field)
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// parseDate accepts YYYY-MM-DD or an RFC 3339 timestamp, keeping only the day.
func parseDate(v interface{}) (civil.Date, error) {
	s, ok := v.(string)
	if !ok {
		return civil.Date{}, fmt.Errorf("has type %T, want string", v)
	}
	s = strings.TrimSpace(s)
	if d, err := civil.ParseDate(s); err == nil {
		return d, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return civil.DateOf(t), nil
	}
	return civil.Date{}, fmt.Errorf("%q is not %s or RFC 3339", s, dateFormat)
}

func parseAmount(v interface{}) (decimal.Decimal, error) {
	switch val := v.(type) {
	case json.Number:
		return decimal.NewFromString(val.String())
	case float64:
		return decimal.NewFromFloat(val), nil
	case string:
		s := strings.TrimSpace(val)
		s = strings.ReplaceAll(s, ",", "")
		return decimal.NewFromString(s)
	default:
		return decimal.Decimal{}, fmt.Errorf("has type %T, want number", v)
	}
}
