package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidTransaction is matched by every DataError via errors.Is.
var ErrInvalidTransaction = errors.New("invalid transaction")

// DataError reports a malformed transaction. Upstream parsing should have
// caught it; the analysis core rejects the whole batch instead of skipping.
type DataError struct {
	Index  int    // position in the batch, -1 when unknown
	Field  string // offending field
	Reason string
}

func (e *DataError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid transaction: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid transaction %d: %s: %s", e.Index, e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidTransaction) match any DataError.
func (e *DataError) Is(target error) bool {
	return target == ErrInvalidTransaction
}
