package contracts

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDataAbsent signals that neither the store nor the provider holds rows
// for the requested key/range. Tolerant callers treat it as an empty result.
var ErrDataAbsent = errors.New("no data for requested key and range")

// TransientFetchError wraps a network or provider failure. It never
// invalidates rows that were already cached.
type TransientFetchError struct {
	Kind string
	Key  string
	Err  error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("transient fetch failure for %s[%s]: %v", e.Kind, e.Key, e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a transient provider failure
func IsTransient(err error) bool {
	var t *TransientFetchError
	return errors.As(err, &t)
}

// MalformedBatchError reports a provider batch that is missing required
// natural-key columns. The whole batch is rejected and nothing is written.
type MalformedBatchError struct {
	Kind    string
	Missing []string
	RowIdx  int
}

func (e *MalformedBatchError) Error() string {
	return fmt.Sprintf("malformed %s batch: row %d missing key column(s) %s",
		e.Kind, e.RowIdx, strings.Join(e.Missing, ", "))
}

// ValidateBatch checks that every row of a batch carries all natural-key
// columns with non-empty values.
func ValidateBatch(b Batch) error {
	for i, row := range b.Rows {
		var missing []string
		for _, col := range b.Kind.KeyColumns {
			if row.String(col) == "" {
				missing = append(missing, col)
			}
		}
		if len(missing) > 0 {
			return &MalformedBatchError{Kind: b.Kind.Name, Missing: missing, RowIdx: i}
		}
	}
	return nil
}

// SkipReason records why one entity was excluded from a ranking batch.
// A batch with skip records still succeeds for the remaining entities.
type SkipReason struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}
