package saga

import (
	"errors"
	"fmt"
)

var (
	// ErrTransactionAlreadyActive indicates Begin was called on an active unit
	// of work.
	ErrTransactionAlreadyActive = errors.New("transaction already active")

	// ErrNoActiveTransaction indicates Commit or Rollback was called without an
	// active transaction.
	ErrNoActiveTransaction = errors.New("no active transaction")
)

// CriticalTransactionError is the most severe failure class: the driver-level
// rollback itself failed and the run requires manual operator intervention.
type CriticalTransactionError struct {
	TransactionID string
	Err           error
}

func (e *CriticalTransactionError) Error() string {
	return fmt.Sprintf("critical transaction failure for %s, manual intervention required: %v", e.TransactionID, e.Err)
}

func (e *CriticalTransactionError) Unwrap() error {
	return e.Err
}

// IsCriticalTransactionError reports whether err carries a driver-level
// rollback failure.
func IsCriticalTransactionError(err error) bool {
	var target *CriticalTransactionError

	return errors.As(err, &target)
}
