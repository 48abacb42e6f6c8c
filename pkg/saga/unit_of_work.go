package saga

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Driver is the transaction boundary of the underlying persistence technology.
// The engine only needs begin/commit/rollback; everything else is the
// collaborator's concern.
type Driver interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// NoopDriver is the default driver for deployments whose operators manage
// their own durability.
type NoopDriver struct{}

func (NoopDriver) Begin(_ context.Context) error    { return nil }
func (NoopDriver) Commit(_ context.Context) error   { return nil }
func (NoopDriver) Rollback(_ context.Context) error { return nil }

// CompensationResult records one compensation attempt during rollback.
type CompensationResult struct {
	Description string
	Err         error
}

// UnitOfWork wraps one workflow run in a transaction boundary. Non-reentrant:
// Begin on an active unit fails with ErrTransactionAlreadyActive. Commit and
// Rollback on an inactive unit return ErrNoActiveTransaction but never panic.
type UnitOfWork struct {
	driver Driver
	logger *slog.Logger

	// mu guards the transaction context: parallel sub-steps register
	// compensations concurrently.
	mu     sync.Mutex
	tx     *TransactionContext
	active bool
}

func NewUnitOfWork(driver Driver, logger *slog.Logger) *UnitOfWork {
	if driver == nil {
		driver = NoopDriver{}
	}

	return &UnitOfWork{
		driver: driver,
		logger: logger.With("module", "unit_of_work"),
	}
}

// Transaction exposes the active transaction context, nil when inactive.
func (u *UnitOfWork) Transaction() *TransactionContext {
	return u.tx
}

func (u *UnitOfWork) Begin(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.active {
		return ErrTransactionAlreadyActive
	}

	err := u.driver.Begin(ctx)
	if err != nil {
		return err
	}

	u.tx = newTransactionContext()
	u.active = true

	u.logger.Debug("Transaction started", "transaction_id", u.tx.ID)

	return nil
}

func (u *UnitOfWork) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.active {
		return ErrNoActiveTransaction
	}

	err := u.driver.Commit(ctx)
	if err != nil {
		return err
	}

	u.active = false

	u.logger.Debug("Transaction committed", "transaction_id", u.tx.ID)

	return nil
}

// AddResource stores scratch state for the run.
func (u *UnitOfWork) AddResource(key string, value any) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.active {
		return ErrNoActiveTransaction
	}

	u.tx.addResource(key, value)

	return nil
}

func (u *UnitOfWork) Resource(key string) (any, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.active {
		return nil, false
	}

	return u.tx.resource(key)
}

// RegisterCompensation records a reversing action for a step that just
// succeeded with a side effect.
func (u *UnitOfWork) RegisterCompensation(action CompensationAction) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.active {
		return ErrNoActiveTransaction
	}

	u.tx.register(action)

	u.logger.Debug("Compensation registered",
		"transaction_id", u.tx.ID,
		"description", action.Description,
		"pending", len(u.tx.compensations))

	return nil
}

// Rollback reverses the run: the driver-level rollback first, then every
// registered compensation in exact reverse registration order. A compensation
// that fails is recorded and the sweep continues; a failed compensation never
// aborts the remaining rollback.
//
// The returned error is non-nil only for the severe case of the driver
// rollback itself failing, wrapped as a CriticalTransactionError.
func (u *UnitOfWork) Rollback(ctx context.Context) ([]CompensationResult, error) {
	u.mu.Lock()

	if !u.active {
		u.mu.Unlock()

		return nil, ErrNoActiveTransaction
	}

	u.active = false
	// Dispose nils u.tx under the lock; keep what the sweep needs local.
	transactionID := u.tx.ID
	actions := u.tx.drain()
	u.mu.Unlock()

	driverErr := u.driver.Rollback(ctx)
	if driverErr != nil {
		driverErr = &CriticalTransactionError{TransactionID: transactionID, Err: driverErr}
	}
	results := make([]CompensationResult, 0, len(actions))

	for _, action := range actions {
		err := action.Execute(ctx)
		if err != nil {
			u.logger.Error("Compensation failed, continuing rollback",
				"transaction_id", transactionID,
				"description", action.Description,
				"error", err)
		}

		results = append(results, CompensationResult{Description: action.Description, Err: err})
	}

	u.logger.Info("Rollback finished",
		"transaction_id", transactionID,
		"compensations", len(results))

	return results, driverErr
}

// Dispose releases the unit of work. An active transaction is rolled back
// first so no exit path leaves a run in an ambiguous state. Dispose is safe to
// call multiple times.
func (u *UnitOfWork) Dispose(ctx context.Context) {
	_, err := u.Rollback(ctx)
	if err != nil && !errors.Is(err, ErrNoActiveTransaction) {
		u.logger.Error("Rollback during dispose failed", "error", err)
	}

	u.mu.Lock()
	u.tx = nil
	u.mu.Unlock()
}
