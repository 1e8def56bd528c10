package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized: the caller does not own the target resource.
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	// ErrStore wraps failures of the atomic unit itself; nothing was persisted.
	ErrStore = errors.New("store failure")
	// ErrNoTransactions is the failure result of a bulk delete that matched nothing.
	ErrNoTransactions = fmt.Errorf("%w: no transactions found", ErrNotFound)
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// classify leaves domain errors intact and tags everything else as a store
// failure.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrValidation), errors.Is(err, ErrStore):
		return err
	}
	return fmt.Errorf("%w: %v", ErrStore, err)
}
