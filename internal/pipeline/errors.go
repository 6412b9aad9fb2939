package pipeline

import (
	"errors"
	"fmt"
)

// ErrCancelled signals that a cooperative cancellation check fired.
// The orchestrator translates it into a "cancelled" summary status
// instead of "failed".
var ErrCancelled = errors.New("pipeline cancelled")

// StoreError wraps failures from the pair store or the article
// catalog. It is fatal for the current stage and is never retried
// internally.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// ProcessorError wraps a stage failure, including the cancellation
// signal raised at a checkpoint.
type ProcessorError struct {
	Step Step
	Err  error
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("%s processor: %v", e.Step, e.Err)
}

func (e *ProcessorError) Unwrap() error {
	return e.Err
}

func processorErr(step Step, err error) error {
	return &ProcessorError{Step: step, Err: err}
}

func cancelledErr(step Step) error {
	return &ProcessorError{Step: step, Err: ErrCancelled}
}

// IsCancelled reports whether err originated from a cancellation check.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
