package classroom

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError reports malformed caller input. Nothing was mutated.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// PreconditionError reports an operation attempted in the wrong state,
// such as sharing results before closing the question.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return e.Reason }

// NotFoundError reports a missing course, question, or archive.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string { return e.What + " not found" }

// RateLimitedError tells the caller how long to wait before retrying.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter)
}

// StoreError wraps a storage failure so transport code can tell
// infrastructure faults from domain errors.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string { return "store: " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

// classify wraps unexpected errors in StoreError while letting domain
// errors pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var (
		ve *ValidationError
		pe *PreconditionError
		nf *NotFoundError
		rl *RateLimitedError
		se *StoreError
	)
	if errors.As(err, &ve) || errors.As(err, &pe) || errors.As(err, &nf) ||
		errors.As(err, &rl) || errors.As(err, &se) {
		return err
	}
	return &StoreError{Err: err}
}
