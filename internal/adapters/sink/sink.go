// Package sink writes the materialized reporting tables to their external
// destination.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/f3peakcity/f3-bot/internal/domain/report"
)

// TableSink replaces whole reporting tables. Replace is all-or-nothing: when
// it returns an error no table observed by readers has changed.
type TableSink interface {
	Replace(ctx context.Context, tables ...report.Table) error
}

// Error classes. Transient failures may succeed on retry.
var (
	ErrTransient = errors.New("transient sink failure")
	ErrPermanent = errors.New("permanent sink failure")
)

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// Permanent marks err as not retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsTransient reports whether err should be retried. Context errors and
// unclassified errors are not.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, ErrTransient) && !errors.Is(err, ErrPermanent)
}
