package model

import "errors"

var (
	ErrMissingID        = errors.New("submission id is empty")
	ErrMissingDate      = errors.New("event date is empty")
	ErrBadDate          = errors.New("malformed calendar date")
	ErrPositionMismatch = errors.New("participant names and ids are not paired")
	ErrNegativeCount    = errors.New("count is negative")
	ErrWeekdayRange     = errors.New("weekday outside 0-6")
)
