package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("submission already stored")
	ErrClosed    = errors.New("store closed")
)
