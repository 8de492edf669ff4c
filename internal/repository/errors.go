package repository

import "errors"

var (
	ErrNotFound = errors.New("record not found")
	// ErrAlreadySent is returned when a mutation targets a rule whose
	// delivery has already been recorded; sent rules are immutable except
	// through manual retry.
	ErrAlreadySent = errors.New("reminder already sent")
)
