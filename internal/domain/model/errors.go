package model

import "errors"

// Sentinel errors shared by the contest engines. Callers test with errors.Is.
var (
	// ErrInvalidInput marks malformed user input: non-numeric scores, bad
	// durations, duplicate names.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration marks operations issued before a contest is set up.
	ErrConfiguration = errors.New("contest not configured")

	// ErrNotFound marks references to unknown competitors or routes.
	ErrNotFound = errors.New("not found")
)
