package repository

import "errors"

// Sentinel kinds for score store errors.
var (
	ErrInvalidEntry = errors.New("invalid score entry")
	ErrClosed       = errors.New("score store closed")
)
