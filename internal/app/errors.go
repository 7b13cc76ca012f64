package service

import "errors"

var (
	// ErrBackpressure is returned when the command queue is full.
	ErrBackpressure = errors.New("command queue full")

	// ErrStopped is returned for commands submitted to a stopped service.
	ErrStopped = errors.New("service stopped")
)
