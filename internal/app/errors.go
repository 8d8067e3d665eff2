package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrSessionBusy  = errors.New("session is being scored elsewhere")
	ErrStrategy     = errors.New("scoring strategy failed")
	ErrInvalidInput = errors.New("invalid input")
)
