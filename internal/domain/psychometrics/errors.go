package psychometrics

import "errors"

// Sentinel error kinds for this package.
var (
	ErrIllegalState    = errors.New("illegal item state")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownItem     = errors.New("unknown item")
)
