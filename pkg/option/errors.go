package option

import "errors"

// Option layer errors.
var (
	ErrInvalidBlock   = errors.New("option: invalid block value")
	ErrInvalidObserve = errors.New("option: invalid observe value")
	ErrInvalidLength  = errors.New("option: value length out of range")
	ErrNotRepeatable  = errors.New("option: option is not repeatable")
)
