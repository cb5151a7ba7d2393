package repository

import "errors"

// Sentinel kinds for archive errors.
var (
	ErrInvalidResult = errors.New("invalid match result")
	ErrClosed        = errors.New("result store closed")
)
