package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrMatchIDRequired = errors.New("match id is required")
)
