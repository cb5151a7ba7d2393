package question

import "errors"

// Sentinel errors for this package.
var (
	ErrInvalidQuestion = errors.New("invalid question")
	ErrLoadQuestions   = errors.New("load questions failed")
)
