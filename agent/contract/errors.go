package contract

import "errors"

// Failures at the model boundary fail the turn without a commit.
var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
)

// Request and wiring errors; nothing is mutated when they are returned.
var (
	ErrValidation     = errors.New("validation failed")
	ErrInvalidMessage = errors.New("message is empty")
)
