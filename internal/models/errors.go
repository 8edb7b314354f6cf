package models

import "errors"

// Shared error taxonomy. Handlers map these onto HTTP statuses; stores and
// services wrap them with context via fmt.Errorf and %w.
var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrInvalidStage        = errors.New("invalid stage")
	ErrAlreadyAcknowledged = errors.New("alert already acknowledged")
)
