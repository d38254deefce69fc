package catalog

import "errors"

// Sentinel errors for the implementation catalog.
var (
	ErrNotFound      = errors.New("implementation not found")
	ErrAlreadyExists = errors.New("implementation already registered")
	ErrEmptyName     = errors.New("implementation name is empty")
	ErrNilFactory    = errors.New("implementation constructor is nil")
)
