package models

import "errors"

// ErrNotFound is returned when a requested item or run does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidQuery is returned when query text is empty or k is out of range.
var ErrInvalidQuery = errors.New("invalid query")
