// Package apperr holds the sentinel errors shared across daybook layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidName   = errors.New("invalid entry name")
	ErrEmptyContent  = errors.New("content is empty")
)
