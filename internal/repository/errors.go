// Package repository defines errors shared by all storage implementations.
package repository

import "errors"

var (
	// ErrNotFound indicates that a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrQuotaExhausted indicates a guarded update refused because the
	// row's usage quota is already spent (or the row does not exist).
	ErrQuotaExhausted = errors.New("usage quota exhausted")
)
