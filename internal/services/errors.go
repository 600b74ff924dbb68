// internal/services/errors.go
package services

import "errors"

var (
	ErrStoreNotFound = errors.New("store not found")
	ErrInvalidStore  = errors.New("invalid store")
	ErrInvalidReview = errors.New("invalid review")
)

// ItemError is a per-unit failure inside a batch operation.
type ItemError struct {
	ID    uint64 `json:"id"`
	Error string `json:"error"`
}
