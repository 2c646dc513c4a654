package repositories

import "errors"

var (
	// ErrInsufficientStock is returned by the guarded decrement when the
	// product does not exist or has too little stock at execution time.
	ErrInsufficientStock = errors.New("repositories: insufficient stock")
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repositories: not found")
)
