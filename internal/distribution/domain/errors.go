package domain

import "errors"

var (
	// ErrStoreFailure marks a relational or analytics query/transaction
	// failure during a distribution run.
	ErrStoreFailure = errors.New("store_failure")
)
