package exception

import "errors"

// Store cardinality errors. Expected-exactly-one reads abort the current
// cascade step; they never propagate past the event boundary.
var (
	ErrNotFound            = errors.New("store: record not found")
	ErrDuplicateRecord     = errors.New("store: record already exists")
	ErrMultipleMatches     = errors.New("store: multiple records matched, expected one")
	ErrPortfolioStatusGone = errors.New("store: portfolio status missing")
	ErrStoreNotEmpty       = errors.New("store: reconciled state present, journal replay refused")
)
