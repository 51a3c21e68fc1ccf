package catalog

import "errors"

var (
	// ErrLoadFailed indicates the catalog file could not be read.
	ErrLoadFailed = errors.New("catalog.load_failed")

	// ErrInvalidCatalog indicates the catalog failed parsing or validation.
	ErrInvalidCatalog = errors.New("catalog.invalid")
)
