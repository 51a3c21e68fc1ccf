package feature

import "errors"

var (
	// ErrFlagNotFound indicates the requested flag is absent from the
	// catalog. Evaluations resolve this to disabled; the error exists for
	// callers inspecting the catalog directly.
	ErrFlagNotFound = errors.New("feature.flag_not_found")

	// ErrInvalidFlag indicates a catalog entry is malformed.
	ErrInvalidFlag = errors.New("feature.invalid_flag")

	// ErrFlagFetchFailed indicates the remote flag endpoint returned a
	// non-success response. Recoverable; the last-known-good catalog stays
	// in service.
	ErrFlagFetchFailed = errors.New("feature.fetch_failed")
)
