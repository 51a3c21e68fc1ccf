package roles

import "errors"

var (
	// ErrInvalidCredential indicates the credential is malformed or not decodable.
	// Fatal to resolution; the caller must re-authenticate.
	ErrInvalidCredential = errors.New("roles.invalid_credential")

	// ErrNoActiveRoles indicates all assignments are inactive or expired.
	// Callers must treat the subject as unauthenticated.
	ErrNoActiveRoles = errors.New("roles.no_active_roles")

	// ErrRoleFetchFailed indicates the remote role endpoint returned a
	// non-success response. Recoverable; fall back to cached state.
	ErrRoleFetchFailed = errors.New("roles.fetch_failed")

	// ErrSnapshotNotFound indicates no cached detection snapshot exists.
	ErrSnapshotNotFound = errors.New("roles.snapshot_not_found")

	// ErrMissingSigningKey indicates the resolver was built without a key.
	ErrMissingSigningKey = errors.New("roles.missing_signing_key")

	// ErrNoFetcher indicates a remote resolution path was required but no
	// fetcher is configured.
	ErrNoFetcher = errors.New("roles.no_fetcher")
)
