package roles

import "context"

// Store persists detection snapshots between evaluation passes. Puts are
// last-write-wins guarded by the snapshot generation: an older snapshot must
// never overwrite a newer one that has already landed.
type Store interface {
	// Get returns the cached snapshot for a subject, or ErrSnapshotNotFound.
	Get(ctx context.Context, subjectID string) (Detection, error)

	// Put stores the snapshot unless a snapshot with a higher generation is
	// already present.
	Put(ctx context.Context, detection Detection) error

	// Delete removes the snapshot for a subject, e.g. on logout.
	Delete(ctx context.Context, subjectID string) error
}
