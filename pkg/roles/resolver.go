package roles

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// Resolver turns a credential or a cached session snapshot into the
// authoritative Detection for a subject. Resolution order is token, then
// session cache, then remote fetch; successful resolutions are cached in the
// configured Store with a monotonically increasing generation so stale
// refreshes cannot overwrite newer data.
type Resolver struct {
	signingKey []byte
	store      Store
	fetcher    Fetcher
	logger     *slog.Logger
	strict     bool
	clock      func() time.Time
	generation atomic.Uint64
	group      singleflight.Group
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithStore sets the snapshot store. Defaults to an in-memory store with a
// 30 minute TTL.
func WithStore(store Store) ResolverOption {
	return func(r *Resolver) { r.store = store }
}

// WithFetcher sets the remote role fetcher used when token and session paths
// are unavailable.
func WithFetcher(fetcher Fetcher) ResolverOption {
	return func(r *Resolver) { r.fetcher = fetcher }
}

// WithLogger sets the logger used for fallback and refresh diagnostics.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

// WithStrictClaims rejects credentials carrying unrecognized role, scope or
// status values instead of degrading them to safe defaults.
func WithStrictClaims() ResolverOption {
	return func(r *Resolver) { r.strict = true }
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) ResolverOption {
	return func(r *Resolver) { r.clock = clock }
}

// NewResolver creates a resolver that verifies credentials with the given
// HMAC signing key.
func NewResolver(signingKey []byte, opts ...ResolverOption) (*Resolver, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}

	r := &Resolver{
		signingKey: signingKey,
		logger:     slog.Default(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.store == nil {
		r.store = NewMemoryStore(30 * time.Minute)
	}
	return r, nil
}

// ParseCredential decodes and verifies a signed credential, returning the
// subject's role assignments. Returns ErrInvalidCredential when the token is
// malformed, expired, or carries an invalid signature.
func (r *Resolver) ParseCredential(token string) ([]Assignment, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return r.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Join(ErrInvalidCredential, err)
	}

	return mapClaims(claims, r.strict, r.clock(), r.logger)
}

// ResolveCredential resolves a credential all the way to a Detection snapshot
// and caches it for reuse until the next refresh.
func (r *Resolver) ResolveCredential(ctx context.Context, token string) (Detection, error) {
	assignments, err := r.ParseCredential(token)
	if err != nil {
		return Detection{}, err
	}

	detection, err := aggregateAt(r.clock(), assignments)
	if err != nil {
		return Detection{}, err
	}
	detection.Generation = r.generation.Add(1)

	if err := r.store.Put(ctx, detection); err != nil {
		r.logger.Warn("failed to cache detection snapshot",
			slog.String("subject_id", detection.SubjectID), slog.Any("error", err))
	}
	return detection, nil
}

// Resolve returns the subject's Detection, preferring the cached session
// snapshot and falling through to a remote fetch when the cached snapshot is
// absent or fails the minimum shape check.
func (r *Resolver) Resolve(ctx context.Context, subjectID string) (Detection, error) {
	if cached, err := r.store.Get(ctx, subjectID); err == nil {
		if cached.Valid() {
			return cached, nil
		}
		r.logger.Warn("cached detection snapshot failed shape check, refetching",
			slog.String("subject_id", subjectID))
	}
	return r.fetchRemote(ctx, subjectID)
}

// Refresh bypasses the session cache and fetches fresh role state. On fetch
// failure it falls back to the last-known-good cached snapshot when one
// exists; otherwise the fetch error is returned and callers must deny.
func (r *Resolver) Refresh(ctx context.Context, subjectID string) (Detection, error) {
	detection, err := r.fetchRemote(ctx, subjectID)
	if err == nil {
		return detection, nil
	}

	cached, cacheErr := r.store.Get(ctx, subjectID)
	if cacheErr == nil && cached.Valid() {
		r.logger.Warn("role refresh failed, serving last-known-good snapshot",
			slog.String("subject_id", subjectID), slog.Any("error", err))
		return cached, nil
	}
	return Detection{}, err
}

// Invalidate drops the cached snapshot for a subject, e.g. on logout or
// credential change.
func (r *Resolver) Invalidate(ctx context.Context, subjectID string) error {
	return r.store.Delete(ctx, subjectID)
}

// fetchRemote performs the remote resolution path. Concurrent fetches for the
// same subject are collapsed into one request.
func (r *Resolver) fetchRemote(ctx context.Context, subjectID string) (Detection, error) {
	if r.fetcher == nil {
		return Detection{}, errors.Join(ErrRoleFetchFailed, ErrNoFetcher)
	}

	result, err, _ := r.group.Do(subjectID, func() (any, error) {
		detection, err := r.fetcher.FetchRoles(ctx, subjectID)
		if err != nil {
			return Detection{}, err
		}
		if detection.SubjectID == "" {
			detection.SubjectID = subjectID
		}
		if !detection.Valid() {
			return Detection{}, errors.Join(ErrRoleFetchFailed,
				errors.New("remote payload failed shape check"))
		}
		detection.Generation = r.generation.Add(1)
		if detection.ComputedAt.IsZero() {
			detection.ComputedAt = r.clock()
		}

		if err := r.store.Put(ctx, detection); err != nil {
			r.logger.Warn("failed to cache detection snapshot",
				slog.String("subject_id", subjectID), slog.Any("error", err))
		}
		return detection, nil
	})
	if err != nil {
		return Detection{}, err
	}
	return result.(Detection), nil
}
