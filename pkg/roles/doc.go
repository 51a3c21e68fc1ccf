// Package roles resolves and aggregates platform role assignments.
//
// A subject's roles arrive either as a signed credential, a cached session
// snapshot, or a remote fetch. The Resolver normalizes all three paths into
// immutable Assignment values and Aggregate collapses the active set into a
// single Detection snapshot: primary role by fixed priority, unioned
// permission ids, role-switching capability and scope context.
//
// # Resolution paths
//
// The token path decodes the credential's custom claims, degrading
// unrecognized role/scope/status strings to safe defaults (user/tenant/active)
// rather than rejecting the credential. Every fallback is logged and recorded
// in the assignment metadata; WithStrictClaims switches to rejection instead.
//
// The session path trusts a previously cached Detection only after a minimum
// shape check. Anything else falls through to the remote path, which applies
// a bounded timeout and a circuit breaker, and collapses concurrent fetches
// for the same subject into one request.
//
// # Consistency
//
// Snapshots carry a monotonically increasing generation. Stores refuse to let
// an older generation overwrite a newer one, so a refresh that completes
// after a later refresh has already landed is discarded.
//
// Usage:
//
//	resolver, err := roles.NewResolver(signingKey,
//		roles.WithFetcher(roles.NewHTTPFetcher(endpoint, 5*time.Second)),
//	)
//	if err != nil {
//		return err
//	}
//
//	detection, err := resolver.ResolveCredential(ctx, token)
//	switch {
//	case errors.Is(err, roles.ErrInvalidCredential):
//		// re-authenticate
//	case errors.Is(err, roles.ErrNoActiveRoles):
//		// treat as unauthenticated
//	}
package roles
