// Package engine composes role resolution, permission evaluation, feature
// flags and access guards into the platform's authorization facade.
//
// One Engine is constructed per process and shared by reference. It owns the
// process-wide evaluators and their caches; subjects are represented by
// Sessions, each bound to a single Detection snapshot so all checks within
// an evaluation pass observe consistent role state. Snapshots are replaced
// wholesale on refresh, guarded by a generation counter: a refresh that
// completes after a newer one has landed is discarded.
//
// With a broadcaster configured, every mutation (role refresh, override
// change, flag update, logout) is published, and updates from sibling
// processes are merged in, so multiple tabs or processes for one subject
// converge on the same decisions.
//
// Typical wiring:
//
//	flags, _ := feature.NewEvaluator(cat.Flags)
//	perms, _ := permission.NewEvaluator(cat.Permissions, permission.WithFlagChecker(flags))
//	resolver, _ := roles.NewResolver(signingKey)
//
//	eng := engine.New(resolver, perms, flags)
//	defer eng.Close()
//
//	session, err := eng.Authenticate(ctx, token)
//	if err != nil {
//		// ErrInvalidCredential: re-authenticate; ErrNoActiveRoles: unauthenticated
//	}
//	if session.IsEnabled("app_bulk_submission") {
//		// ...
//	}
package engine
