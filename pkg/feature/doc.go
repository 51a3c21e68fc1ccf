// Package feature evaluates feature flags with scoped rules and manual
// overrides.
//
// The Evaluator owns three pieces of process-wide shared state: the flag
// catalog (replaceable wholesale via UpdateFlags or the background Poller),
// the override map, and an LRU evaluation cache. Every mutation invalidates
// the entire cache before any subsequent read is served; partial
// invalidation is never attempted because a flag whose scope just changed
// must not be served from a stale entry.
//
// # Evaluation order
//
// An evaluation resolves, in order: cached result, unknown flag (disabled),
// manual override (bypasses every other rule including status and expiry),
// non-active status, expiry, conditions, then the scope branch. Role-based
// and permission-based scopes gate on the default value: a matching role or
// permission only enables the flag when the catalog default is truthy.
// User, organization and tenant scopes resolve the identifier from the
// evaluation context (falling back to the "none" sentinel) and return the
// catalog default unless the caller registered a ScopeExtension.
//
// Every Evaluation carries the resolved value, a reason, the conditions
// considered and provenance (default/role/permission/override/remote), so
// consumers can render and audit decisions without re-deriving them.
package feature
