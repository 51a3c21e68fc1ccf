// Package permission evaluates fine-grained permission checks against a
// declarative definition catalog.
//
// A check short-circuits in a fixed order: cached result, direct grant,
// catalog lookup, required-role intersection, then conditions. Every outcome
// is a Result carrying the reason, provenance and the conditions considered;
// checks never panic or return errors, so callers can render decisions
// deterministically. Denied results list the missing roles as alternatives.
//
// Conditions gate a permission on runtime state: tenant or organization
// membership, wall-clock windows, feature flags (delegated through the
// FlagChecker interface), or custom context keys. Malformed condition data
// is treated as a failed condition.
//
// Results are cached in an LRU keyed by the full check input; replacing the
// catalog or invalidating the cache drops everything at once so no stale
// decision survives a rule change.
package permission
