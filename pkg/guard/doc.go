// Package guard converts role, permission and feature-flag checks into a
// single grant/deny decision for a protected unit of UI or behavior.
//
// A guard Config declares what to check (guard type), how required items
// combine (strict = all, permissive = any, conditional = caller predicate)
// and what the consumer should render on deny (advisory fallback metadata;
// the guard itself never redirects or renders). Denied results carry the
// missing roles, permissions or flags plus human-readable alternatives so
// the rendering layer never fails silently.
//
// Within one evaluation pass a decision moves pending -> evaluating ->
// granted|denied. A pass that starts while subject inputs are still loading
// stays pending and must be re-entered once inputs are ready; pending is
// never a cached denial.
package guard
