package permission

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/roles"
)

const defaultCacheSize = 1024

// Evaluator answers permission checks against a declarative definition
// catalog. It is safe for concurrent use and owns an LRU evaluation cache;
// replacing the catalog invalidates the whole cache.
type Evaluator struct {
	mu          sync.RWMutex
	version     uint64
	definitions map[string]Definition
	cache       *lru.Cache[string, Result]
	flags       FlagChecker
	clock       func() time.Time
	logger      *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithFlagChecker wires the feature evaluator used by feature-flag
// conditions. Without it such conditions always fail closed.
func WithFlagChecker(flags FlagChecker) Option {
	return func(e *Evaluator) { e.flags = flags }
}

// WithLogger sets the logger for condition diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = logger }
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Evaluator) { e.clock = clock }
}

// WithCacheSize sets the evaluation cache capacity.
func WithCacheSize(size int) Option {
	return func(e *Evaluator) {
		if size > 0 {
			cache, err := lru.New[string, Result](size)
			if err == nil {
				e.cache = cache
			}
		}
	}
}

// NewEvaluator creates an evaluator over the given definition catalog.
func NewEvaluator(definitions []Definition, opts ...Option) (*Evaluator, error) {
	cache, err := lru.New[string, Result](defaultCacheSize)
	if err != nil {
		return nil, err
	}

	e := &Evaluator{
		definitions: make(map[string]Definition, len(definitions)),
		cache:       cache,
		clock:       time.Now,
		logger:      slog.Default(),
	}
	for _, def := range definitions {
		e.definitions[def.ID] = def
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Check evaluates a single permission for the subject. The algorithm
// short-circuits in order: cache, direct grant, definition lookup, required
// roles, conditions. Checks never raise; they always return a Result with a
// reason so callers can render deterministically.
//
// The catalog version is captured before evaluating and checked again before
// the result is cached: a mutation landing in between has already purged the
// cache, and a result computed against the superseded catalog must not be
// inserted after that purge.
func (e *Evaluator) Check(permissionID string, subjectRoles []roles.Role, subjectPermissions []string, evalCtx map[string]any) Result {
	key := e.cacheKey(permissionID, subjectRoles, subjectPermissions, evalCtx)
	if cached, ok := e.cache.Get(key); ok {
		return cached
	}

	e.mu.RLock()
	version := e.version
	e.mu.RUnlock()

	result := e.evaluate(permissionID, subjectRoles, subjectPermissions, evalCtx)

	e.mu.RLock()
	if e.version == version {
		e.cache.Add(key, result)
	}
	e.mu.RUnlock()
	return result
}

// HasAny reports whether any of the given permissions is granted.
func (e *Evaluator) HasAny(permissionIDs []string, subjectRoles []roles.Role, subjectPermissions []string, evalCtx map[string]any) bool {
	for _, id := range permissionIDs {
		if e.Check(id, subjectRoles, subjectPermissions, evalCtx).Granted {
			return true
		}
	}
	return false
}

// HasAll reports whether all of the given permissions are granted.
func (e *Evaluator) HasAll(permissionIDs []string, subjectRoles []roles.Role, subjectPermissions []string, evalCtx map[string]any) bool {
	for _, id := range permissionIDs {
		if !e.Check(id, subjectRoles, subjectPermissions, evalCtx).Granted {
			return false
		}
	}
	return len(permissionIDs) > 0
}

// Definition returns the catalog entry for a permission id.
func (e *Evaluator) Definition(permissionID string) (Definition, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	def, ok := e.definitions[permissionID]
	return def, ok
}

// ReplaceDefinitions swaps the whole catalog and invalidates the evaluation
// cache before any subsequent read is served.
func (e *Evaluator) ReplaceDefinitions(definitions []Definition) {
	e.mu.Lock()
	e.definitions = make(map[string]Definition, len(definitions))
	for _, def := range definitions {
		e.definitions[def.ID] = def
	}
	e.version++
	e.cache.Purge()
	e.mu.Unlock()
	e.logger.Debug("permission catalog replaced", slog.Int("definitions", len(definitions)))
}

// InvalidateCache drops all cached results. Called when upstream role state
// changes so no check observes a superseded snapshot.
func (e *Evaluator) InvalidateCache() {
	e.mu.Lock()
	e.version++
	e.cache.Purge()
	e.mu.Unlock()
	e.logger.Debug("permission cache invalidated")
}

func (e *Evaluator) evaluate(permissionID string, subjectRoles []roles.Role, subjectPermissions []string, evalCtx map[string]any) Result {
	now := e.clock()
	result := Result{
		PermissionID: permissionID,
		EvaluatedAt:  now,
	}

	// Direct grants bypass the catalog entirely.
	if slices.Contains(subjectPermissions, permissionID) {
		result.Granted = true
		result.Reason = "direct grant"
		result.Provenance = ProvenanceDirect
		return result
	}

	e.mu.RLock()
	def, ok := e.definitions[permissionID]
	e.mu.RUnlock()
	if !ok {
		result.Reason = "permission not found"
		result.Provenance = ProvenanceDefault
		return result
	}

	if len(def.RequiredRoles) > 0 && !intersects(def.RequiredRoles, subjectRoles) {
		result.Reason = "insufficient role"
		result.Provenance = ProvenanceDefault
		result.MissingRoles = slices.Clone(def.RequiredRoles)
		return result
	}

	if len(def.Conditions) > 0 {
		input := ConditionInput{
			Roles:       subjectRoles,
			Permissions: subjectPermissions,
			Context:     evalCtx,
			Now:         now,
			Flags:       e.flags,
		}
		var failed []string
		for _, cond := range def.Conditions {
			held, description := CheckCondition(cond, input)
			result.Conditions = append(result.Conditions, description)
			if !held {
				failed = append(failed, description)
			}
		}
		if len(failed) > 0 {
			result.Reason = "conditions not met: " + strings.Join(failed, "; ")
			result.Provenance = ProvenanceDefault
			return result
		}
	}

	result.Granted = true
	result.Reason = "role-based grant"
	result.Provenance = ProvenanceRole
	return result
}

func intersects(required []roles.Role, subject []roles.Role) bool {
	for _, r := range required {
		if slices.Contains(subject, r) {
			return true
		}
	}
	return false
}

// cacheKey builds a deterministic key from the permission id, sorted roles,
// sorted direct grants, and sorted context entries. Inputs are copied before
// sorting so callers' slices are never mutated.
func (e *Evaluator) cacheKey(permissionID string, subjectRoles []roles.Role, subjectPermissions []string, evalCtx map[string]any) string {
	sortedRoles := make([]string, len(subjectRoles))
	for i, r := range subjectRoles {
		sortedRoles[i] = string(r)
	}
	slices.Sort(sortedRoles)

	sortedPerms := slices.Clone(subjectPermissions)
	slices.Sort(sortedPerms)

	ctxKeys := make([]string, 0, len(evalCtx))
	for k := range evalCtx {
		ctxKeys = append(ctxKeys, k)
	}
	slices.Sort(ctxKeys)

	var b strings.Builder
	b.WriteString(permissionID)
	b.WriteByte('|')
	b.WriteString(strings.Join(sortedRoles, ","))
	b.WriteByte('|')
	b.WriteString(strings.Join(sortedPerms, ","))
	b.WriteByte('|')
	for _, k := range ctxKeys {
		fmt.Fprintf(&b, "%s=%v;", k, evalCtx[k])
	}
	return b.String()
}
