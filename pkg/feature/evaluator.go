package feature

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/permission"
	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/roles"
)

const defaultCacheSize = 1024

// ScopeExtension customizes evaluation of context-scoped flags
// (user/organization/tenant). It receives the definition, the subject's
// roles and the evaluation context; returning false falls back to the
// catalog default.
type ScopeExtension func(def Definition, subjectRoles []roles.Role, evalCtx map[string]any) (Evaluation, bool)

// Evaluator owns the flag catalog, the override map and the evaluation
// cache. All three are process-wide shared state: every mutation (catalog
// update, override change) invalidates the whole cache before any subsequent
// read is served, so readers never observe an entry computed against a
// superseded catalog.
type Evaluator struct {
	mu         sync.RWMutex
	version    uint64
	catalog    map[string]Definition
	overrides  map[string]any
	cache      *lru.Cache[string, Evaluation]
	extensions map[FlagScope]ScopeExtension
	clock      func() time.Time
	logger     *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger for catalog and cache diagnostics.
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
			cache, err := lru.New[string, Evaluation](size)
			if err == nil {
				e.cache = cache
			}
		}
	}
}

// WithScopeExtension registers a custom evaluator for one context scope.
func WithScopeExtension(scope FlagScope, ext ScopeExtension) Option {
	return func(e *Evaluator) { e.extensions[scope] = ext }
}

// NewEvaluator creates an evaluator over the given flag catalog.
func NewEvaluator(definitions []Definition, opts ...Option) (*Evaluator, error) {
	cache, err := lru.New[string, Evaluation](defaultCacheSize)
	if err != nil {
		return nil, err
	}

	e := &Evaluator{
		catalog:    make(map[string]Definition, len(definitions)),
		overrides:  make(map[string]any),
		cache:      cache,
		extensions: make(map[FlagScope]ScopeExtension),
		clock:      time.Now,
		logger:     slog.Default(),
	}
	for _, def := range definitions {
		if def.Key == "" {
			return nil, ErrInvalidFlag
		}
		e.catalog[def.Key] = def
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Evaluate resolves a flag for the subject. Overrides bypass every other
// rule including status and expiry; inactive and expired flags disable with
// the default value; otherwise the flag's scope branch decides. Cyclic
// feature_flag conditions fail closed.
func (e *Evaluator) Evaluate(flagKey string, subjectRoles []roles.Role, subjectPermissions []string, evalCtx map[string]any) Evaluation {
	return e.resolve(flagKey, subjectRoles, subjectPermissions, evalCtx, make(map[string]struct{}))
}

// resolve is the cache-aware evaluation path. The catalog version is captured
// before evaluating and checked again before the result is cached: a mutation
// landing in between has already purged the cache, and a result computed
// against the superseded catalog must not be inserted after that purge.
// inFlight carries the keys being evaluated on this pass for cycle detection.
func (e *Evaluator) resolve(flagKey string, subjectRoles []roles.Role, subjectPermissions []string, evalCtx map[string]any, inFlight map[string]struct{}) Evaluation {
	key := e.cacheKey(flagKey, subjectRoles, subjectPermissions, evalCtx)
	if cached, ok := e.cache.Get(key); ok {
		return cached
	}

	e.mu.RLock()
	version := e.version
	e.mu.RUnlock()

	inFlight[flagKey] = struct{}{}
	evaluation := e.evaluate(flagKey, subjectRoles, subjectPermissions, evalCtx, inFlight)
	delete(inFlight, flagKey)

	e.mu.RLock()
	if e.version == version {
		e.cache.Add(key, evaluation)
	}
	e.mu.RUnlock()
	return evaluation
}

// reentrantChecker answers nested feature_flag conditions. A key already in
// flight on this pass is a cycle in the catalog; its condition fails closed
// instead of recursing.
type reentrantChecker struct {
	evaluator *Evaluator
	inFlight  map[string]struct{}
}

func (c reentrantChecker) Enabled(flagKey string, subjectRoles []roles.Role, subjectPermissions []string, evalCtx map[string]any) bool {
	if _, active := c.inFlight[flagKey]; active {
		c.evaluator.logger.Warn("cyclic feature flag condition, failing closed",
			slog.String("flag", flagKey))
		return false
	}
	return c.evaluator.resolve(flagKey, subjectRoles, subjectPermissions, evalCtx, c.inFlight).Enabled
}

// IsEnabled reports whether the flag resolves to enabled for the subject.
func (e *Evaluator) IsEnabled(flagKey string, subjectRoles []roles.Role, subjectPermissions []string, evalCtx map[string]any) bool {
	return e.Evaluate(flagKey, subjectRoles, subjectPermissions, evalCtx).Enabled
}

// Enabled implements permission.FlagChecker so permission conditions can
// delegate to flag state.
func (e *Evaluator) Enabled(flagKey string, subjectRoles []roles.Role, subjectPermissions []string, evalCtx map[string]any) bool {
	return e.IsEnabled(flagKey, subjectRoles, subjectPermissions, evalCtx)
}

// Value resolves the flag's value, returning fallback when the flag is
// unknown or resolves to a nil value.
func (e *Evaluator) Value(flagKey string, fallback any, subjectRoles []roles.Role, subjectPermissions []string, evalCtx map[string]any) any {
	evaluation := e.Evaluate(flagKey, subjectRoles, subjectPermissions, evalCtx)
	if evaluation.Value == nil {
		return fallback
	}
	return evaluation.Value
}

// UpdateFlags upserts the given definitions into the catalog by key and
// invalidates the entire evaluation cache. Invalidation is always total: a
// flag whose scope just changed must never be served from a stale entry.
func (e *Evaluator) UpdateFlags(definitions []Definition) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, def := range definitions {
		if def.Key == "" {
			return ErrInvalidFlag
		}
	}
	for _, def := range definitions {
		e.catalog[def.Key] = def
	}
	e.version++
	e.cache.Purge()
	e.logger.Debug("flag catalog updated", slog.Int("flags", len(definitions)))
	return nil
}

// SetOverride forces a flag to the given value until removed. Overrides take
// precedence over every computed rule.
func (e *Evaluator) SetOverride(flagKey string, value any) {
	e.mu.Lock()
	e.overrides[flagKey] = value
	e.version++
	e.cache.Purge()
	e.mu.Unlock()
	e.logger.Debug("flag override set", slog.String("flag", flagKey))
}

// RemoveOverride clears a single override.
func (e *Evaluator) RemoveOverride(flagKey string) {
	e.mu.Lock()
	delete(e.overrides, flagKey)
	e.version++
	e.cache.Purge()
	e.mu.Unlock()
	e.logger.Debug("flag override removed", slog.String("flag", flagKey))
}

// ClearOverrides clears all overrides.
func (e *Evaluator) ClearOverrides() {
	e.mu.Lock()
	e.overrides = make(map[string]any)
	e.version++
	e.cache.Purge()
	e.mu.Unlock()
	e.logger.Debug("flag overrides cleared")
}

// InvalidateCache drops all cached evaluations. Called when upstream role
// state changes.
func (e *Evaluator) InvalidateCache() {
	e.mu.Lock()
	e.version++
	e.cache.Purge()
	e.mu.Unlock()
	e.logger.Debug("flag cache invalidated")
}

// Flag returns the catalog entry for a key.
func (e *Evaluator) Flag(flagKey string) (Definition, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	def, ok := e.catalog[flagKey]
	if !ok {
		return Definition{}, ErrFlagNotFound
	}
	return def, nil
}

func (e *Evaluator) evaluate(flagKey string, subjectRoles []roles.Role, subjectPermissions []string, evalCtx map[string]any, inFlight map[string]struct{}) Evaluation {
	now := e.clock()
	evaluation := Evaluation{
		Key:         flagKey,
		EvaluatedAt: now,
	}

	e.mu.RLock()
	def, known := e.catalog[flagKey]
	override, overridden := e.overrides[flagKey]
	e.mu.RUnlock()

	if !known {
		evaluation.Reason = "flag not found"
		evaluation.Provenance = ProvenanceDefault
		evaluation.Value = false
		return evaluation
	}

	if overridden {
		evaluation.Enabled = truthy(override)
		evaluation.Value = override
		evaluation.Reason = "manual override"
		evaluation.Provenance = ProvenanceOverride
		return evaluation
	}

	if def.Status != StatusActive {
		evaluation.Reason = fmt.Sprintf("flag status is %s", def.Status)
		evaluation.Provenance = ProvenanceDefault
		evaluation.Value = def.DefaultValue
		return evaluation
	}

	if def.Expired(now) {
		evaluation.Reason = "expired"
		evaluation.Provenance = ProvenanceDefault
		evaluation.Value = def.DefaultValue
		return evaluation
	}

	if len(def.Conditions) > 0 {
		input := permission.ConditionInput{
			Roles:       subjectRoles,
			Permissions: subjectPermissions,
			Context:     evalCtx,
			Now:         now,
			Flags:       reentrantChecker{evaluator: e, inFlight: inFlight},
		}
		var failed []string
		for _, cond := range def.Conditions {
			held, description := permission.CheckCondition(cond, input)
			evaluation.Conditions = append(evaluation.Conditions, description)
			if !held {
				failed = append(failed, description)
			}
		}
		if len(failed) > 0 {
			evaluation.Reason = "conditions not met: " + strings.Join(failed, "; ")
			evaluation.Provenance = ProvenanceDefault
			evaluation.Value = false
			return evaluation
		}
	}

	return e.evaluateScope(def, evaluation, subjectRoles, subjectPermissions, evalCtx)
}

// evaluateScope branches on the flag's scope. The switch is exhaustive over
// the scope enumeration; an unknown scope disables the flag.
func (e *Evaluator) evaluateScope(def Definition, evaluation Evaluation, subjectRoles []roles.Role, subjectPermissions []string, evalCtx map[string]any) Evaluation {
	switch def.Scope {
	case ScopeGlobal:
		return e.evaluateGlobal(def, evaluation)

	case ScopeRole:
		if len(def.AllowedRoles) == 0 {
			return e.evaluateGlobal(def, evaluation)
		}
		matched := false
		for _, allowed := range def.AllowedRoles {
			if slices.Contains(subjectRoles, allowed) {
				matched = true
				break
			}
		}
		if matched && truthy(def.DefaultValue) {
			evaluation.Enabled = true
			evaluation.Value = def.DefaultValue
			evaluation.Reason = "allowed role matched"
			evaluation.Provenance = ProvenanceRole
			return evaluation
		}
		evaluation.Value = false
		evaluation.Provenance = ProvenanceRole
		if matched {
			evaluation.Reason = "role matched but default value is disabled"
		} else {
			evaluation.Reason = "no allowed role matched"
		}
		return evaluation

	case ScopePermission:
		if len(def.RequiredPermissions) == 0 {
			return e.evaluateGlobal(def, evaluation)
		}
		matched := false
		for _, required := range def.RequiredPermissions {
			if slices.Contains(subjectPermissions, required) {
				matched = true
				break
			}
		}
		if matched && truthy(def.DefaultValue) {
			evaluation.Enabled = true
			evaluation.Value = def.DefaultValue
			evaluation.Reason = "required permission matched"
			evaluation.Provenance = ProvenancePermission
			return evaluation
		}
		evaluation.Value = false
		evaluation.Provenance = ProvenancePermission
		if matched {
			evaluation.Reason = "permission matched but default value is disabled"
		} else {
			evaluation.Reason = "no required permission matched"
		}
		return evaluation

	case ScopeUser, ScopeOrganization, ScopeTenant:
		if ext, ok := e.extensions[def.Scope]; ok {
			if custom, handled := ext(def, subjectRoles, evalCtx); handled {
				return custom
			}
		}
		identifier := contextIdentifier(def.Scope, evalCtx)
		evaluation.Enabled = truthy(def.DefaultValue)
		evaluation.Value = def.DefaultValue
		evaluation.Reason = fmt.Sprintf("%s scope default for %q", def.Scope, identifier)
		evaluation.Provenance = ProvenanceDefault
		return evaluation

	default:
		evaluation.Value = false
		evaluation.Reason = fmt.Sprintf("unknown scope %q", def.Scope)
		evaluation.Provenance = ProvenanceDefault
		return evaluation
	}
}

func (e *Evaluator) evaluateGlobal(def Definition, evaluation Evaluation) Evaluation {
	evaluation.Enabled = truthy(def.DefaultValue)
	evaluation.Value = def.DefaultValue
	evaluation.Provenance = ProvenanceDefault
	if evaluation.Enabled {
		evaluation.Reason = "default value enabled"
	} else {
		evaluation.Reason = "default value disabled"
	}
	return evaluation
}

func contextIdentifier(scope FlagScope, evalCtx map[string]any) string {
	var key string
	switch scope {
	case ScopeUser:
		key = "user_id"
	case ScopeOrganization:
		key = "organization_id"
	case ScopeTenant:
		key = "tenant_id"
	default:
		return NoneSentinel
	}
	if evalCtx != nil {
		if v, ok := evalCtx[key]; ok {
			if s := fmt.Sprintf("%v", v); s != "" {
				return s
			}
		}
	}
	return NoneSentinel
}

// truthy interprets a flag value as an enablement signal: booleans as
// themselves, strings as non-empty and not "false"/"0", numbers as non-zero,
// and structured values as non-empty.
func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != "" && v != "false" && v != "0"
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case map[string]any:
		return len(v) > 0
	case []any:
		return len(v) > 0
	default:
		return true
	}
}

func (e *Evaluator) cacheKey(flagKey string, subjectRoles []roles.Role, subjectPermissions []string, evalCtx map[string]any) string {
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
	b.WriteString(flagKey)
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
