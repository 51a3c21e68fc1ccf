package guard

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/feature"
	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/permission"
	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/roles"
)

// Guard composes role, permission, feature-flag and custom checks into a
// single pass/fail decision with configurable fallback behavior. Decisions
// never panic or error; they always return a Result with a reason.
type Guard struct {
	permissions *permission.Evaluator
	flags       *feature.Evaluator
	logger      *slog.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithLogger sets the logger for predicate failure diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) { g.logger = logger }
}

// New creates a guard delegating permission checks and flag evaluations to
// the given evaluators.
func New(permissions *permission.Evaluator, flags *feature.Evaluator, opts ...Option) *Guard {
	g := &Guard{
		permissions: permissions,
		flags:       flags,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Decide evaluates one guard config against the subject context. A pass
// whose inputs are still loading stays pending: it is neither granted nor
// denied and must re-enter evaluation once inputs are ready.
func (g *Guard) Decide(cfg Config, gctx Context) Result {
	if gctx.Loading {
		return Result{
			State:  StatePending,
			Reason: "subject inputs are still loading",
		}
	}

	var result Result
	switch cfg.Type {
	case TypeRole:
		result = g.decideRoles(cfg, gctx)
	case TypePermission:
		result = g.decidePermissions(cfg, gctx)
	case TypeFeatureFlag:
		result = g.decideFlags(cfg, gctx)
	case TypeCustom:
		result = g.decideCustom(cfg, gctx)
	default:
		result = Result{Reason: fmt.Sprintf("unknown guard type %q", cfg.Type)}
	}

	if result.Granted {
		result.State = StateGranted
	} else {
		result.State = StateDenied
		result.Fallback = cfg.Fallback
		result.Message = cfg.Message
		result.RedirectURL = cfg.RedirectURL
	}
	return result
}

// DecideAll evaluates several configs and grants only when every one grants.
// The first pending or denied result is returned as-is.
func (g *Guard) DecideAll(cfgs []Config, gctx Context) Result {
	for _, cfg := range cfgs {
		result := g.Decide(cfg, gctx)
		if result.State != StateGranted {
			return result
		}
	}
	return Result{State: StateGranted, Granted: true, Reason: "all guards granted"}
}

// DecideAny evaluates several configs and grants when any one grants. A
// pending result short-circuits; otherwise the last denial is returned.
func (g *Guard) DecideAny(cfgs []Config, gctx Context) Result {
	last := Result{State: StateDenied, Reason: "no guards configured"}
	for _, cfg := range cfgs {
		result := g.Decide(cfg, gctx)
		if result.State == StateGranted || result.State == StatePending {
			return result
		}
		last = result
	}
	return last
}

func (g *Guard) decideRoles(cfg Config, gctx Context) Result {
	// Denied roles short-circuit regardless of level.
	for _, denied := range cfg.DeniedRoles {
		if slices.Contains(gctx.Roles, denied) {
			return Result{Reason: fmt.Sprintf("role %s is explicitly denied", denied)}
		}
	}

	if cfg.Level == LevelConditional {
		return g.runPredicate(cfg, gctx)
	}

	var missing []roles.Role
	matched := 0
	for _, required := range cfg.RequiredRoles {
		if slices.Contains(gctx.Roles, required) {
			matched++
		} else {
			missing = append(missing, required)
		}
	}

	switch {
	case len(cfg.RequiredRoles) == 0:
		return Result{Granted: true, Reason: "no roles required"}
	case cfg.Level == LevelPermissive && matched > 0:
		return Result{Granted: true, Reason: "required role matched"}
	case cfg.Level != LevelPermissive && len(missing) == 0:
		return Result{Granted: true, Reason: "all required roles matched"}
	}

	alternatives := make([]string, len(missing))
	for i, r := range missing {
		alternatives[i] = fmt.Sprintf("requires role %s", r)
	}
	return Result{
		Reason:       "missing required roles",
		MissingRoles: missing,
		Alternatives: alternatives,
	}
}

func (g *Guard) decidePermissions(cfg Config, gctx Context) Result {
	if cfg.Level == LevelConditional {
		return g.runPredicate(cfg, gctx)
	}
	if len(cfg.RequiredPermissions) == 0 {
		return Result{Granted: true, Reason: "no permissions required"}
	}

	var missing []string
	var alternatives []string
	matched := 0
	for _, id := range cfg.RequiredPermissions {
		check := g.permissions.Check(id, gctx.Roles, gctx.Permissions, gctx.Attributes)
		if check.Granted {
			matched++
			continue
		}
		missing = append(missing, id)
		for _, r := range check.MissingRoles {
			alternatives = append(alternatives, fmt.Sprintf("%s requires role %s", id, r))
		}
		if len(check.MissingRoles) == 0 {
			alternatives = append(alternatives, fmt.Sprintf("%s denied: %s", id, check.Reason))
		}
	}

	if (cfg.Level == LevelPermissive && matched > 0) || len(missing) == 0 {
		return Result{Granted: true, Reason: "required permissions granted"}
	}
	return Result{
		Reason:             "missing required permissions",
		MissingPermissions: missing,
		Alternatives:       alternatives,
	}
}

func (g *Guard) decideFlags(cfg Config, gctx Context) Result {
	if cfg.Level == LevelConditional {
		return g.runPredicate(cfg, gctx)
	}
	if len(cfg.RequiredFlags) == 0 {
		return Result{Granted: true, Reason: "no flags required"}
	}

	var missing []string
	var alternatives []string
	matched := 0
	for _, key := range cfg.RequiredFlags {
		evaluation := g.flags.Evaluate(key, gctx.Roles, gctx.Permissions, gctx.Attributes)
		if evaluation.Enabled {
			matched++
			continue
		}
		missing = append(missing, key)
		alternatives = append(alternatives, fmt.Sprintf("%s disabled: %s", key, evaluation.Reason))
	}

	if (cfg.Level == LevelPermissive && matched > 0) || len(missing) == 0 {
		return Result{Granted: true, Reason: "required flags enabled"}
	}
	return Result{
		Reason:       "required feature flags disabled",
		MissingFlags: missing,
		Alternatives: alternatives,
	}
}

func (g *Guard) decideCustom(cfg Config, gctx Context) Result {
	if cfg.Predicate == nil {
		return Result{Reason: "custom guard has no predicate"}
	}
	return g.runPredicate(cfg, gctx)
}

// runPredicate invokes the caller-supplied predicate. Panics and errors are
// contained and treated as deny; they must never propagate to the caller.
func (g *Guard) runPredicate(cfg Config, gctx Context) (result Result) {
	if cfg.Predicate == nil {
		return Result{Reason: "conditional guard has no predicate"}
	}

	defer func() {
		if r := recover(); r != nil {
			g.logger.Warn("guard predicate panicked", slog.Any("panic", r))
			result = Result{Reason: "predicate failed"}
		}
	}()

	granted, err := cfg.Predicate(gctx)
	if err != nil {
		g.logger.Warn("guard predicate returned error", slog.Any("error", err))
		return Result{Reason: "predicate failed"}
	}
	if granted {
		return Result{Granted: true, Reason: "predicate granted"}
	}
	return Result{Reason: "predicate denied"}
}
