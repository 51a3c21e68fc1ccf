package guard

import (
	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/roles"
)

// Type selects which check a guard performs.
type Type string

const (
	TypeRole        Type = "role"
	TypePermission  Type = "permission"
	TypeFeatureFlag Type = "feature_flag"
	TypeCustom      Type = "custom"
)

// Level controls how multiple required items combine.
type Level string

const (
	// LevelStrict requires all required items to hold.
	LevelStrict Level = "strict"
	// LevelPermissive requires any required item to hold.
	LevelPermissive Level = "permissive"
	// LevelConditional delegates the decision to the configured predicate.
	LevelConditional Level = "conditional"
)

// Fallback is advisory metadata telling the consumer what to render on deny.
// The guard itself never redirects or renders.
type Fallback string

const (
	FallbackHide           Fallback = "hide"
	FallbackShowMessage    Fallback = "show_message"
	FallbackRedirect       Fallback = "redirect"
	FallbackRenderFallback Fallback = "render_fallback"
)

// State is the guard lifecycle within one evaluation pass.
type State string

const (
	// StatePending means inputs are not ready yet; the pass must re-enter
	// evaluation once they are and must not cache a denied result.
	StatePending    State = "pending"
	StateEvaluating State = "evaluating"
	StateGranted    State = "granted"
	StateDenied     State = "denied"
)

// Predicate is a caller-supplied decision function for custom and
// conditional guards. Panics and errors are treated as deny.
type Predicate func(ctx Context) (bool, error)

// Config declares one protected unit of UI or behavior.
type Config struct {
	Type                Type         `json:"type"`
	Level               Level        `json:"level"`
	RequiredRoles       []roles.Role `json:"required_roles,omitempty"`
	DeniedRoles         []roles.Role `json:"denied_roles,omitempty"`
	RequiredPermissions []string     `json:"required_permissions,omitempty"`
	RequiredFlags       []string     `json:"required_flags,omitempty"`
	Predicate           Predicate    `json:"-"`
	Fallback            Fallback     `json:"fallback,omitempty"`
	Message             string       `json:"message,omitempty"`
	RedirectURL         string       `json:"redirect_url,omitempty"`
}

// Context is the subject state a guard decides against. Loading marks a pass
// whose role/permission inputs have not finished resolving.
type Context struct {
	Roles       []roles.Role   `json:"roles"`
	Permissions []string       `json:"permissions"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	Loading     bool           `json:"loading,omitempty"`
}

// Result is a guard decision. Denied results carry the missing items and
// human-readable alternatives so the consumer can render actionable
// messaging; the fallback fields echo the config for the rendering layer.
type Result struct {
	State              State        `json:"state"`
	Granted            bool         `json:"granted"`
	Reason             string       `json:"reason"`
	MissingRoles       []roles.Role `json:"missing_roles,omitempty"`
	MissingPermissions []string     `json:"missing_permissions,omitempty"`
	MissingFlags       []string     `json:"missing_flags,omitempty"`
	Alternatives       []string     `json:"alternatives,omitempty"`
	Fallback           Fallback     `json:"fallback,omitempty"`
	Message            string       `json:"message,omitempty"`
	RedirectURL        string       `json:"redirect_url,omitempty"`
}
