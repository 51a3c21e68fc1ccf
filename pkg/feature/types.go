package feature

import (
	"time"

	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/permission"
	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/roles"
)

// ValueType describes the shape of a flag's value.
type ValueType string

const (
	ValueBoolean    ValueType = "boolean"
	ValueString     ValueType = "string"
	ValueNumber     ValueType = "number"
	ValueStructured ValueType = "structured"
)

// FlagScope determines which rule branch evaluates the flag.
type FlagScope string

const (
	ScopeGlobal       FlagScope = "global"
	ScopeRole         FlagScope = "role_based"
	ScopePermission   FlagScope = "permission_based"
	ScopeUser         FlagScope = "user_specific"
	ScopeOrganization FlagScope = "organization"
	ScopeTenant       FlagScope = "tenant"
)

// FlagStatus is the lifecycle state of a flag. Only active flags evaluate
// their scope rules; every other status disables the flag outright.
type FlagStatus string

const (
	StatusActive     FlagStatus = "active"
	StatusInactive   FlagStatus = "inactive"
	StatusTesting    FlagStatus = "testing"
	StatusDeprecated FlagStatus = "deprecated"
)

// NoneSentinel stands in for identifier context fields absent at evaluation
// time for user/organization/tenant scoped flags.
const NoneSentinel = "none"

// Definition is one entry of the flag catalog.
type Definition struct {
	Key                 string                 `json:"key" yaml:"key" validate:"required"`
	Name                string                 `json:"name,omitempty" yaml:"name,omitempty"`
	ValueType           ValueType              `json:"value_type,omitempty" yaml:"value_type,omitempty"`
	Scope               FlagScope              `json:"scope" yaml:"scope" validate:"required"`
	Status              FlagStatus             `json:"status" yaml:"status" validate:"required"`
	DefaultValue        any                    `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	AllowedRoles        []roles.Role           `json:"allowed_roles,omitempty" yaml:"allowed_roles,omitempty"`
	RequiredPermissions []string               `json:"required_permissions,omitempty" yaml:"required_permissions,omitempty"`
	Conditions          []permission.Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	ExpiresAt           *time.Time             `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Metadata            map[string]string      `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Expired reports whether the flag is past its expiry at the given instant.
func (d Definition) Expired(now time.Time) bool {
	return d.ExpiresAt != nil && now.After(*d.ExpiresAt)
}

// Provenance records which rule produced an evaluation outcome.
type Provenance string

const (
	ProvenanceDefault    Provenance = "default"
	ProvenanceRole       Provenance = "role"
	ProvenancePermission Provenance = "permission"
	ProvenanceOverride   Provenance = "override"
	ProvenanceRemote     Provenance = "remote"
)

// Evaluation is the outcome of one flag evaluation: the resolved value, a
// human-readable reason, the conditions considered, and provenance.
// Evaluations are transient and reconstructed on every pass, subject to
// caching; they are never persisted.
type Evaluation struct {
	Key         string     `json:"key"`
	Enabled     bool       `json:"enabled"`
	Value       any        `json:"value"`
	Reason      string     `json:"reason"`
	Provenance  Provenance `json:"provenance"`
	Conditions  []string   `json:"conditions,omitempty"`
	EvaluatedAt time.Time  `json:"evaluated_at"`
}
