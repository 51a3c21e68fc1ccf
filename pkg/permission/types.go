package permission

import (
	"time"

	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/roles"
)

// ConditionType identifies what a condition is evaluated against.
type ConditionType string

const (
	ConditionTenant       ConditionType = "tenant"
	ConditionOrganization ConditionType = "organization"
	ConditionTime         ConditionType = "time"
	ConditionFeatureFlag  ConditionType = "feature_flag"
	ConditionCustom       ConditionType = "custom"
)

// Operator is the comparison applied by a condition.
type Operator string

const (
	OperatorEquals  Operator = "equals"
	OperatorIn      Operator = "in"
	OperatorNotIn   Operator = "not_in"
	OperatorBefore  Operator = "before"
	OperatorAfter   Operator = "after"
	OperatorBetween Operator = "between"
)

// Condition gates a permission or flag on runtime state. It is evaluated
// against a context map supplied at check time; malformed condition data
// counts as a failed condition, never as a fault.
type Condition struct {
	Type        ConditionType `json:"type" yaml:"type" validate:"required"`
	Operator    Operator      `json:"operator" yaml:"operator" validate:"required"`
	Value       any           `json:"value" yaml:"value"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
}

// Definition is one entry of the static permission catalog. Definitions are
// not subject-specific; subject state arrives at check time.
type Definition struct {
	ID            string       `json:"id" yaml:"id" validate:"required"`
	Category      string       `json:"category,omitempty" yaml:"category,omitempty"`
	Action        string       `json:"action,omitempty" yaml:"action,omitempty"`
	Resource      string       `json:"resource,omitempty" yaml:"resource,omitempty"`
	Scope         roles.Scope  `json:"scope,omitempty" yaml:"scope,omitempty"`
	Description   string       `json:"description,omitempty" yaml:"description,omitempty"`
	RequiredRoles []roles.Role `json:"required_roles,omitempty" yaml:"required_roles,omitempty"`
	Conditions    []Condition  `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// Provenance records which rule produced an evaluation outcome.
type Provenance string

const (
	ProvenanceDefault  Provenance = "default"
	ProvenanceDirect   Provenance = "permission"
	ProvenanceRole     Provenance = "role"
	ProvenanceOverride Provenance = "override"
	ProvenanceRemote   Provenance = "remote"
)

// Result is the outcome of one permission check. Checks never raise; denied
// results carry the reason and the missing roles so consumers can render
// actionable messaging.
type Result struct {
	PermissionID string       `json:"permission_id"`
	Granted      bool         `json:"granted"`
	Reason       string       `json:"reason"`
	Provenance   Provenance   `json:"provenance"`
	Conditions   []string     `json:"conditions,omitempty"`
	MissingRoles []roles.Role `json:"missing_roles,omitempty"`
	EvaluatedAt  time.Time    `json:"evaluated_at"`
}
