package roles

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Role identifies one of the fixed platform roles.
type Role string

const (
	RoleSystemIntegrator    Role = "system_integrator"
	RoleAccessPointProvider Role = "access_point_provider"
	RoleHybrid              Role = "hybrid"
	RolePlatformAdmin       Role = "platform_admin"
	RoleTenantAdmin         Role = "tenant_admin"
	RoleUser                Role = "user"
)

// rolePriority is a strict total order over the role enumeration.
// The active assignment with the highest priority becomes the primary role.
var rolePriority = map[Role]int{
	RoleHybrid:              100,
	RolePlatformAdmin:       90,
	RoleSystemIntegrator:    80,
	RoleAccessPointProvider: 70,
	RoleTenantAdmin:         60,
	RoleUser:                10,
}

// Priority returns the fixed priority value of the role. Unknown roles have priority 0.
func (r Role) Priority() int {
	return rolePriority[r]
}

// Valid reports whether r is one of the fixed platform roles.
func (r Role) Valid() bool {
	_, ok := rolePriority[r]
	return ok
}

// Scope is the breadth at which a role assignment applies.
type Scope string

const (
	ScopeGlobal      Scope = "global"
	ScopeTenant      Scope = "tenant"
	ScopeService     Scope = "service"
	ScopeEnvironment Scope = "environment"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeGlobal, ScopeTenant, ScopeService, ScopeEnvironment:
		return true
	}
	return false
}

// Status is the lifecycle state of a role assignment.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
	StatusPending   Status = "pending"
	StatusExpired   Status = "expired"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended, StatusPending, StatusExpired:
		return true
	}
	return false
}

// Assignment is a grant of one platform role to a subject within a scope.
// Assignments are immutable once constructed; a refresh supersedes the whole
// set rather than mutating entries in place.
type Assignment struct {
	ID             uuid.UUID         `json:"id"`
	SubjectID      string            `json:"subject_id"`
	Role           Role              `json:"role"`
	Scope          Scope             `json:"scope"`
	Status         Status            `json:"status"`
	Permissions    []string          `json:"permissions,omitempty"`
	TenantID       string            `json:"tenant_id,omitempty"`
	OrganizationID string            `json:"organization_id,omitempty"`
	ExpiresAt      *time.Time        `json:"expires_at,omitempty"`
	AssignedAt     time.Time         `json:"assigned_at"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// ActiveAt reports whether the assignment is usable at the given instant:
// status active and not past its expiry.
func (a Assignment) ActiveAt(now time.Time) bool {
	if a.Status != StatusActive {
		return false
	}
	if a.ExpiresAt != nil && now.After(*a.ExpiresAt) {
		return false
	}
	return true
}

// Detection is the read-only aggregate over a subject's active assignments.
// It is recomputed wholesale whenever the assignment set changes; all checks
// within one evaluation pass must read the same Detection snapshot.
type Detection struct {
	SubjectID      string    `json:"subject_id"`
	PrimaryRole    Role      `json:"primary_role"`
	Roles          []Role    `json:"roles"`
	Permissions    []string  `json:"permissions"`
	CanSwitchRoles bool      `json:"can_switch_roles"`
	IsHybrid       bool      `json:"is_hybrid"`
	Scope          Scope     `json:"scope"`
	TenantID       string    `json:"tenant_id,omitempty"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Generation     uint64    `json:"generation"`
	ComputedAt     time.Time `json:"computed_at"`
}

// HasRole reports whether the role set contains r.
func (d Detection) HasRole(r Role) bool {
	return slices.Contains(d.Roles, r)
}

// HasPermission reports whether the aggregated permission set contains id.
func (d Detection) HasPermission(id string) bool {
	return slices.Contains(d.Permissions, id)
}

// Valid reports whether the snapshot has the minimum shape required to be
// trusted from a cache: subject, primary role and a non-empty role set.
func (d Detection) Valid() bool {
	return d.SubjectID != "" && d.PrimaryRole.Valid() && len(d.Roles) > 0
}

// Context returns the evaluation context derived from the snapshot, used by
// permission conditions and context-scoped feature flags.
func (d Detection) Context() map[string]any {
	return map[string]any{
		"user_id":         d.SubjectID,
		"tenant_id":       d.TenantID,
		"organization_id": d.OrganizationID,
	}
}
