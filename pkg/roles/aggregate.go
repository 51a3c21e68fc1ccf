package roles

import (
	"slices"
	"time"
)

// Aggregate computes the authoritative Detection snapshot from a set of
// assignments. It filters to active assignments, picks the primary role by
// priority, unions permissions, and derives the role-switching flags.
// Returns ErrNoActiveRoles when the active set is empty.
func Aggregate(assignments []Assignment) (Detection, error) {
	return aggregateAt(time.Now(), assignments)
}

func aggregateAt(now time.Time, assignments []Assignment) (Detection, error) {
	active := make([]Assignment, 0, len(assignments))
	for _, a := range assignments {
		if a.ActiveAt(now) {
			active = append(active, a)
		}
	}
	if len(active) == 0 {
		return Detection{}, ErrNoActiveRoles
	}

	primary := active[0]
	for _, a := range active[1:] {
		if a.Role.Priority() > primary.Role.Priority() {
			primary = a
		}
	}

	roleSet := make([]Role, 0, len(active))
	permSet := make([]string, 0, len(active))
	for _, a := range active {
		if !slices.Contains(roleSet, a.Role) {
			roleSet = append(roleSet, a.Role)
		}
		permSet = append(permSet, a.Permissions...)
	}
	slices.Sort(permSet)
	permSet = slices.Compact(permSet)

	isHybrid := slices.Contains(roleSet, RoleHybrid)
	canSwitch := isHybrid ||
		(slices.Contains(roleSet, RoleSystemIntegrator) && slices.Contains(roleSet, RoleAccessPointProvider))

	return Detection{
		SubjectID:      primary.SubjectID,
		PrimaryRole:    primary.Role,
		Roles:          roleSet,
		Permissions:    permSet,
		CanSwitchRoles: canSwitch,
		IsHybrid:       isHybrid,
		Scope:          primary.Scope,
		TenantID:       primary.TenantID,
		OrganizationID: primary.OrganizationID,
		ComputedAt:     now,
	}, nil
}
