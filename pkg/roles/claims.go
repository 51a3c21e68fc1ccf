package roles

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleClaim is one entry of the credential's custom roles array.
type RoleClaim struct {
	Role           string            `json:"role"`
	Scope          string            `json:"scope,omitempty"`
	Status         string            `json:"status,omitempty"`
	Permissions    []string          `json:"permissions,omitempty"`
	TenantID       string            `json:"tenant_id,omitempty"`
	OrganizationID string            `json:"organization_id,omitempty"`
	ExpiresAt      int64             `json:"expires_at,omitempty"`
	AssignedAt     int64             `json:"assigned_at,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Claims is the decoded credential payload. Besides the registered claims it
// carries an array of role claims and an optional flat permissions array with
// subject-level direct grants.
type Claims struct {
	Roles       []RoleClaim `json:"roles,omitempty"`
	Permissions []string    `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// mapClaims converts the credential claims into assignments. Unrecognized
// role/scope/status strings degrade to safe defaults rather than rejecting
// the credential; every fallback is logged and marked in the assignment
// metadata so misconfigured upstream tokens stay auditable. In strict mode
// an unrecognized value fails the whole credential instead.
func mapClaims(claims Claims, strict bool, now time.Time, logger *slog.Logger) ([]Assignment, error) {
	subject := claims.Subject
	if subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidCredential)
	}

	assignments := make([]Assignment, 0, len(claims.Roles)+1)
	for _, rc := range claims.Roles {
		a, err := mapRoleClaim(subject, rc, strict, now, logger)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}

	if len(claims.Permissions) > 0 {
		if len(assignments) == 0 {
			// No role claims at all: the flat grants ride on a baseline user assignment.
			assignments = append(assignments, Assignment{
				ID:          uuid.New(),
				SubjectID:   subject,
				Role:        RoleUser,
				Scope:       ScopeTenant,
				Status:      StatusActive,
				Permissions: claims.Permissions,
				AssignedAt:  now,
			})
		} else {
			// Fold subject-level grants into the highest-priority assignment so
			// the role set itself is not altered.
			top := 0
			for i := range assignments {
				if assignments[i].Role.Priority() > assignments[top].Role.Priority() {
					top = i
				}
			}
			assignments[top].Permissions = append(assignments[top].Permissions, claims.Permissions...)
		}
	}

	return assignments, nil
}

func mapRoleClaim(subject string, rc RoleClaim, strict bool, now time.Time, logger *slog.Logger) (Assignment, error) {
	meta := make(map[string]string, len(rc.Metadata)+3)
	for k, v := range rc.Metadata {
		meta[k] = v
	}

	role := Role(rc.Role)
	if !role.Valid() {
		if strict {
			return Assignment{}, fmt.Errorf("%w: unknown role %q", ErrInvalidCredential, rc.Role)
		}
		logger.Warn("unknown role in credential, falling back to user",
			slog.String("subject_id", subject), slog.String("role", rc.Role))
		meta["fallback_role"] = rc.Role
		role = RoleUser
	}

	scope := Scope(rc.Scope)
	if !scope.Valid() {
		if rc.Scope != "" {
			if strict {
				return Assignment{}, fmt.Errorf("%w: unknown scope %q", ErrInvalidCredential, rc.Scope)
			}
			logger.Warn("unknown scope in credential, falling back to tenant",
				slog.String("subject_id", subject), slog.String("scope", rc.Scope))
			meta["fallback_scope"] = rc.Scope
		}
		scope = ScopeTenant
	}

	status := Status(rc.Status)
	if !status.Valid() {
		if rc.Status != "" {
			if strict {
				return Assignment{}, fmt.Errorf("%w: unknown status %q", ErrInvalidCredential, rc.Status)
			}
			logger.Warn("unknown status in credential, falling back to active",
				slog.String("subject_id", subject), slog.String("status", rc.Status))
			meta["fallback_status"] = rc.Status
		}
		status = StatusActive
	}

	if len(meta) == 0 {
		meta = nil
	}

	a := Assignment{
		ID:             uuid.New(),
		SubjectID:      subject,
		Role:           role,
		Scope:          scope,
		Status:         status,
		Permissions:    rc.Permissions,
		TenantID:       rc.TenantID,
		OrganizationID: rc.OrganizationID,
		AssignedAt:     now,
		Metadata:       meta,
	}
	if rc.ExpiresAt > 0 {
		exp := time.Unix(rc.ExpiresAt, 0)
		a.ExpiresAt = &exp
	}
	if rc.AssignedAt > 0 {
		a.AssignedAt = time.Unix(rc.AssignedAt, 0)
	}
	return a, nil
}
