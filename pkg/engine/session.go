package engine

import (
	"context"
	"sync"

	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/broadcast"
	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/feature"
	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/guard"
	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/permission"
	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/roles"
)

// Session binds every check to one Detection snapshot, so all permission and
// flag decisions within an evaluation pass read consistent role state. The
// snapshot is replaced wholesale by Refresh or by a newer sibling-process
// update, never partially mutated.
type Session struct {
	engine *Engine

	mu        sync.RWMutex
	detection roles.Detection
}

// Detection returns the current snapshot.
func (s *Session) Detection() roles.Detection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detection
}

// SubjectID returns the subject this session belongs to.
func (s *Session) SubjectID() string {
	return s.Detection().SubjectID
}

// IsEnabled reports whether the flag resolves to enabled for this subject.
func (s *Session) IsEnabled(flagKey string) bool {
	detection := s.Detection()
	return s.engine.flags.IsEnabled(flagKey, detection.Roles, detection.Permissions, detection.Context())
}

// Flag returns the full flag evaluation for this subject.
func (s *Session) Flag(flagKey string) feature.Evaluation {
	detection := s.Detection()
	return s.engine.flags.Evaluate(flagKey, detection.Roles, detection.Permissions, detection.Context())
}

// FlagValue resolves the flag's value, returning fallback when the flag is
// unknown or has no value.
func (s *Session) FlagValue(flagKey string, fallback any) any {
	detection := s.Detection()
	return s.engine.flags.Value(flagKey, fallback, detection.Roles, detection.Permissions, detection.Context())
}

// CheckPermission evaluates one permission for this subject. Extra context
// entries are merged over the snapshot-derived context.
func (s *Session) CheckPermission(permissionID string, extra map[string]any) permission.Result {
	detection := s.Detection()
	return s.engine.permissions.Check(permissionID, detection.Roles, detection.Permissions, mergeContext(detection, extra))
}

// HasAnyPermission reports whether any of the given permissions is granted.
func (s *Session) HasAnyPermission(permissionIDs ...string) bool {
	detection := s.Detection()
	return s.engine.permissions.HasAny(permissionIDs, detection.Roles, detection.Permissions, detection.Context())
}

// HasAllPermissions reports whether all of the given permissions are granted.
func (s *Session) HasAllPermissions(permissionIDs ...string) bool {
	detection := s.Detection()
	return s.engine.permissions.HasAll(permissionIDs, detection.Roles, detection.Permissions, detection.Context())
}

// Decide runs a guard config against this session's snapshot.
func (s *Session) Decide(cfg guard.Config) guard.Result {
	detection := s.Detection()
	return s.engine.guard.Decide(cfg, guard.Context{
		Roles:       detection.Roles,
		Permissions: detection.Permissions,
		Attributes:  detection.Context(),
	})
}

// Refresh re-fetches role state from the remote endpoint and adopts the
// result when it is newer than the current snapshot. On fetch failure the
// last-known-good snapshot stays in service; the error is returned only when
// no usable state remains.
func (s *Session) Refresh(ctx context.Context) error {
	detection, err := s.engine.resolver.Refresh(ctx, s.SubjectID())
	if err != nil {
		return err
	}
	if s.adopt(detection) {
		s.engine.invalidateEvaluations()
		s.engine.publish(ctx, broadcast.KindRoleRefresh, detection.SubjectID, detection.Generation, detection)
	}
	return nil
}

// Logout invalidates the cached snapshot and announces the logout so sibling
// processes drop their state too. The session must not be used afterwards.
func (s *Session) Logout(ctx context.Context) error {
	subjectID := s.SubjectID()
	err := s.engine.resolver.Invalidate(ctx, subjectID)
	s.engine.dropSession(subjectID)
	s.engine.invalidateEvaluations()
	s.engine.publish(ctx, broadcast.KindLogout, subjectID, 0, nil)
	return err
}

// adopt swaps in the snapshot when it is strictly newer. Reports whether the
// swap happened.
func (s *Session) adopt(detection roles.Detection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if detection.Generation <= s.detection.Generation {
		return false
	}
	s.detection = detection
	return true
}

func mergeContext(detection roles.Detection, extra map[string]any) map[string]any {
	merged := detection.Context()
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
