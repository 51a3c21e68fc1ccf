package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/broadcast"
	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/feature"
	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/guard"
	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/permission"
	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/roles"
)

// Engine is the process-wide authorization facade. It owns one shared
// permission evaluator, flag evaluator and guard, resolves subjects into
// snapshot-bound Sessions, and keeps sibling processes converged through an
// optional broadcaster. Construct it once per process and pass it by
// reference; there is no hidden global state.
type Engine struct {
	resolver    *roles.Resolver
	permissions *permission.Evaluator
	flags       *feature.Evaluator
	guard       *guard.Guard
	broadcaster broadcast.Broadcaster
	logger      *slog.Logger
	id          string

	mu       sync.RWMutex
	sessions map[string]*Session

	cancel context.CancelFunc
	once   sync.Once
}

// Option configures an Engine.
type Option func(*Engine)

// WithBroadcaster wires cross-process state convergence.
func WithBroadcaster(b broadcast.Broadcaster) Option {
	return func(e *Engine) { e.broadcaster = b }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New composes the engine from its collaborators. The permission evaluator
// is wired to the flag evaluator for feature-flag conditions by the caller
// (see permission.WithFlagChecker).
func New(resolver *roles.Resolver, permissions *permission.Evaluator, flags *feature.Evaluator, opts ...Option) *Engine {
	e := &Engine{
		resolver:    resolver,
		permissions: permissions,
		flags:       flags,
		logger:      slog.Default(),
		id:          uuid.NewString(),
		sessions:    make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.guard = guard.New(permissions, flags, guard.WithLogger(e.logger))

	if e.broadcaster != nil {
		ctx, cancel := context.WithCancel(context.Background())
		e.cancel = cancel
		go e.listen(ctx)
	}
	return e
}

// Authenticate resolves a credential into a session bound to a fresh
// Detection snapshot. Returns roles.ErrInvalidCredential for malformed
// tokens and roles.ErrNoActiveRoles when nothing active remains.
func (e *Engine) Authenticate(ctx context.Context, token string) (*Session, error) {
	detection, err := e.resolver.ResolveCredential(ctx, token)
	if err != nil {
		return nil, err
	}
	session := e.bind(detection)
	e.publish(ctx, broadcast.KindRoleRefresh, detection.SubjectID, detection.Generation, detection)
	return session, nil
}

// Resume restores a session from the cached snapshot, falling through to the
// remote role endpoint when the cache is empty or untrustworthy.
func (e *Engine) Resume(ctx context.Context, subjectID string) (*Session, error) {
	detection, err := e.resolver.Resolve(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return e.bind(detection), nil
}

// SetOverride forces a flag value process-wide and announces it to sibling
// processes. Overrides bypass every computed rule until removed.
func (e *Engine) SetOverride(ctx context.Context, flagKey string, value any) {
	e.flags.SetOverride(flagKey, value)
	e.permissions.InvalidateCache()
	e.publish(ctx, broadcast.KindOverrideSet, "", 0, overridePayload{Key: flagKey, Value: value})
}

// RemoveOverride clears one override.
func (e *Engine) RemoveOverride(ctx context.Context, flagKey string) {
	e.flags.RemoveOverride(flagKey)
	e.permissions.InvalidateCache()
	e.publish(ctx, broadcast.KindOverrideRemoved, "", 0, overridePayload{Key: flagKey})
}

// ClearOverrides clears all overrides.
func (e *Engine) ClearOverrides(ctx context.Context) {
	e.flags.ClearOverrides()
	e.permissions.InvalidateCache()
	e.publish(ctx, broadcast.KindOverridesClear, "", 0, nil)
}

// UpdateFlags upserts flag definitions into the shared catalog and announces
// the update.
func (e *Engine) UpdateFlags(ctx context.Context, definitions []feature.Definition) error {
	if err := e.flags.UpdateFlags(definitions); err != nil {
		return err
	}
	e.permissions.InvalidateCache()
	e.publish(ctx, broadcast.KindFlagsUpdated, "", 0, definitions)
	return nil
}

// Guard exposes the shared guard for callers composing their own configs.
func (e *Engine) Guard() *guard.Guard {
	return e.guard
}

// Close stops the broadcast listener. Sessions remain usable against their
// last snapshot.
func (e *Engine) Close() {
	e.once.Do(func() {
		if e.cancel != nil {
			e.cancel()
		}
	})
}

// bind registers (or refreshes) the session for a subject. An existing
// session adopts the new snapshot only when it is strictly newer.
func (e *Engine) bind(detection roles.Detection) *Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, ok := e.sessions[detection.SubjectID]
	if !ok {
		session = &Session{engine: e, detection: detection}
		e.sessions[detection.SubjectID] = session
		return session
	}
	session.adopt(detection)
	return session
}

func (e *Engine) dropSession(subjectID string) {
	e.mu.Lock()
	delete(e.sessions, subjectID)
	e.mu.Unlock()
}

func (e *Engine) session(subjectID string) (*Session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	session, ok := e.sessions[subjectID]
	return session, ok
}

// invalidateEvaluations drops both evaluation caches. Called whenever role
// state changes so no check observes a superseded snapshot.
func (e *Engine) invalidateEvaluations() {
	e.permissions.InvalidateCache()
	e.flags.InvalidateCache()
}

type overridePayload struct {
	Key   string `json:"key"`
	Value any    `json:"value,omitempty"`
}

func (e *Engine) publish(ctx context.Context, kind broadcast.Kind, subjectID string, generation uint64, payload any) {
	if e.broadcaster == nil {
		return
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			e.logger.Warn("failed to encode broadcast payload", slog.Any("error", err))
			return
		}
		raw = data
	}

	event := broadcast.Event{
		Origin:     e.id,
		SubjectID:  subjectID,
		Kind:       kind,
		Generation: generation,
		At:         time.Now(),
		Payload:    raw,
	}
	if err := e.broadcaster.Broadcast(ctx, event); err != nil {
		e.logger.Warn("failed to broadcast state change",
			slog.String("kind", string(kind)), slog.Any("error", err))
	}
}

// listen merges state changes announced by sibling processes.
func (e *Engine) listen(ctx context.Context) {
	sub := e.broadcaster.Subscribe(ctx)
	defer func() { _ = sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Receive(ctx):
			if !ok {
				return
			}
			if event.Origin == e.id {
				continue
			}
			e.apply(event)
		}
	}
}

func (e *Engine) apply(event broadcast.Event) {
	switch event.Kind {
	case broadcast.KindRoleRefresh:
		var detection roles.Detection
		if err := json.Unmarshal(event.Payload, &detection); err != nil {
			e.logger.Warn("dropping malformed role refresh event", slog.Any("error", err))
			return
		}
		if session, ok := e.session(detection.SubjectID); ok {
			if session.adopt(detection) {
				e.invalidateEvaluations()
			}
		}

	case broadcast.KindLogout:
		e.dropSession(event.SubjectID)
		e.invalidateEvaluations()

	case broadcast.KindOverrideSet:
		var payload overridePayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			e.logger.Warn("dropping malformed override event", slog.Any("error", err))
			return
		}
		e.flags.SetOverride(payload.Key, payload.Value)
		e.permissions.InvalidateCache()

	case broadcast.KindOverrideRemoved:
		var payload overridePayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			e.logger.Warn("dropping malformed override event", slog.Any("error", err))
			return
		}
		e.flags.RemoveOverride(payload.Key)
		e.permissions.InvalidateCache()

	case broadcast.KindOverridesClear:
		e.flags.ClearOverrides()
		e.permissions.InvalidateCache()

	case broadcast.KindFlagsUpdated:
		var definitions []feature.Definition
		if err := json.Unmarshal(event.Payload, &definitions); err != nil {
			e.logger.Warn("dropping malformed flag update event", slog.Any("error", err))
			return
		}
		if err := e.flags.UpdateFlags(definitions); err != nil {
			e.logger.Warn("rejected flag update event", slog.Any("error", err))
			return
		}
		e.permissions.InvalidateCache()
	}
}
