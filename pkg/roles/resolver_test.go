package roles_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/roles"
)

var testSigningKey = []byte("test-signing-key-at-least-32-bytes!!")

func signToken(t *testing.T, claims roles.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSigningKey)
	require.NoError(t, err)
	return token
}

type stubFetcher struct {
	detection roles.Detection
	err       error
	calls     int
}

func (f *stubFetcher) FetchRoles(ctx context.Context, subjectID string) (roles.Detection, error) {
	f.calls++
	if f.err != nil {
		return roles.Detection{}, f.err
	}
	return f.detection, nil
}

func TestResolverParseCredential(t *testing.T) {
	t.Parallel()

	resolver, err := roles.NewResolver(testSigningKey)
	require.NoError(t, err)

	t.Run("MalformedToken", func(t *testing.T) {
		t.Parallel()

		_, err := resolver.ParseCredential("not-a-token")
		require.ErrorIs(t, err, roles.ErrInvalidCredential)
	})

	t.Run("WrongSignature", func(t *testing.T) {
		t.Parallel()

		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, roles.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-1"},
		}).SignedString([]byte("a-completely-different-signing-key"))
		require.NoError(t, err)

		_, err = resolver.ParseCredential(token)
		require.ErrorIs(t, err, roles.ErrInvalidCredential)
	})

	t.Run("MissingSubject", func(t *testing.T) {
		t.Parallel()

		token := signToken(t, roles.Claims{})
		_, err := resolver.ParseCredential(token)
		require.ErrorIs(t, err, roles.ErrInvalidCredential)
	})

	t.Run("ValidRoleClaims", func(t *testing.T) {
		t.Parallel()

		token := signToken(t, roles.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-1"},
			Roles: []roles.RoleClaim{
				{
					Role:        string(roles.RoleSystemIntegrator),
					Scope:       string(roles.ScopeTenant),
					Status:      string(roles.StatusActive),
					Permissions: []string{"si_billing_access"},
					TenantID:    "tenant-1",
				},
			},
		})

		assignments, err := resolver.ParseCredential(token)
		require.NoError(t, err)
		require.Len(t, assignments, 1)
		assert.Equal(t, roles.RoleSystemIntegrator, assignments[0].Role)
		assert.Equal(t, "tenant-1", assignments[0].TenantID)
		assert.Equal(t, []string{"si_billing_access"}, assignments[0].Permissions)
	})

	t.Run("UnknownValuesFallBackToSafeDefaults", func(t *testing.T) {
		t.Parallel()

		token := signToken(t, roles.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-1"},
			Roles: []roles.RoleClaim{
				{Role: "galactic_overlord", Scope: "universe", Status: "ascended"},
			},
		})

		assignments, err := resolver.ParseCredential(token)
		require.NoError(t, err)
		require.Len(t, assignments, 1)
		assert.Equal(t, roles.RoleUser, assignments[0].Role)
		assert.Equal(t, roles.ScopeTenant, assignments[0].Scope)
		assert.Equal(t, roles.StatusActive, assignments[0].Status)
		// Fallbacks stay auditable through the assignment metadata.
		assert.Equal(t, "galactic_overlord", assignments[0].Metadata["fallback_role"])
		assert.Equal(t, "universe", assignments[0].Metadata["fallback_scope"])
		assert.Equal(t, "ascended", assignments[0].Metadata["fallback_status"])
	})

	t.Run("StrictModeRejectsUnknownRole", func(t *testing.T) {
		t.Parallel()

		strict, err := roles.NewResolver(testSigningKey, roles.WithStrictClaims())
		require.NoError(t, err)

		token := signToken(t, roles.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-1"},
			Roles:            []roles.RoleClaim{{Role: "galactic_overlord"}},
		})

		_, err = strict.ParseCredential(token)
		require.ErrorIs(t, err, roles.ErrInvalidCredential)
	})

	t.Run("FlatPermissionsWithoutRoles", func(t *testing.T) {
		t.Parallel()

		token := signToken(t, roles.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-1"},
			Permissions:      []string{"si_view_invoices"},
		})

		assignments, err := resolver.ParseCredential(token)
		require.NoError(t, err)
		require.Len(t, assignments, 1)
		assert.Equal(t, roles.RoleUser, assignments[0].Role)
		assert.Equal(t, []string{"si_view_invoices"}, assignments[0].Permissions)
	})

	t.Run("FlatPermissionsFoldIntoHighestPriorityAssignment", func(t *testing.T) {
		t.Parallel()

		token := signToken(t, roles.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-1"},
			Roles: []roles.RoleClaim{
				{Role: string(roles.RoleUser), Status: string(roles.StatusActive)},
				{Role: string(roles.RoleHybrid), Status: string(roles.StatusActive)},
			},
			Permissions: []string{"si_view_invoices"},
		})

		assignments, err := resolver.ParseCredential(token)
		require.NoError(t, err)
		require.Len(t, assignments, 2)

		detection, err := roles.Aggregate(assignments)
		require.NoError(t, err)
		assert.Equal(t, roles.RoleHybrid, detection.PrimaryRole)
		assert.Contains(t, detection.Permissions, "si_view_invoices")
	})
}

func TestResolverResolveCredential(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := roles.NewMemoryStore(time.Minute)
	t.Cleanup(store.Close)

	resolver, err := roles.NewResolver(testSigningKey, roles.WithStore(store))
	require.NoError(t, err)

	token := signToken(t, roles.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-42"},
		Roles: []roles.RoleClaim{
			{Role: string(roles.RoleAccessPointProvider), Status: string(roles.StatusActive)},
		},
	})

	detection, err := resolver.ResolveCredential(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, roles.RoleAccessPointProvider, detection.PrimaryRole)
	assert.NotZero(t, detection.Generation)

	// Successful resolution is cached for reuse.
	cached, err := store.Get(ctx, "sub-42")
	require.NoError(t, err)
	assert.Equal(t, detection.Generation, cached.Generation)
}

func TestResolverResolve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("SessionPathPreferred", func(t *testing.T) {
		t.Parallel()

		store := roles.NewMemoryStore(time.Minute)
		t.Cleanup(store.Close)
		fetcher := &stubFetcher{}

		resolver, err := roles.NewResolver(testSigningKey,
			roles.WithStore(store), roles.WithFetcher(fetcher))
		require.NoError(t, err)

		snapshot := roles.Detection{
			SubjectID:   "sub-1",
			PrimaryRole: roles.RoleUser,
			Roles:       []roles.Role{roles.RoleUser},
			Generation:  7,
		}
		require.NoError(t, store.Put(ctx, snapshot))

		detection, err := resolver.Resolve(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, uint64(7), detection.Generation)
		assert.Zero(t, fetcher.calls)
	})

	t.Run("FallsThroughToRemote", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{detection: roles.Detection{
			SubjectID:   "sub-2",
			PrimaryRole: roles.RoleSystemIntegrator,
			Roles:       []roles.Role{roles.RoleSystemIntegrator},
		}}

		resolver, err := roles.NewResolver(testSigningKey, roles.WithFetcher(fetcher))
		require.NoError(t, err)

		detection, err := resolver.Resolve(ctx, "sub-2")
		require.NoError(t, err)
		assert.Equal(t, roles.RoleSystemIntegrator, detection.PrimaryRole)
		assert.Equal(t, 1, fetcher.calls)
		assert.NotZero(t, detection.Generation)
	})

	t.Run("RemoteFailureWithoutCache", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{err: errors.Join(roles.ErrRoleFetchFailed, errors.New("boom"))}
		resolver, err := roles.NewResolver(testSigningKey, roles.WithFetcher(fetcher))
		require.NoError(t, err)

		_, err = resolver.Resolve(ctx, "sub-3")
		require.ErrorIs(t, err, roles.ErrRoleFetchFailed)
	})

	t.Run("NoFetcherConfigured", func(t *testing.T) {
		t.Parallel()

		resolver, err := roles.NewResolver(testSigningKey)
		require.NoError(t, err)

		_, err = resolver.Resolve(ctx, "sub-4")
		require.ErrorIs(t, err, roles.ErrRoleFetchFailed)
	})
}

func TestResolverRefresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("FallsBackToLastKnownGood", func(t *testing.T) {
		t.Parallel()

		store := roles.NewMemoryStore(time.Minute)
		t.Cleanup(store.Close)

		fetcher := &stubFetcher{err: errors.New("endpoint down")}
		resolver, err := roles.NewResolver(testSigningKey,
			roles.WithStore(store), roles.WithFetcher(fetcher))
		require.NoError(t, err)

		snapshot := roles.Detection{
			SubjectID:   "sub-1",
			PrimaryRole: roles.RoleTenantAdmin,
			Roles:       []roles.Role{roles.RoleTenantAdmin},
			Generation:  3,
		}
		require.NoError(t, store.Put(ctx, snapshot))

		detection, err := resolver.Refresh(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, roles.RoleTenantAdmin, detection.PrimaryRole)
	})

	t.Run("FailsWhenNothingCached", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{err: errors.New("endpoint down")}
		resolver, err := roles.NewResolver(testSigningKey, roles.WithFetcher(fetcher))
		require.NoError(t, err)

		_, err = resolver.Refresh(ctx, "sub-1")
		require.Error(t, err)
	})
}

func TestNewResolverRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := roles.NewResolver(nil)
	require.ErrorIs(t, err, roles.ErrMissingSigningKey)
}
