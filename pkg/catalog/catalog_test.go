package catalog_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/catalog"
	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/feature"
	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/permission"
	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/roles"
)

const validCatalog = `
permissions:
  - id: si_billing_access
    category: billing
    required_roles: [system_integrator, hybrid]
  - id: app_bulk_submission
    category: transmission
    required_roles: [access_point_provider, hybrid]
    conditions:
      - type: feature_flag
        operator: equals
        value: app_bulk_submission
flags:
  - key: app_bulk_submission
    scope: role_based
    status: active
    default_value: true
    allowed_roles: [access_point_provider, hybrid]
  - key: si_advanced_integration
    scope: role_based
    status: active
    default_value: false
    allowed_roles: [system_integrator, hybrid]
`

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("ValidCatalog", func(t *testing.T) {
		t.Parallel()

		c, err := catalog.Parse(strings.NewReader(validCatalog))
		require.NoError(t, err)
		require.Len(t, c.Permissions, 2)
		require.Len(t, c.Flags, 2)

		assert.Equal(t, "si_billing_access", c.Permissions[0].ID)
		assert.Equal(t,
			[]roles.Role{roles.RoleSystemIntegrator, roles.RoleHybrid},
			c.Permissions[0].RequiredRoles)
		assert.Equal(t, permission.ConditionFeatureFlag, c.Permissions[1].Conditions[0].Type)

		assert.Equal(t, feature.ScopeRole, c.Flags[0].Scope)
		assert.Equal(t, feature.StatusActive, c.Flags[0].Status)
		assert.Equal(t, true, c.Flags[0].DefaultValue)
	})

	t.Run("MalformedYAML", func(t *testing.T) {
		t.Parallel()

		_, err := catalog.Parse(strings.NewReader("permissions: [}"))
		require.ErrorIs(t, err, catalog.ErrInvalidCatalog)
	})

	t.Run("MissingRequiredFields", func(t *testing.T) {
		t.Parallel()

		_, err := catalog.Parse(strings.NewReader(`
flags:
  - key: orphan_flag
`))
		require.ErrorIs(t, err, catalog.ErrInvalidCatalog)
	})

	t.Run("DuplicatePermissionID", func(t *testing.T) {
		t.Parallel()

		_, err := catalog.Parse(strings.NewReader(`
permissions:
  - id: si_billing_access
  - id: si_billing_access
`))
		require.ErrorIs(t, err, catalog.ErrInvalidCatalog)
		assert.Contains(t, err.Error(), "duplicate permission id")
	})

	t.Run("DuplicateFlagKey", func(t *testing.T) {
		t.Parallel()

		_, err := catalog.Parse(strings.NewReader(`
flags:
  - key: dup_flag
    scope: global
    status: active
  - key: dup_flag
    scope: global
    status: active
`))
		require.ErrorIs(t, err, catalog.ErrInvalidCatalog)
		assert.Contains(t, err.Error(), "duplicate flag key")
	})
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("FromFile", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "catalog.yml")
		require.NoError(t, os.WriteFile(path, []byte(validCatalog), 0o600))

		c, err := catalog.Load(path)
		require.NoError(t, err)
		assert.Len(t, c.Permissions, 2)
	})

	t.Run("MissingFile", func(t *testing.T) {
		t.Parallel()

		_, err := catalog.Load(filepath.Join(t.TempDir(), "nope.yml"))
		require.ErrorIs(t, err, catalog.ErrLoadFailed)
	})
}
