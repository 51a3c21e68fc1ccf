package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/config"
)

// No t.Parallel here: t.Setenv mutates process state.

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("AUTHZ_SIGNING_KEY", "secret")

		var cfg config.Config
		require.NoError(t, config.Load(&cfg))

		assert.Equal(t, "secret", cfg.SigningKey)
		assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
		assert.Equal(t, time.Minute, cfg.FlagPollInterval)
		assert.Equal(t, 30*time.Minute, cfg.SnapshotTTL)
		assert.Equal(t, 1024, cfg.PermissionCacheSize)
		assert.Equal(t, 1024, cfg.FlagCacheSize)
		assert.False(t, cfg.StrictClaims)
	})

	t.Run("Overrides", func(t *testing.T) {
		t.Setenv("AUTHZ_SIGNING_KEY", "secret")
		t.Setenv("AUTHZ_ROLE_ENDPOINT", "https://roles.internal")
		t.Setenv("AUTHZ_FETCH_TIMEOUT", "10s")
		t.Setenv("AUTHZ_STRICT_CLAIMS", "true")

		var cfg config.Config
		require.NoError(t, config.Load(&cfg))

		assert.Equal(t, "https://roles.internal", cfg.RoleEndpoint)
		assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
		assert.True(t, cfg.StrictClaims)
	})

	t.Run("MissingRequired", func(t *testing.T) {
		// t.Setenv registers the restore; unset so the required check trips.
		t.Setenv("AUTHZ_SIGNING_KEY", "")
		require.NoError(t, os.Unsetenv("AUTHZ_SIGNING_KEY"))

		var cfg config.Config
		err := config.Load(&cfg)
		require.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("NilPointer", func(t *testing.T) {
		err := config.Load[config.Config](nil)
		require.ErrorIs(t, err, config.ErrNilPointer)
	})
}

func TestMustLoad(t *testing.T) {
	t.Run("PanicsOnFailure", func(t *testing.T) {
		t.Setenv("AUTHZ_SIGNING_KEY", "")
		require.NoError(t, os.Unsetenv("AUTHZ_SIGNING_KEY"))

		assert.Panics(t, func() {
			var cfg config.Config
			config.MustLoad(&cfg)
		})
	})
}
