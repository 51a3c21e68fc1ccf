package config

import (
	"errors"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the engine's runtime configuration, loaded from environment
// variables.
type Config struct {
	// SigningKey verifies credential signatures. Required.
	SigningKey string `env:"AUTHZ_SIGNING_KEY,required"`

	// RoleEndpoint is the remote role endpoint base URL. Empty disables the
	// remote resolution path.
	RoleEndpoint string `env:"AUTHZ_ROLE_ENDPOINT"`

	// FlagEndpoint is the remote flag catalog URL. Empty disables polling.
	FlagEndpoint string `env:"AUTHZ_FLAG_ENDPOINT"`

	// FetchTimeout bounds every remote role/flag fetch.
	FetchTimeout time.Duration `env:"AUTHZ_FETCH_TIMEOUT" envDefault:"5s"`

	// FlagPollInterval is the flag catalog refresh interval.
	FlagPollInterval time.Duration `env:"AUTHZ_FLAG_POLL_INTERVAL" envDefault:"1m"`

	// SnapshotTTL bounds how long cached detection snapshots are trusted.
	SnapshotTTL time.Duration `env:"AUTHZ_SNAPSHOT_TTL" envDefault:"30m"`

	// PermissionCacheSize caps the permission evaluation cache.
	PermissionCacheSize int `env:"AUTHZ_PERMISSION_CACHE_SIZE" envDefault:"1024"`

	// FlagCacheSize caps the flag evaluation cache.
	FlagCacheSize int `env:"AUTHZ_FLAG_CACHE_SIZE" envDefault:"1024"`

	// RedisURL enables the Redis snapshot store and cross-process broadcast
	// when set.
	RedisURL string `env:"AUTHZ_REDIS_URL"`

	// CatalogPath points at a YAML catalog of permission/flag definitions.
	CatalogPath string `env:"AUTHZ_CATALOG_PATH"`

	// StrictClaims rejects credentials with unrecognized role/scope/status
	// values instead of degrading to safe defaults.
	StrictClaims bool `env:"AUTHZ_STRICT_CLAIMS" envDefault:"false"`
}

var (
	// ErrNilPointer indicates Load was called with a nil target.
	ErrNilPointer = errors.New("config.nil_pointer")

	// ErrParsingConfig indicates environment parsing failed.
	ErrParsingConfig = errors.New("config.parsing_failed")
)

var defaultEnvLoaded sync.Once

// Load parses environment variables into the provided configuration struct.
// The default .env file is loaded once per process if present; a missing
// .env file is not an error.
func Load[T any](v *T) error {
	defaultEnvLoaded.Do(func() {
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}
	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics on failure. Intended for configuration
// the process cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(err)
	}
}
