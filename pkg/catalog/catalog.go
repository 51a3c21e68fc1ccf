package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/feature"
	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/permission"
)

// Catalog bundles the static permission and flag definitions a deployment
// ships with. Flag entries merge into a running evaluator by key (upsert),
// so a file can be a partial catalog.
type Catalog struct {
	Permissions []permission.Definition `yaml:"permissions" validate:"dive"`
	Flags       []feature.Definition    `yaml:"flags" validate:"dive"`
}

// Load reads and validates a YAML catalog file.
func Load(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return Catalog{}, errors.Join(ErrLoadFailed, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads and validates a YAML catalog from a reader.
func Parse(r io.Reader) (Catalog, error) {
	var c Catalog
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return Catalog{}, errors.Join(ErrInvalidCatalog, err)
	}

	if err := validator.New().Struct(c); err != nil {
		return Catalog{}, errors.Join(ErrInvalidCatalog, err)
	}

	seen := make(map[string]struct{}, len(c.Permissions))
	for _, def := range c.Permissions {
		if _, dup := seen[def.ID]; dup {
			return Catalog{}, errors.Join(ErrInvalidCatalog,
				fmt.Errorf("duplicate permission id %q", def.ID))
		}
		seen[def.ID] = struct{}{}
	}

	keys := make(map[string]struct{}, len(c.Flags))
	for _, def := range c.Flags {
		if _, dup := keys[def.Key]; dup {
			return Catalog{}, errors.Join(ErrInvalidCatalog,
				fmt.Errorf("duplicate flag key %q", def.Key))
		}
		keys[def.Key] = struct{}{}
	}

	return c, nil
}
