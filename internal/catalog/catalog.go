// package catalog defines the static bundle catalog the storefront sells
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/illegible-ink/crates/internal/shared"
)

//go:embed bundles.toml
var defaultBundles []byte

// Bundle is a named, priced grouping of source playlists sold as a unit.
// Free bundles are marked explicitly rather than by catalog position.
type Bundle struct {
	ID         string   `toml:"id"`
	Name       string   `toml:"name"`
	PriceCents int64    `toml:"price_cents"`
	Playlists  []string `toml:"playlists"`
	Free       bool     `toml:"free"`
}

// DisplayPrice formats the bundle price for storefront rendering.
func (b Bundle) DisplayPrice() string {
	if b.Free {
		return "Free"
	}
	return fmt.Sprintf("$%d.%02d", b.PriceCents/100, b.PriceCents%100)
}

// Catalog is an ordered, immutable collection of bundles.
type Catalog struct {
	bundles []Bundle
	index   map[string]int
}

type bundleFile struct {
	Bundles []Bundle `toml:"bundle"`
}

// Parse builds a catalog from TOML data, preserving file order.
func Parse(data []byte) (*Catalog, error) {
	var file bundleFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse bundle catalog: %w", err)
	}
	if len(file.Bundles) == 0 {
		return nil, fmt.Errorf("%w: catalog has no bundles", shared.ErrInvalidConfig)
	}

	index := make(map[string]int, len(file.Bundles))
	for i, bundle := range file.Bundles {
		if bundle.ID == "" || bundle.Name == "" {
			return nil, fmt.Errorf("%w: bundle %d missing id or name", shared.ErrInvalidConfig, i)
		}
		if _, dup := index[bundle.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate bundle id %s", shared.ErrInvalidConfig, bundle.ID)
		}
		if !bundle.Free && bundle.PriceCents <= 0 {
			return nil, fmt.Errorf("%w: paid bundle %s has no price", shared.ErrInvalidConfig, bundle.ID)
		}
		if len(bundle.Playlists) == 0 {
			return nil, fmt.Errorf("%w: bundle %s has no playlists", shared.ErrInvalidConfig, bundle.ID)
		}
		index[bundle.ID] = i
	}

	return &Catalog{bundles: file.Bundles, index: index}, nil
}

// LoadFile reads a catalog from a TOML file on disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultBundles)
	if err != nil {
		panic(fmt.Sprintf("failed to parse embedded bundle catalog: %v", err))
	}
	return c
}

// All returns the bundles in catalog order.
func (c *Catalog) All() []Bundle {
	out := make([]Bundle, len(c.bundles))
	copy(out, c.bundles)
	return out
}

// Get looks up a bundle by id.
func (c *Catalog) Get(id string) (Bundle, bool) {
	i, ok := c.index[id]
	if !ok {
		return Bundle{}, false
	}
	return c.bundles[i], true
}

// Len reports the number of bundles.
func (c *Catalog) Len() int {
	return len(c.bundles)
}
