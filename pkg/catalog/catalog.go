// pkg/catalog/catalog.go
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

// TypeCount is the fixed size of the company-type catalog.
const TypeCount = 8

// CompanyType describes one catalog entry. Rates are basis points,
// WageRate is the per-employee daily wage in minor units.
type CompanyType struct {
	Name               string `json:"name"`
	Emoji              string `json:"emoji"`
	Description        string `json:"description"`
	IncomeBonusBps     int64  `json:"incomeBonusBps"`
	WageRate           int64  `json:"wageRate"`
	ExtraEmployeeLimit int    `json:"extraEmployeeLimit"`
}

// Catalog is the closed set of company types keyed by type identifier.
type Catalog struct {
	types map[string]CompanyType
	keys  []string
}

// catalogSchema constrains the catalog file: exactly TypeCount entries, every
// entry fully specified, rates inside sane bounds.
const catalogSchema = `{
	"type": "object",
	"minProperties": 8,
	"maxProperties": 8,
	"patternProperties": {
		"^[a-z_]+$": {
			"type": "object",
			"required": ["name", "emoji", "description", "incomeBonusBps", "wageRate", "extraEmployeeLimit"],
			"properties": {
				"name": {"type": "string", "minLength": 1},
				"emoji": {"type": "string", "minLength": 1},
				"description": {"type": "string"},
				"incomeBonusBps": {"type": "integer", "minimum": 0, "maximum": 10000},
				"wageRate": {"type": "integer", "minimum": 0},
				"extraEmployeeLimit": {"type": "integer", "minimum": 0}
			},
			"additionalProperties": false
		}
	},
	"additionalProperties": false
}`

// Load reads and validates the catalog file.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse validates raw JSON against the catalog schema and builds the Catalog.
func Parse(raw []byte) (*Catalog, error) {
	schemaLoader := gojsonschema.NewStringLoader(catalogSchema)
	documentLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("catalog validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, fmt.Errorf("catalog failed validation: %v", errs)
	}

	var types map[string]CompanyType
	if err := json.Unmarshal(raw, &types); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}

	keys := make([]string, 0, len(types))
	for k := range types {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return &Catalog{types: types, keys: keys}, nil
}

// Get returns the entry for a type key.
func (c *Catalog) Get(key string) (CompanyType, bool) {
	t, ok := c.types[key]
	return t, ok
}

// Keys returns all type keys in sorted order.
func (c *Catalog) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.types)
}

// WageRate returns the per-employee wage for a type, falling back to the
// given default when the type is unknown.
func (c *Catalog) WageRate(key string, fallback int64) int64 {
	if t, ok := c.types[key]; ok {
		return t.WageRate
	}
	return fallback
}

// IncomeBonusBps returns the passive revenue modifier for a type, zero when
// the type is unknown.
func (c *Catalog) IncomeBonusBps(key string) int64 {
	if t, ok := c.types[key]; ok {
		return t.IncomeBonusBps
	}
	return 0
}
