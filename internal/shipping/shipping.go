// Package shipping prices delivery by governorate with a flat fee table.
package shipping

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rates.yaml
var defaultRates []byte

// Governorate is one entry of the fee table.
type Governorate struct {
	Name string  `json:"name"`
	Fee  float64 `json:"fee"`
}

type tier struct {
	Fee          float64  `yaml:"fee"`
	Governorates []string `yaml:"governorates"`
}

type ratesFile struct {
	Tiers []tier `yaml:"tiers"`
}

// Table maps governorate names to flat fees.
type Table struct {
	fees  map[string]float64
	order []Governorate
}

// Default returns the built-in table.
func Default() *Table {
	t, err := Parse(defaultRates)
	if err != nil {
		panic(fmt.Sprintf("embedded shipping rates: %v", err))
	}
	return t
}

// Load reads the table from path, or returns Default when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shipping rates: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML rates document.
func Parse(data []byte) (*Table, error) {
	var f ratesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse shipping rates: %w", err)
	}
	if len(f.Tiers) == 0 {
		return nil, errors.New("shipping rates: no tiers")
	}

	t := &Table{fees: map[string]float64{}}
	for _, tr := range f.Tiers {
		if tr.Fee < 0 {
			return nil, fmt.Errorf("shipping rates: negative fee %v", tr.Fee)
		}
		for _, name := range tr.Governorates {
			name = strings.TrimSpace(name)
			if _, dup := t.fees[name]; dup {
				return nil, fmt.Errorf("shipping rates: %q listed twice", name)
			}
			t.fees[name] = tr.Fee
			t.order = append(t.order, Governorate{Name: name, Fee: tr.Fee})
		}
	}
	return t, nil
}

// Cost returns the fee for governorate, or 0 when it is not in the table.
func (t *Table) Cost(governorate string) float64 {
	return t.fees[strings.TrimSpace(governorate)]
}

// Known reports whether governorate has an entry.
func (t *Table) Known(governorate string) bool {
	_, ok := t.fees[strings.TrimSpace(governorate)]
	return ok
}

// Governorates lists the table in file order.
func (t *Table) Governorates() []Governorate {
	out := make([]Governorate, len(t.order))
	copy(out, t.order)
	return out
}
