// Package calc provides named scoring calculators over district snapshots.
// Calculator names appear in configuration; resolution happens at load time
// so a typo fails startup instead of a request.
package calc

import (
	"context"
	"fmt"

	"github.com/PublicMapping/districtcore/internal/domain/geounit"
	"github.com/PublicMapping/districtcore/internal/domain/stats"
)

// Input is the district material a calculator scores: its cached aggregates
// and its member units.
type Input struct {
	Computed []stats.ComputedCharacteristic
	Units    []geounit.GeoUnit
}

// Result is one calculator's score for one district.
type Result struct {
	Calculator string  `json:"calculator"`
	Value      float64 `json:"value"`
}

// Calculator scores one district.
type Calculator interface {
	Name() string
	Compute(ctx context.Context, in Input) (Result, error)
}

// Registry resolves calculator names to implementations.
type Registry struct {
	byName map[string]Calculator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Calculator)}
}

// Register adds a calculator. A duplicate name is an error so configuration
// mistakes surface at load time.
func (r *Registry) Register(c Calculator) error {
	if _, ok := r.byName[c.Name()]; ok {
		return fmt.Errorf("calculator %q already registered", c.Name())
	}
	r.byName[c.Name()] = c
	return nil
}

// Resolve returns the named calculator.
func (r *Registry) Resolve(name string) (Calculator, error) {
	c, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown calculator %q", name)
	}
	return c, nil
}

// Names returns the registered calculator names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}

func aggregate(in Input, subject string) (stats.ComputedCharacteristic, bool) {
	for _, cc := range in.Computed {
		if cc.Subject == subject {
			return cc, true
		}
	}
	return stats.ComputedCharacteristic{}, false
}
