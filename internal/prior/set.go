package prior

import (
	"fmt"
	"maps"
	"slices"
)

// Set is the catalog of fittable parameters.
//
// Keys are sorted once at construction. The i-th entry of every parameter
// vector handled by the optimizer is the parameter named Keys()[i]; this
// ordering never changes for the lifetime of the Set.
type Set struct {
	params map[string]*Parameter
	keys   []string
}

// NewSet builds a catalog from the given parameters.
func NewSet(params ...*Parameter) (*Set, error) {
	s := &Set{params: make(map[string]*Parameter, len(params))}
	for _, p := range params {
		if _, dup := s.params[p.Name]; dup {
			return nil, &ConfigError{Code: ErrCodeDuplicate, Message: "parameter declared twice", Parameter: p.Name}
		}
		s.params[p.Name] = p
	}
	s.keys = slices.Sorted(maps.Keys(s.params))
	return s, nil
}

// Keys returns the sorted parameter names.
func (s *Set) Keys() []string { return slices.Clone(s.keys) }

// Len returns the number of parameters.
func (s *Set) Len() int { return len(s.keys) }

// Get returns the named parameter.
func (s *Set) Get(name string) (*Parameter, bool) {
	p, ok := s.params[name]
	return p, ok
}

// At returns the parameter at vector position i.
func (s *Set) At(i int) *Parameter { return s.params[s.keys[i]] }

// Vector converts a name-keyed mapping into a vector in key order. Every
// catalog key must be present.
func (s *Set) Vector(values map[string]float64) ([]float64, error) {
	vec := make([]float64, len(s.keys))
	for i, k := range s.keys {
		v, ok := values[k]
		if !ok {
			return nil, fmt.Errorf("missing value for parameter %q", k)
		}
		vec[i] = v
	}
	if len(values) != len(s.keys) {
		for k := range values {
			if _, ok := s.params[k]; !ok {
				return nil, fmt.Errorf("value for unknown parameter %q", k)
			}
		}
	}
	return vec, nil
}

// Mapping converts a vector in key order back into a name-keyed mapping.
func (s *Set) Mapping(vec []float64) (map[string]float64, error) {
	if err := s.checkLen(vec); err != nil {
		return nil, err
	}
	m := make(map[string]float64, len(vec))
	for i, k := range s.keys {
		m[k] = vec[i]
	}
	return m, nil
}

// InitialVector returns every parameter's initial value in key order.
func (s *Set) InitialVector() []float64 {
	vec := make([]float64, len(s.keys))
	for i, k := range s.keys {
		vec[i] = s.params[k].Initial
	}
	return vec
}

// Bounds returns the lower and upper support bounds in key order.
func (s *Set) Bounds() (lo, hi []float64) {
	lo = make([]float64, len(s.keys))
	hi = make([]float64, len(s.keys))
	for i, k := range s.keys {
		lo[i], hi[i] = s.params[k].Support.Lo, s.params[k].Support.Hi
	}
	return lo, hi
}

// Clip limits each entry of vec to its parameter's support, in place.
func (s *Set) Clip(vec []float64) {
	for i, k := range s.keys {
		vec[i] = s.params[k].Support.Clip(vec[i])
	}
}

// LogDensity evaluates the named parameter's prior at x.
func (s *Set) LogDensity(name string, x float64) (float64, error) {
	p, ok := s.params[name]
	if !ok {
		return 0, fmt.Errorf("unknown parameter %q", name)
	}
	return p.LogDensity(x), nil
}

// VectorLogDensity sums the prior log densities over all keys in sorted
// order, matching vec[i] to Keys()[i].
func (s *Set) VectorLogDensity(vec []float64) (float64, error) {
	if err := s.checkLen(vec); err != nil {
		return 0, err
	}
	var total float64
	for i, k := range s.keys {
		total += s.params[k].LogDensity(vec[i])
	}
	return total, nil
}

// SetFitted records the calibrated vector on each parameter.
func (s *Set) SetFitted(vec []float64) error {
	if err := s.checkLen(vec); err != nil {
		return err
	}
	for i, k := range s.keys {
		s.params[k].Fitted = vec[i]
	}
	return nil
}

// Fitted returns the fitted values by name. Parameters not yet fitted are
// reported as NaN.
func (s *Set) Fitted() map[string]float64 {
	m := make(map[string]float64, len(s.keys))
	for _, k := range s.keys {
		m[k] = s.params[k].Fitted
	}
	return m
}

func (s *Set) checkLen(vec []float64) error {
	if len(vec) != len(s.keys) {
		return fmt.Errorf("parameter vector has %d entries, catalog has %d", len(vec), len(s.keys))
	}
	return nil
}
