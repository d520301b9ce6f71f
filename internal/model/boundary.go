package model

import "fmt"

// Subsystem names a production area by its path prefixes.
type Subsystem struct {
	Name       string   `json:"name"`
	Paths      []string `json:"paths"`
	Invariants []string `json:"invariants"`
}

func (s Subsystem) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("subsystem name is required")
	}
	if len(s.Paths) == 0 {
		return fmt.Errorf("subsystem %q has no path prefixes", s.Name)
	}
	return nil
}

// BoundaryRegistry is the named set of production subsystems used to
// bound the blast radius of implementation beads and to keep discovery
// beads out of production paths.
type BoundaryRegistry struct {
	Envelope

	RegistryName string      `json:"registry_name"`
	Subsystems   []Subsystem `json:"subsystems"`
	Notes        *string     `json:"notes"`
}

// NewBoundaryRegistry returns a BoundaryRegistry with slice defaults.
func NewBoundaryRegistry() *BoundaryRegistry {
	return &BoundaryRegistry{Subsystems: []Subsystem{}}
}

func (r *BoundaryRegistry) Validate() error {
	if err := r.validateHeader(SchemaBoundary); err != nil {
		return err
	}
	if r.RegistryName == "" {
		return fmt.Errorf("registry_name is required")
	}
	for i, sub := range r.Subsystems {
		if err := sub.Validate(); err != nil {
			return fmt.Errorf("subsystems[%d]: %w", i, err)
		}
	}
	return nil
}
