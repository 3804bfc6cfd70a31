// Package schematic holds the editor-facing circuit description: components,
// their pin-to-node bindings, and free-form parameters. It is the input to
// the netlist builder and deliberately knows nothing about the solver.
package schematic

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Pin binds a named terminal to a node alias. An empty Node means the pin is
// unconnected to any named net; the netlist builder synthesizes a label from
// the component and pin identifiers.
type Pin struct {
	Name string `yaml:"name"`
	Node string `yaml:"node,omitempty"`
}

// Layout carries editor placement metadata. It never affects electrical
// behavior; engines that understand placement may consume it best-effort.
type Layout struct {
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Rotation int     `yaml:"rotation,omitempty"`
	Mirror   bool    `yaml:"mirror,omitempty"`
}

// Component is one schematic entity: a typed device or signal block with
// ordered pins and a free-form parameter map.
type Component struct {
	ID     string         `yaml:"id"`
	Type   ComponentType  `yaml:"type"`
	Name   string         `yaml:"name,omitempty"`
	Pins   []Pin          `yaml:"pins"`
	Params map[string]any `yaml:"params,omitempty"`
	Layout Layout         `yaml:"layout,omitempty"`
}

// DisplayName returns the user-visible name, falling back to the ID.
func (c *Component) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// FloatParam reads a numeric parameter, accepting the numeric kinds YAML
// decoding produces. Returns def when the key is absent or non-numeric.
func (c *Component) FloatParam(key string, def float64) float64 {
	v, ok := c.Params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return def
}

// StringParam reads a string parameter, returning def when absent.
func (c *Component) StringParam(key, def string) string {
	if v, ok := c.Params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Schematic is the full component graph as drawn.
type Schematic struct {
	Title      string      `yaml:"title,omitempty"`
	Components []Component `yaml:"components"`
}

// Validate checks structural soundness: unique IDs and known types.
func (s *Schematic) Validate() error {
	seen := make(map[string]struct{}, len(s.Components))
	for i := range s.Components {
		c := &s.Components[i]
		if c.ID == "" {
			return fmt.Errorf("schematic: component %d has empty id", i)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("schematic: duplicate component id %q", c.ID)
		}
		seen[c.ID] = struct{}{}
		if c.Type == TypeUnknown {
			return fmt.Errorf("schematic: component %q has unknown type", c.ID)
		}
	}
	return nil
}

// Clone deep-copies the schematic so sweeps can mutate parameters without
// touching the original.
func (s *Schematic) Clone() *Schematic {
	out := &Schematic{
		Title:      s.Title,
		Components: make([]Component, len(s.Components)),
	}
	for i, c := range s.Components {
		cc := c
		cc.Pins = append([]Pin(nil), c.Pins...)
		if c.Params != nil {
			cc.Params = make(map[string]any, len(c.Params))
			for k, v := range c.Params {
				cc.Params[k] = v
			}
		}
		out.Components[i] = cc
	}
	return out
}

// FindComponent returns the component with the given id, or nil.
func (s *Schematic) FindComponent(id string) *Component {
	for i := range s.Components {
		if s.Components[i].ID == id {
			return &s.Components[i]
		}
	}
	return nil
}

// Load reads a schematic from a YAML file.
func Load(path string) (*Schematic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Schematic
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save writes the schematic to a YAML file.
func Save(path string, s *Schematic) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
