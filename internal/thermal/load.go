package thermal

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadNetwork reads a Foster ladder description from a YAML file.
func LoadNetwork(path string) (*FosterNetwork, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	n := &FosterNetwork{}
	if err := yaml.Unmarshal(data, n); err != nil {
		return nil, err
	}
	if len(n.Stages) == 0 {
		return nil, ErrNoStages
	}
	for i, s := range n.Stages {
		if s.R <= 0 || s.Tau <= 0 {
			return nil, fmt.Errorf("thermal: stage %d needs positive r and tau", i)
		}
	}
	return n, nil
}
