package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ScenarioProvider for YAML scenario files
type YAMLProvider struct {
	filename string
}

// NewYAMLProvider creates a new YAML scenario provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadScenario reads, parses and validates the scenario file
func (y *YAMLProvider) LoadScenario() (*ScenarioData, error) {
	data, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}
	return ParseYAML(data)
}

// ParseYAML parses and validates a scenario document
func ParseYAML(data []byte) (*ScenarioData, error) {
	var s ScenarioData
	if err := yaml.UnmarshalStrict(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// IsReadOnly returns true as YAML files are read-only in this implementation
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}
