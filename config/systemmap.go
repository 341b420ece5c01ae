package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadSystemMap reads a YAML file of `name: host:port` pairs into the
// map[string]string a Node's constructor expects. This is sugar over the
// literal map constructor the spec's API surface requires; it does not
// replace it.
func LoadSystemMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read system map %s: %w", path, err)
	}

	var m map[string]string
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("config: parse system map %s: %w", path, err)
	}
	return m, nil
}
