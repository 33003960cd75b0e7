package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"mcpflow/pkg/logging"
)

// serverFile is the on-disk shape of a definitions file.
type serverFile struct {
	Servers []ServerDefinition `yaml:"servers"`
}

// LoadServerDefinitions reads tool server definitions from a YAML file.
// Invalid definitions are skipped with a warning so one bad entry does
// not take the whole fleet down.
func LoadServerDefinitions(path string) ([]ServerDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read server definitions from %s: %w", path, err)
	}

	var file serverFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse server definitions from %s: %w", path, err)
	}

	definitions := make([]ServerDefinition, 0, len(file.Servers))
	for i := range file.Servers {
		def := file.Servers[i]
		if err := ValidateDefinition(&def); err != nil {
			logging.Warn("Config", "Skipping server definition %q: %v", def.Name, err)
			continue
		}
		definitions = append(definitions, def)
	}

	logging.Info("Config", "Loaded %d server definitions from %s", len(definitions), path)
	return definitions, nil
}
