package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Mapping turns raw telemetry field names into the measurement layout the
// readings sink expects. Instruments print whatever names their firmware
// authors picked; the mapping renames, tags, and drops them.
type Mapping struct {
	Measurement string            `yaml:"measurement"`
	Tags        map[string]string `yaml:"tags"`
	Rename      map[string]string `yaml:"rename"`
	Drop        []string          `yaml:"drop"`
}

func LoadMapping(path string) (Mapping, error) {
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path comes from the user's own flags.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		return Mapping{}, fmt.Errorf("read mapping: %w", err)
	}

	var m Mapping
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Mapping{}, fmt.Errorf("decode mapping yaml: %w", err)
	}
	if m.Measurement == "" {
		return Mapping{}, fmt.Errorf("mapping %s has no measurement name", path)
	}

	return m, nil
}

// FieldName maps a raw field name to its sink name. The second return is
// false when the field is dropped.
func (m Mapping) FieldName(raw string) (string, bool) {
	for _, dropped := range m.Drop {
		if raw == dropped {
			return "", false
		}
	}
	if renamed, ok := m.Rename[raw]; ok {
		return renamed, true
	}

	return raw, true
}
