package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-lineage/pkg/lineage"
)

// Fixture is a static catalog snapshot, used by tests and by the CLI when no
// live catalog is configured. It is read from YAML; JSON documents parse too.
type Fixture struct {
	Entities      []lineage.Node `yaml:"entities"`
	Relationships []RawEdge      `yaml:"relationships"`
}

// LoadFixture reads a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	f, err := ParseFixture(data)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return f, nil
}

// ParseFixture decodes a fixture document.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	seen := make(map[lineage.NodeID]bool, len(f.Entities))
	for i, e := range f.Entities {
		if e.ID == "" {
			return nil, fmt.Errorf("entity %d has no id", i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("duplicate entity id %q", e.ID)
		}
		seen[e.ID] = true
	}
	return &f, nil
}
