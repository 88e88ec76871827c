package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type document struct {
	Videos []Video `yaml:"videos"`
}

// Parse decodes a YAML catalog document of the form `videos: [...]`.
func Parse(data []byte) ([]Video, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := Validate(doc.Videos); err != nil {
		return nil, err
	}
	return doc.Videos, nil
}

// LoadFile reads and parses the catalog at path.
func LoadFile(path string) ([]Video, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}
