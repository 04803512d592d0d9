package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// File is the on-disk shape of a configuration file.
type File struct {
	Settings Settings       `toml:"settings"`
	Clients  []ClientConfig `toml:"client"`
}

// Load reads a TOML configuration file and returns its client
// configurations and settings.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes TOML configuration data.
func Parse(data []byte) (*File, error) {
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	seen := make(map[string]bool, len(f.Clients))
	for i, c := range f.Clients {
		if c.Name == "" {
			return nil, fmt.Errorf("client %d: missing name", i)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("client %q: duplicate name", c.Name)
		}
		seen[c.Name] = true
	}

	return &f, nil
}
