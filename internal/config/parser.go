package config

import (
	"fmt"
	"io"
	"io/fs"
	"os"
)

// LoadFile reads, parses, expands and validates the configuration at path.
func LoadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Load(content)
}

// LoadFromFS is LoadFile for configurations held in an fs.FS.
func LoadFromFS(fsys fs.FS, path string) (*Config, error) {
	content, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config from FS %s: %w", path, err)
	}
	return Load(content)
}

// LoadReader is LoadFile for configurations streamed from r.
func LoadReader(r io.Reader) (*Config, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Load(content)
}

// Load parses Lua configuration content, expands environment references and
// validates the result.
func Load(content []byte) (*Config, error) {
	p := NewLuaConfigParser()
	defer p.Close()

	cfg, err := p.Parse(content)
	if err != nil {
		return nil, err
	}
	ExpandEnvConfig(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
