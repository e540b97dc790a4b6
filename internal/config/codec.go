package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Configuration file encodings, named by extension.
const (
	FormatTOML = "toml"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// formatOf returns the encoding implied by path's extension, or "".
func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	return ""
}

func decode(format string, data []byte, cfg *Config) error {
	switch format {
	case FormatTOML:
		_, err := toml.Decode(string(data), cfg)
		return err
	case FormatJSON:
		return json.Unmarshal(data, cfg)
	case FormatYAML:
		return yaml.Unmarshal(data, cfg)
	}
	return fmt.Errorf("unsupported config format %q", format)
}

// EncodeAs renders the configuration in format ("toml", "json", "yaml"
// or "yml"). TOML output starts with a version header comment.
func (c *Config) EncodeAs(format string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch format {
	case FormatTOML, "":
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "# inputoverlay configuration\n# Version %d\n\n", c.Version)
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatJSON:
		out, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case FormatYAML, "yml":
		return yaml.Marshal(c)
	}
	return nil, fmt.Errorf("unsupported config format %q", format)
}

// Encode writes the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	return c.EncodeAs(FormatTOML)
}

// loadConfigFromFile decodes path over the defaults. A missing file yields
// the defaults. A file without a known extension is tried as TOML, JSON and
// YAML in turn.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if format := formatOf(path); format != "" {
		cfg := DefaultConfig()
		if err := decode(format, data, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", strings.ToUpper(format), err)
		}
		return cfg, nil
	}
	for _, format := range []string{FormatTOML, FormatJSON, FormatYAML} {
		cfg := DefaultConfig()
		if decode(format, data, cfg) == nil {
			return cfg, nil
		}
	}
	return nil, fmt.Errorf("parse config %s: not TOML, JSON or YAML", path)
}

// SaveConfig writes cfg to path in the encoding its extension names,
// TOML by default, creating the directory as needed.
func SaveConfig(cfg *Config, path string) error {
	data, err := cfg.EncodeAs(formatOf(path))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
