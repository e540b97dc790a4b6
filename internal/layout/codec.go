package layout

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Format is a layout file encoding.
type Format int

const (
	FormatTOML Format = iota
	FormatJSON
	FormatYAML
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return "toml"
	}
}

// FormatFromPath picks the format from the file extension. Unknown
// extensions (including the legacy .ini) are read as TOML.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

//go:embed layout.schema.json
var schemaJSON string

const schemaURL = "inputoverlay://layout.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func jsonSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Parse reads and validates the layout at path. A missing file yields an
// error satisfying errors.Is(err, fs.ErrNotExist).
func Parse(path string) (*Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	l, err := Decode(f, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return l, nil
}

// Decode reads a layout in the given format and validates it.
func Decode(r io.Reader, format Format) (*Layout, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}

	l := &Layout{}
	switch format {
	case FormatJSON:
		if err := validateJSON(data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if err := json.Unmarshal(data, l); err != nil {
			return nil, fmt.Errorf("%w: decode JSON: %v", ErrMalformed, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, l); err != nil {
			return nil, fmt.Errorf("%w: decode YAML: %v", ErrMalformed, err)
		}
	default:
		if _, err := toml.Decode(string(data), l); err != nil {
			return nil, fmt.Errorf("%w: decode TOML: %v", ErrMalformed, err)
		}
	}

	if l.Version == 0 {
		l.Version = Version
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return l, nil
}

func validateJSON(data []byte) error {
	s, err := jsonSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode JSON: %w", err)
	}
	return s.Validate(doc)
}

// Encode writes the layout in the given format.
func Encode(w io.Writer, l *Layout, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(l)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(l); err != nil {
			return err
		}
		return enc.Close()
	default:
		return toml.NewEncoder(w).Encode(l)
	}
}

// Save writes the layout to path, choosing the format by extension.
// The file is replaced atomically.
func Save(path string, l *Layout) error {
	var buf bytes.Buffer
	if err := Encode(&buf, l, FormatFromPath(path)); err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write layout: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace layout: %w", err)
	}
	return nil
}
