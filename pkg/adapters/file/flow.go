// Package file reads and writes flow definitions as JSON or YAML documents.
package file

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/botflow/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a flow document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor infers the format from a file extension. Unknown extensions are JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ParseFlow decodes a flow document.
func ParseFlow(data []byte, format Format) (*domain.FlowDefinition, error) {
	var def domain.FlowDefinition
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("failed to parse yaml flow: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("failed to parse json flow: %w", err)
		}
	}
	return &def, nil
}

// ReadFlow loads the flow stored at path.
func ReadFlow(path string) (*domain.FlowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}
	def, err := ParseFlow(data, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// WriteFlow stores def at path atomically, in the format implied by its extension.
func WriteFlow(path string, def *domain.FlowDefinition) error {
	var (
		data []byte
		err  error
	)
	if FormatFor(path) == FormatYAML {
		data, err = yaml.Marshal(def)
	} else {
		data, err = json.MarshalIndent(def, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal flow: %w", err)
	}
	return writeAtomic(path, data)
}

// writeAtomic writes to a temp file in the same directory, fsyncs and renames.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to ensure flow directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
