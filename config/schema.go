package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// Schema is the printkit configuration schema used when Options names none.
//
//go:embed schema.cue
var Schema string

// schema is a compiled CUE schema. A schema is immutable once built; reloads
// compile a new one.
type schema struct {
	ctx   *cue.Context
	value cue.Value
}

func compileSchema(content, filename string) (*schema, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("schema content cannot be empty")
	}
	ctx := cuecontext.New()
	value := ctx.CompileString(content, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE schema: %w", err)
	}
	return &schema{ctx: ctx, value: value}, nil
}

// loadSchema compiles a single .cue file or every file of the package in a
// directory.
func loadSchema(path string) (*schema, error) {
	cleanPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve schema path %s: %w", path, err)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("schema path %s does not exist: %w", cleanPath, err)
	}

	if !info.IsDir() {
		content, err := safeReadFile(cleanPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file: %w", err)
		}
		return compileSchema(string(content), cleanPath)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: cleanPath})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE files found in directory %s", cleanPath)
	}
	if err := instances[0].Err; err != nil {
		return nil, fmt.Errorf("failed to load CUE files: %w", err)
	}

	ctx := cuecontext.New()
	value := ctx.BuildInstance(instances[0])
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to build CUE schema: %w", err)
	}
	return &schema{ctx: ctx, value: value}, nil
}

// defaults unifies the schema with an empty document and decodes the
// result, which resolves every default marker.
func (s *schema) defaults() (map[string]any, error) {
	unified := s.value.Unify(s.ctx.Encode(map[string]any{}))
	if err := unified.Err(); err != nil {
		return nil, fmt.Errorf("failed to unify schema with empty config: %w", err)
	}

	var defaults map[string]any
	if err := unified.Decode(&defaults); err != nil {
		return nil, fmt.Errorf("failed to decode defaults: %w", err)
	}
	return defaults, nil
}

// validate reports the first schema violation in data.
func (s *schema) validate(data map[string]any) error {
	encoded := s.ctx.Encode(data)
	if err := encoded.Err(); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	unified := s.value.Unify(encoded)
	if err := unified.Validate(); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError turns "path: message" into a friendlier form.
func formatValidationError(err error) error {
	path, message, ok := strings.Cut(err.Error(), ":")
	if !ok {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return fmt.Errorf("validation error at '%s': %s", strings.TrimSpace(path), strings.TrimSpace(message))
}
