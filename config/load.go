package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"
)

const maxConfigFileSize = 10 * 1024 * 1024

// readConfigFile reads a YAML or JSON file, expands environment references
// and decodes it through CUE.
func readConfigFile(path string) (map[string]any, error) {
	cleanPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %s: %w", path, err)
	}

	content, err := safeReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}
	content = expandEnv(content)

	if err := checkContent(content, cleanPath); err != nil {
		return nil, err
	}

	ctx := cuecontext.New()
	var value cue.Value
	switch ext := strings.ToLower(filepath.Ext(cleanPath)); ext {
	case ".yaml", ".yml":
		file, err := yaml.Extract(cleanPath, content)
		if err != nil {
			return nil, fmt.Errorf("failed to extract YAML config: %w", err)
		}
		value = ctx.BuildFile(file)
	case ".json":
		value = ctx.CompileBytes(content, cue.Filename(cleanPath))
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", cleanPath, err)
	}

	var config map[string]any
	if err := value.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", cleanPath, err)
	}
	if config == nil {
		config = map[string]any{}
	}
	return config, nil
}

// expandEnv replaces ${VAR:-default} first and then $VAR and ${VAR}.
// References to unset variables without a default expand to "".
func expandEnv(content []byte) []byte {
	s := string(content)
	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			break
		}
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			break
		}
		end += start

		expr := s[start+2 : end]
		name, fallback, hasDefault := strings.Cut(expr, ":-")
		b.WriteString(s[:start])
		if hasDefault {
			if v := os.Getenv(name); v != "" {
				b.WriteString(v)
			} else {
				b.WriteString(fallback)
			}
		} else {
			b.WriteString(s[start : end+1])
		}
		s = s[end+1:]
	}
	b.WriteString(s)
	return []byte(os.ExpandEnv(b.String()))
}

// checkContent rejects empty and comment-only files.
func checkContent(content []byte, path string) error {
	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return fmt.Errorf("configuration file %s is empty", path)
	}
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			return nil
		}
	}
	return fmt.Errorf("configuration file %s contains only comments", path)
}

// merge overlays user on defaults, recursing where both sides are maps.
func merge(defaults, user map[string]any) map[string]any {
	out := deepCopy(defaults)
	for key, value := range user {
		if base, ok := out[key].(map[string]any); ok {
			if overlay, ok := value.(map[string]any); ok {
				out[key] = merge(base, overlay)
				continue
			}
		}
		out[key] = value
	}
	return out
}

func valueAt(data map[string]any, path string) (any, error) {
	if path == "" {
		return data, nil
	}

	current := data
	parts := strings.Split(path, ".")
	for i, part := range parts {
		value, ok := current[part]
		if !ok {
			return nil, fmt.Errorf("path %s not found", path)
		}
		if i == len(parts)-1 {
			return value, nil
		}
		next, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("path %s: cannot navigate through non-map value", path)
		}
		current = next
	}
	return nil, fmt.Errorf("path %s not found", path)
}

func deepCopy(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		if nested, ok := value.(map[string]any); ok {
			out[key] = deepCopy(nested)
			continue
		}
		out[key] = value
	}
	return out
}

// safeReadFile reads a regular file after rejecting traversal, sensitive
// system paths and files over 10MB.
func safeReadFile(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return nil, errors.New("invalid file path: contains directory traversal")
	}
	if filepath.IsAbs(cleanPath) {
		for _, denied := range []string{"/etc/passwd", "/etc/shadow", "/proc/", "/sys/"} {
			if strings.HasPrefix(cleanPath, denied) {
				return nil, fmt.Errorf("access to system directory not allowed: %s", denied)
			}
		}
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("file validation failed: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, errors.New("path must be a regular file")
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return os.ReadFile(cleanPath)
}
