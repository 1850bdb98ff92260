package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// sampleConfigHeader is prepended to a generated config file.
const sampleConfigHeader = `# wirerpcd configuration file
#
# Precedence (highest to lowest): CLI flags > environment (WIRERPC_*) >
# this file > built-in defaults.

`

// InitConfig writes a commented sample configuration to the default
// location ($XDG_CONFIG_HOME/wirerpc/config.yaml), refusing to overwrite
// an existing file unless force is set. It returns the path written.
func InitConfig(force bool) (string, error) {
	return InitConfigToPath(DefaultConfigPath(), force)
}

// InitConfigToPath writes a commented sample configuration to path.
func InitConfigToPath(path string, force bool) (string, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	body, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return "", fmt.Errorf("marshaling default config: %w", err)
	}

	content := append([]byte(sampleConfigHeader), body...)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}

	return path, nil
}

// DefaultConfigExists reports whether a config file is present at the
// default search location.
func DefaultConfigExists() bool {
	_, err := os.Stat(DefaultConfigPath())
	return err == nil
}
