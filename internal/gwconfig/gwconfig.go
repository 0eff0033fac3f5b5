// Package gwconfig loads the Gateway's optional static configuration file,
// the YAML counterpart to its command-line flags for operators who'd rather
// check a file into version control than repeat flags on every launch.
package gwconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config mirrors reform-gatewayd's flag set. A zero field means "not set in
// the file"; the caller overlays flag defaults and explicit flags on top.
type Config struct {
	Bind     string `yaml:"bind"`
	HTTPPort int    `yaml:"http_port"`
	QUICPort int    `yaml:"quic_port"`
	CertPath string `yaml:"cert"`
	KeyPath  string `yaml:"key"`
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gwconfig: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("gwconfig: parse %s: %w", path, err)
	}
	return &c, nil
}

// Overlay returns the effective value for a flag given its command-line
// value, whether that flag was explicitly set, and the config file's value
// for the same setting. An explicit flag always wins over the file.
func Overlay(flagValue string, explicit bool, fileValue string) string {
	if explicit || fileValue == "" {
		return flagValue
	}
	return fileValue
}

// OverlayInt is Overlay for integer settings (ports).
func OverlayInt(flagValue int, explicit bool, fileValue int) int {
	if explicit || fileValue == 0 {
		return flagValue
	}
	return fileValue
}
