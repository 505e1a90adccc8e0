package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules is the optional operator-tuned rules file. Every section is
// optional; empty sections fall back to the built-in defaults.
type Rules struct {
	Extraction struct {
		// Labels maps a lowercased label prefix (e.g. "ip address:") to the
		// field it feeds: pid, path, args, ip, port, dns.
		Labels map[string]string `yaml:"labels"`
		// NameExclusions are lowercased tokens never accepted as a bare
		// process name.
		NameExclusions []string `yaml:"name_exclusions"`
	} `yaml:"extraction"`

	Prompt struct {
		KnownSafe []string `yaml:"known_safe"`
		Suspicion []string `yaml:"suspicion"`
	} `yaml:"prompt"`
}

// LoadRules parses the YAML rules file at path.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadRules: %w", err)
	}
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("LoadRules: parse %s: %w", path, err)
	}
	return &r, nil
}
