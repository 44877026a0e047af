package config

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/Abhijit1102/githawk/internal/core"
)

// RepoConfigPath is where a repository may keep its review settings.
const RepoConfigPath = ".githawk.yml"

var ErrRepoConfigParsing = errors.New("repo config parsing failed")

// ParseRepoConfig parses the raw contents of a .githawk.yml fetched from the
// source host. An empty document yields the defaults.
func ParseRepoConfig(data []byte) (*core.RepoConfig, error) {
	cfg := core.DefaultRepoConfig()
	if len(data) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRepoConfigParsing, err)
	}
	return cfg, nil
}
