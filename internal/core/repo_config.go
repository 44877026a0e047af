package core

// RepoConfig carries per-repository review settings, loaded from an
// optional .githawk.yml at the repository root.
type RepoConfig struct {
	// CustomInstructions are appended verbatim to the review prompt.
	CustomInstructions []string `yaml:"custom_instructions"`
	// ExcludeExts are file extensions (without dot) skipped during indexing,
	// in addition to the built-in binary filter.
	ExcludeExts []string `yaml:"exclude_exts"`
	// ExcludeDirs are directory prefixes skipped during indexing.
	ExcludeDirs []string `yaml:"exclude_dirs"`
}

// DefaultRepoConfig returns the settings used when a repository carries no
// .githawk.yml of its own.
func DefaultRepoConfig() *RepoConfig {
	return &RepoConfig{
		ExcludeDirs: []string{"node_modules", "vendor", "dist", "build"},
	}
}
