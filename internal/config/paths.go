package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths names the platform user directories opencode uses for global
// state; per-workspace state lives under <workspace>/.opencode instead.
type Paths struct {
	Config string // <config>/opencode
	Data   string // <data>/opencode
}

// GetPaths resolves the platform paths, honoring XDG overrides.
func GetPaths() *Paths {
	return &Paths{
		Config: filepath.Join(envOr("XDG_CONFIG_HOME", defaultConfigHome()), "opencode"),
		Data:   filepath.Join(envOr("XDG_DATA_HOME", defaultDataHome()), "opencode"),
	}
}

// EnsurePaths creates the global directories.
func (p *Paths) EnsurePaths() error {
	for _, dir := range []string{p.Config, p.Data} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// GlobalConfigPath returns the global config file path.
func GlobalConfigPath() string {
	return filepath.Join(GetPaths().Config, "config.json")
}

// ProjectConfigPath returns the workspace config file path.
func ProjectConfigPath(directory string) string {
	return filepath.Join(directory, ".opencode", "config.json")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultConfigHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".config")
}

func defaultDataHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "share")
}
