// Package config loads the layered workspace configuration: global file,
// then workspace file, then environment overrides. Storage paths are
// always forced workspace-relative after loading.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"

	"github.com/codeturn-ai/opencode/pkg/types"
)

// Load loads configuration in increasing priority:
//  1. Global config (<config>/opencode/config.json[c])
//  2. Workspace config (<directory>/.opencode/config.json[c])
//  3. A .env file in directory, then actual environment variables
//
// After loading, storage paths are forced to be workspace-relative
// regardless of what any config file says, so a config copied from another
// workspace can never point at someone else's sessions.
func Load(directory string) (*types.Configuration, error) {
	cfg := &types.Configuration{Command: make(map[string]types.CommandConfig)}

	globalDir := GetPaths().Config
	loadConfigFile(filepath.Join(globalDir, "config.json"), cfg, types.ScopeGlobal)
	loadConfigFile(filepath.Join(globalDir, "config.jsonc"), cfg, types.ScopeGlobal)

	if directory != "" {
		_ = godotenv.Load(filepath.Join(directory, ".env"))
		loadConfigFile(filepath.Join(directory, ".opencode", "config.json"), cfg, types.ScopeWorkspace)
		loadConfigFile(filepath.Join(directory, ".opencode", "config.jsonc"), cfg, types.ScopeWorkspace)
	}

	applyEnvOverrides(cfg)
	forceWorkspaceStorage(cfg, directory)

	return cfg, nil
}

// forceWorkspaceStorage pins Storage.SessionDir/ConfigDir under
// directory/.opencode.
func forceWorkspaceStorage(cfg *types.Configuration, directory string) {
	if directory == "" {
		return
	}
	base := filepath.Join(directory, ".opencode")
	cfg.Storage = types.StorageConfig{
		SessionDir: filepath.Join(base, "sessions"),
		ConfigDir:  base,
	}
}

// loadConfigFile merges a single JSON or JSONC file into cfg, stamping its
// command entries with the scope that declared them. A missing file is
// skipped, not an error.
func loadConfigFile(path string, cfg *types.Configuration, scope string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var fileConfig types.Configuration
	if err := json.Unmarshal(jsonc.ToJSON(data), &fileConfig); err != nil {
		return
	}
	for name, cmd := range fileConfig.Command {
		cmd.Scope = scope
		fileConfig.Command[name] = cmd
	}
	mergeConfig(cfg, &fileConfig)
}

// mergeConfig folds source into target, source winning. The command table
// merges key-by-key so a workspace can override one command without
// restating the rest.
func mergeConfig(target, source *types.Configuration) {
	if len(source.Providers) > 0 {
		target.Providers = source.Providers
	}
	if source.Model != "" {
		target.Model = source.Model
	}
	if source.DefaultAgent != "" {
		target.DefaultAgent = source.DefaultAgent
	}
	if source.MaxAgentIterations != nil {
		target.MaxAgentIterations = source.MaxAgentIterations
	}
	if source.MaxHistoryMessages != nil {
		target.MaxHistoryMessages = source.MaxHistoryMessages
	}
	if source.MaxMessageContentLen != nil {
		target.MaxMessageContentLen = source.MaxMessageContentLen
	}
	if source.Storage.SessionDir != "" || source.Storage.ConfigDir != "" {
		target.Storage = source.Storage
	}
	for name, cmd := range source.Command {
		if target.Command == nil {
			target.Command = make(map[string]types.CommandConfig)
		}
		target.Command[name] = cmd
	}
}

// providerEnvMap names the environment variables that can supply an API
// key for each well-known provider id, checked in order when the config
// file leaves it blank.
var providerEnvMap = map[string][]string{
	"anthropic": {"ANTHROPIC_API_KEY"},
	"openai":    {"OPENAI_API_KEY", "OPENCODE_OPENAI_API_KEY"},
	"ark":       {"ARK_API_KEY"},
	"qwen":      {"ARK_API_KEY"},
}

// applyEnvOverrides fills in provider API keys and the default agent from
// the environment, never overwriting values a config file already set.
func applyEnvOverrides(cfg *types.Configuration) {
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if p.APIKey != "" {
			continue
		}
		for _, envVar := range providerEnvMap[p.ID] {
			if key := os.Getenv(envVar); key != "" {
				p.APIKey = key
				break
			}
		}
	}

	if agent := os.Getenv("OPENCODE_AGENT"); agent != "" {
		cfg.DefaultAgent = agent
	}
}

// Save writes cfg to path atomically: marshal pretty to a temp sibling,
// then rename over the destination, the same write discipline the session
// store uses.
func Save(cfg *types.Configuration, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// SetProvider upserts a provider descriptor by id, preserving an existing
// API key when the incoming descriptor leaves it blank — a partial edit
// from a dialog must not erase a stored secret.
func SetProvider(cfg *types.Configuration, desc types.ProviderDescriptor) {
	for i := range cfg.Providers {
		if cfg.Providers[i].ID == desc.ID {
			if desc.APIKey == "" {
				desc.APIKey = cfg.Providers[i].APIKey
			}
			cfg.Providers[i] = desc
			return
		}
	}
	cfg.Providers = append(cfg.Providers, desc)
}

// SetDefaultProvider moves the named descriptor to index 0; ordering is
// how "set default" is represented.
func SetDefaultProvider(cfg *types.Configuration, id string) bool {
	for i := range cfg.Providers {
		if cfg.Providers[i].ID == id {
			if i > 0 {
				desc := cfg.Providers[i]
				cfg.Providers = append(cfg.Providers[:i], cfg.Providers[i+1:]...)
				cfg.Providers = append([]types.ProviderDescriptor{desc}, cfg.Providers...)
			}
			return true
		}
	}
	return false
}
