package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeturn-ai/opencode/pkg/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func withGlobalConfig(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	return home
}

func TestLoad_WorkspaceOverridesGlobal(t *testing.T) {
	home := withGlobalConfig(t)
	writeFile(t, filepath.Join(home, ".config", "opencode", "config.json"), `{
		"default_agent": "build",
		"providers": [{"id": "anthropic", "kind": "anthropic"}]
	}`)

	workspace := t.TempDir()
	writeFile(t, filepath.Join(workspace, ".opencode", "config.json"), `{
		"default_agent": "plan"
	}`)

	cfg, err := Load(workspace)
	require.NoError(t, err)
	assert.Equal(t, "plan", cfg.DefaultAgent)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "anthropic", cfg.Providers[0].ID)
}

func TestLoad_JSONCComments(t *testing.T) {
	withGlobalConfig(t)
	workspace := t.TempDir()
	writeFile(t, filepath.Join(workspace, ".opencode", "config.jsonc"), `{
		// default agent for this workspace
		"default_agent": "build"
	}`)

	cfg, err := Load(workspace)
	require.NoError(t, err)
	assert.Equal(t, "build", cfg.DefaultAgent)
}

func TestLoad_ForcesWorkspaceRelativeStorage(t *testing.T) {
	withGlobalConfig(t)
	workspace := t.TempDir()
	writeFile(t, filepath.Join(workspace, ".opencode", "config.json"), `{
		"storage": {"session_dir": "/somewhere/else", "config_dir": "/somewhere/else"}
	}`)

	cfg, err := Load(workspace)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(workspace, ".opencode", "sessions"), cfg.Storage.SessionDir)
	assert.Equal(t, filepath.Join(workspace, ".opencode"), cfg.Storage.ConfigDir)
}

func TestLoad_StampsCommandScopes(t *testing.T) {
	home := withGlobalConfig(t)
	writeFile(t, filepath.Join(home, ".config", "opencode", "config.json"), `{
		"command": {"audit": {"template": "audit it"}}
	}`)

	workspace := t.TempDir()
	writeFile(t, filepath.Join(workspace, ".opencode", "config.json"), `{
		"command": {"deploy": {"template": "ship it"}}
	}`)

	cfg, err := Load(workspace)
	require.NoError(t, err)
	assert.Equal(t, types.ScopeGlobal, cfg.Command["audit"].Scope)
	assert.Equal(t, types.ScopeWorkspace, cfg.Command["deploy"].Scope)
}

func TestApplyEnvOverrides_DoesNotClobberConfigValue(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	cfg := &types.Configuration{
		Providers: []types.ProviderDescriptor{{ID: "anthropic", Kind: types.ProviderKindAnthropic, APIKey: "from-config"}},
	}
	applyEnvOverrides(cfg)
	assert.Equal(t, "from-config", cfg.Providers[0].APIKey)
}

func TestApplyEnvOverrides_FillsBlankAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	cfg := &types.Configuration{
		Providers: []types.ProviderDescriptor{{ID: "anthropic", Kind: types.ProviderKindAnthropic}},
	}
	applyEnvOverrides(cfg)
	assert.Equal(t, "env-key", cfg.Providers[0].APIKey)
}


func TestSave_AtomicWriteThenRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := &types.Configuration{DefaultAgent: "build"}
	require.NoError(t, Save(cfg, path))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "build")
}

func TestSetProvider_PreservesExistingAPIKey(t *testing.T) {
	cfg := &types.Configuration{
		Providers: []types.ProviderDescriptor{{ID: "anthropic", APIKey: "secret"}},
	}
	SetProvider(cfg, types.ProviderDescriptor{ID: "anthropic", Model: "claude-opus"})
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "secret", cfg.Providers[0].APIKey)
	assert.Equal(t, "claude-opus", cfg.Providers[0].Model)
}

func TestSetDefaultProvider_Reorders(t *testing.T) {
	cfg := &types.Configuration{
		Providers: []types.ProviderDescriptor{
			{ID: "anthropic"}, {ID: "openai"}, {ID: "ollama"},
		},
	}
	ok := SetDefaultProvider(cfg, "ollama")
	require.True(t, ok)
	assert.Equal(t, "ollama", cfg.Providers[0].ID)
	assert.Equal(t, "anthropic", cfg.Providers[1].ID)
	assert.Equal(t, "openai", cfg.Providers[2].ID)
}

func TestSetDefaultProvider_UnknownID(t *testing.T) {
	cfg := &types.Configuration{Providers: []types.ProviderDescriptor{{ID: "anthropic"}}}
	assert.False(t, SetDefaultProvider(cfg, "missing"))
}
