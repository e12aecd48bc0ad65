package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codeturn-ai/opencode/internal/config"
	"github.com/codeturn-ai/opencode/pkg/types"
)

var configDir string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or reset workspace configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		workDir, err := GetWorkDir(configDir)
		if err != nil {
			return err
		}

		cfg, err := config.Load(workDir)
		if err != nil {
			return err
		}

		// API keys are secrets; show presence, not value.
		for i := range cfg.Providers {
			if cfg.Providers[i].APIKey != "" {
				cfg.Providers[i].APIKey = "(set)"
			}
		}

		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the workspace config file to defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		workDir, err := GetWorkDir(configDir)
		if err != nil {
			return err
		}

		path := config.ProjectConfigPath(workDir)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			fmt.Printf("No workspace config at %s; nothing to reset\n", path)
			return nil
		}

		if err := config.Save(&types.Configuration{}, path); err != nil {
			return err
		}
		fmt.Printf("Reset %s\n", path)
		return nil
	},
}

func init() {
	configCmd.PersistentFlags().StringVar(&configDir, "directory", "", "Workspace directory")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configResetCmd)
}
