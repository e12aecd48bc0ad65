package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codeturn-ai/opencode/internal/command"
	"github.com/codeturn-ai/opencode/internal/config"
	"github.com/codeturn-ai/opencode/internal/headless"
)

var (
	initRefresh bool
	initDir     string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or update AGENTS.md for this workspace",
	Long: `Run the built-in init command: the agent surveys the repository and
writes (or refreshes) an AGENTS.md describing build commands and code
conventions for future agent runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		workDir, err := GetWorkDir(initDir)
		if err != nil {
			return err
		}

		if !initRefresh {
			if _, err := os.Stat(filepath.Join(workDir, "AGENTS.md")); err == nil {
				fmt.Println("AGENTS.md already exists; use --refresh to update it")
				return nil
			}
		}

		appConfig, err := config.Load(workDir)
		if err != nil {
			return err
		}

		result, err := command.NewExecutor(workDir, appConfig).Execute(cmd.Context(), "init", "")
		if err != nil {
			return err
		}

		cfg := headless.DefaultConfig()
		cfg.Prompt = result.Prompt
		cfg.WorkDir = workDir
		cfg.Model = GetGlobalModel()
		cfg.Agent = "build"

		res, err := headless.NewRunner(cfg).Run(cmd.Context(), os.Stdout)
		if res != nil && res.ExitCode != headless.ExitSuccess {
			os.Exit(int(res.ExitCode))
		}
		return err
	},
}

func init() {
	initCmd.Flags().BoolVar(&initRefresh, "refresh", false, "Update AGENTS.md even if it already exists")
	initCmd.Flags().StringVar(&initDir, "directory", "", "Workspace directory")
}
