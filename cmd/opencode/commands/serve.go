package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeturn-ai/opencode/internal/config"
	"github.com/codeturn-ai/opencode/internal/httpapi"
	"github.com/codeturn-ai/opencode/internal/logging"
	"github.com/codeturn-ai/opencode/internal/sessionstore"
	"github.com/codeturn-ai/opencode/internal/statesync"
)

var (
	servePort     int
	serveHostname string
	serveDir      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start headless OpenCode server",
	Long: `Start OpenCode as a headless server that exposes an HTTP+SSE API.

This is useful for integrating OpenCode with other tools. Alongside the
session API, it runs a background state-sync worker that keeps a session
listing (id, title, last-updated) current, streamed over GET /session/sync.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHostname, "hostname", "127.0.0.1", "Hostname to listen on")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Working directory")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}

	appConfig, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if model := GetGlobalModel(); model != "" {
		appConfig.Model = model
	}

	svc, _, err := buildService(cmd.Context(), workDir, appConfig)
	if err != nil {
		return err
	}

	httpCfg := httpapi.DefaultConfig()
	httpCfg.Addr = fmt.Sprintf("%s:%d", serveHostname, servePort)
	srv := httpapi.New(httpCfg, svc, nil)

	sessionDir := appConfig.Storage.SessionDir
	srv.SetStateSync(statesync.New(sessionstore.New(sessionDir), statesync.DefaultScanInterval), sessionDir)

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("url", "http://"+httpCfg.Addr).Msg("server listening")
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-stop:
	}

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
