package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/spellbook/internal/config"
	"github.com/jackzampolin/spellbook/internal/server"
)

var (
	serveHost    string
	servePort    string
	serveBackend string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Spellbook server",
	Long: `Start the Spellbook HTTP server.

The server starts listening immediately, then opens the configured store and
imports the seed catalog when the store is empty. Until the import finishes,
/api routes answer 503 and /ready reports "initializing".

With the defra backend the DefraDB container is started with the server and
stopped again on shutdown (Ctrl+C or SIGTERM).

The server provides:
  - /health   - Basic server health check
  - /ready    - Readiness check (includes store status)
  - /status   - Backend, settings version and DefraDB state
  - /metrics  - Prometheus metrics
  - /swagger/ - API documentation

Examples:
  spellbook serve                     # Start with config.yaml settings
  spellbook serve --port 3000         # Start on custom port
  spellbook serve --backend sqlite    # Override store.backend`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}

		mgr, err := config.NewManager(cfgFile, h.Path())
		if err != nil {
			return err
		}

		level := new(slog.LevelVar)
		if l, err := config.ParseLevel(mgr.Get().LogLevel); err == nil {
			level.Set(l)
		}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		// log_level is the one setting applied on the fly; the server
		// subscribes to the rest itself.
		mgr.OnChange(func(c *config.Config) {
			if l, err := config.ParseLevel(c.LogLevel); err == nil {
				level.Set(l)
			}
		})
		if used := mgr.ConfigFileUsed(); used != "" {
			logger.Info("using config file", "path", used)
			mgr.WatchConfig()
		}

		if pid := h.RunningPid(); pid != 0 {
			return fmt.Errorf("a server is already running for %s (pid %d)", h.Path(), pid)
		}
		if err := h.WritePidFile(); err != nil {
			return err
		}
		defer h.RemovePidFile()

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			Backend:       serveBackend,
			Home:          h,
			ConfigManager: mgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: server.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default: server.port)")
	serveCmd.Flags().StringVar(&serveBackend, "backend", "", "Store backend: memory, file, sqlite or defra (default: store.backend)")

	rootCmd.AddCommand(serveCmd)
}
