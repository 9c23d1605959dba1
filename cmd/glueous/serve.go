package main

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/glueous/reader/internal/config"
	"github.com/glueous/reader/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve [file.pdf]",
	Short: "Run the enrichment pipeline with an HTTP control API",
	Long: `Start the headless reader host.

This runs the enrichment driver on its tick interval and serves the
control API. The configuration file is watched and enrichment, debug,
view and recognition settings are applied without a restart.

The server provides:
  - /health              - Basic server health check
  - /status              - Driver, document and engine status
  - /api/documents       - Open and close documents
  - /api/enrichment/...  - Enable, disable, toggle and rerun
  - /api/view            - Move the viewport
  - /api/pages/{page}/.. - Page text and recognized spans

Examples:
  glueous serve                    # Start on the configured address
  glueous serve scan.pdf           # Open a document on start
  glueous serve --port 3000        # Start on custom port`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := newLocalEnv()
		if err != nil {
			return err
		}
		defer env.Close()
		a := env.app
		cfg := env.config.Get()

		host, port := cfg.Server.Host, cfg.Server.Port
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		env.config.OnChange(func(c *config.Config) {
			a.Apply(context.WithoutCancel(ctx), c)
			env.logger.Info("configuration reloaded", "file", env.config.ConfigFile())
		})
		if env.config.ConfigFile() != "" {
			env.config.WatchConfig()
		}

		if len(args) == 1 {
			if _, err := a.Hook.Open(ctx, args[0]); err != nil {
				return err
			}
		}

		srv, err := server.New(server.Config{
			Host:     host,
			Port:     port,
			Services: a.Services(env.config),
			Logger:   env.logger,
		})
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.Start(gctx) })
		g.Go(func() error { return a.Driver.Run(gctx) })
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to (default: server.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on (default: server.port)")

	rootCmd.AddCommand(serveCmd)
}
