package main

import (
	"github.com/spf13/cobra"

	"github.com/glueous/reader/internal/api"
	"github.com/glueous/reader/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Glueous server via HTTP.

These commands require a running server (glueous serve).
Use --server to specify a custom server URL.

Examples:
  glueous api health                       # Check server health
  glueous api documents open scan.pdf      # Open a document
  glueous api view goto 12                 # Move to page 12
  glueous api enrichment toggle            # Toggle automatic enrichment
  glueous api enrichment rerun-page        # Re-recognize the current page
  glueous api pages spans 12               # Inspect recognized spans
  glueous api metrics --engine vision      # Recognition latency statistics`,
}

var enrichmentCmd = &cobra.Command{
	Use:   "enrichment",
	Short: "Automatic enrichment commands",
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Document commands",
}

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Viewport commands",
}

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "Page text and span commands",
}

var apiCacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Server-side cache commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func addAll(parent *cobra.Command, eps []api.Endpoint) {
	for _, ep := range eps {
		parent.AddCommand(ep.Command(getServerURL))
	}
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health and debug at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.DebugEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.MetricsEndpoint{}).Command(getServerURL))

	addAll(enrichmentCmd, endpoints.EnrichmentCommands())
	addAll(documentsCmd, endpoints.DocumentCommands())
	addAll(viewCmd, endpoints.ViewCommands())
	addAll(pagesCmd, endpoints.PageCommands())
	addAll(apiCacheCmd, endpoints.CacheCommands())

	apiCmd.AddCommand(enrichmentCmd)
	apiCmd.AddCommand(documentsCmd)
	apiCmd.AddCommand(viewCmd)
	apiCmd.AddCommand(pagesCmd)
	apiCmd.AddCommand(apiCacheCmd)
	rootCmd.AddCommand(apiCmd)
}
