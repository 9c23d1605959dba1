package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/glueous/reader/internal/api"
	"github.com/glueous/reader/internal/enrich"
	"github.com/glueous/reader/internal/svcctx"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresDocument() bool { return false }

func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server   string              `json:"server"`
	Document *DocumentResponse   `json:"document,omitempty"`
	Driver   *enrich.DriverStats `json:"driver,omitempty"`
	Engine   EngineStatus        `json:"engine"`
	Cache    CacheStatus         `json:"cache"`
}

// EngineStatus shows the active and available recognition engines.
type EngineStatus struct {
	Active    string   `json:"active"`
	Debug     bool     `json:"debug"`
	Available []string `json:"available"`
}

// CacheStatus summarizes the OCR cache.
type CacheStatus struct {
	Documents int `json:"documents"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct{}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresDocument() bool { return false }

// handler godoc
//
//	@Summary		Server status
//	@Description	Driver counters, open document and engine information
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Router			/status [get]
func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatusResponse{Server: "running"}

	if driver := svcctx.DriverFrom(ctx); driver != nil {
		stats := driver.Stats()
		resp.Driver = &stats
	}
	if hook := svcctx.HookFrom(ctx); hook != nil {
		if sess := hook.Session(); sess != nil {
			doc := documentResponse(sess)
			resp.Document = &doc
		}
		resp.Engine.Active = hook.Processor().EngineName()
		resp.Engine.Debug = hook.Processor().Debug()
	}
	if engines := svcctx.EnginesFrom(ctx); engines != nil {
		resp.Engine.Available = engines.Names()
	}
	if cache := svcctx.CacheFrom(ctx); cache != nil {
		resp.Cache.Documents = len(cache.Documents())
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
