package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/glueous/reader/internal/api"
	"github.com/glueous/reader/internal/document"
	"github.com/glueous/reader/internal/enrich"
	"github.com/glueous/reader/internal/svcctx"
)

// EnrichmentResponse reports whether automatic enrichment is on.
type EnrichmentResponse struct {
	Enabled bool `json:"enabled"`
}

// SetEnrichmentEndpoint handles POST /api/enrichment/enable and
// POST /api/enrichment/disable.
type SetEnrichmentEndpoint struct {
	Enable bool
}

func (e *SetEnrichmentEndpoint) action() string {
	if e.Enable {
		return "enable"
	}
	return "disable"
}

func (e *SetEnrichmentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/enrichment/" + e.action(), e.handler
}

func (e *SetEnrichmentEndpoint) RequiresDocument() bool { return false }

// handler godoc
//
//	@Summary		Enable or disable automatic enrichment
//	@Tags			enrichment
//	@Produce		json
//	@Success		200	{object}	EnrichmentResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/enrichment/enable [post]
//	@Router			/api/enrichment/disable [post]
func (e *SetEnrichmentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctrl := svcctx.ControllerFrom(r.Context())
	if ctrl == nil {
		writeError(w, http.StatusInternalServerError, "controller not available")
		return
	}
	if e.Enable {
		ctrl.Enable()
	} else {
		ctrl.Disable()
	}
	writeJSON(w, http.StatusOK, EnrichmentResponse{Enabled: e.Enable})
}

func (e *SetEnrichmentEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   e.action(),
		Short: e.action() + " automatic enrichment",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp EnrichmentResponse
			if err := client.Post(cmd.Context(), "/api/enrichment/"+e.action(), nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ToggleEnrichmentEndpoint handles POST /api/enrichment/toggle.
type ToggleEnrichmentEndpoint struct{}

func (e *ToggleEnrichmentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/enrichment/toggle", e.handler
}

func (e *ToggleEnrichmentEndpoint) RequiresDocument() bool { return false }

// handler godoc
//
//	@Summary		Toggle automatic enrichment
//	@Tags			enrichment
//	@Produce		json
//	@Success		200	{object}	EnrichmentResponse
//	@Router			/api/enrichment/toggle [post]
func (e *ToggleEnrichmentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctrl := svcctx.ControllerFrom(r.Context())
	if ctrl == nil {
		writeError(w, http.StatusInternalServerError, "controller not available")
		return
	}
	writeJSON(w, http.StatusOK, EnrichmentResponse{Enabled: ctrl.Toggle()})
}

func (e *ToggleEnrichmentEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle",
		Short: "Toggle automatic enrichment",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp EnrichmentResponse
			if err := client.Post(cmd.Context(), "/api/enrichment/toggle", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// RerunPageRequest selects the page to rerun. Without a page the current
// page of the view is used.
type RerunPageRequest struct {
	Page *int `json:"page,omitempty"`
}

// RerunPageResponse is the outcome of a page rerun.
type RerunPageResponse struct {
	Key   document.PageKey `json:"key"`
	State string           `json:"state"`
	Spans int              `json:"spans"`
	Error string           `json:"error,omitempty"`
}

// RerunPageEndpoint handles POST /api/enrichment/rerun-page.
type RerunPageEndpoint struct{}

func (e *RerunPageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/enrichment/rerun-page", e.handler
}

func (e *RerunPageEndpoint) RequiresDocument() bool { return true }

// handler godoc
//
//	@Summary		Re-recognize one page
//	@Description	Discards the cached result of a page and recognizes it again
//	@Tags			enrichment
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RerunPageRequest	false	"Page (default: current page)"
//	@Success		200		{object}	RerunPageResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Router			/api/enrichment/rerun-page [post]
func (e *RerunPageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req RerunPageRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	var (
		out enrich.PageOutcome
		err error
	)
	if req.Page != nil {
		out, err = svcctx.HookFrom(ctx).RerunPage(ctx, *req.Page)
	} else {
		out, err = svcctx.ControllerFrom(ctx).RerunCurrentPage(ctx)
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	resp := RerunPageResponse{Key: out.Key, State: out.State.String(), Spans: out.Spans}
	if out.Err != nil {
		resp.Error = out.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *RerunPageEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "rerun-page [page]",
		Short: "Re-recognize a page (default: the current page)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body any
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid page %q: %w", args[0], err)
				}
				body = RerunPageRequest{Page: &n}
			}
			client := api.NewClient(getServerURL())
			var resp RerunPageResponse
			if err := client.Post(cmd.Context(), "/api/enrichment/rerun-page", body, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// RerunDocumentEndpoint handles POST /api/enrichment/rerun-document.
type RerunDocumentEndpoint struct{}

func (e *RerunDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/enrichment/rerun-document", e.handler
}

func (e *RerunDocumentEndpoint) RequiresDocument() bool { return true }

// handler godoc
//
//	@Summary		Discard all results of the open document
//	@Description	Pages are recognized again by automatic enrichment
//	@Tags			enrichment
//	@Produce		json
//	@Success		200	{object}	DocumentResponse
//	@Failure		409	{object}	ErrorResponse
//	@Router			/api/enrichment/rerun-document [post]
func (e *RerunDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := svcctx.ControllerFrom(ctx).RerunDocument(ctx); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, documentResponse(svcctx.HookFrom(ctx).Session()))
}

func (e *RerunDocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "rerun-document",
		Short: "Discard all results of the open document",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp DocumentResponse
			if err := client.Post(cmd.Context(), "/api/enrichment/rerun-document", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// TickEndpoint handles POST /api/enrichment/tick.
type TickEndpoint struct{}

func (e *TickEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/enrichment/tick", e.handler
}

func (e *TickEndpoint) RequiresDocument() bool { return false }

// handler godoc
//
//	@Summary		Run one driver tick now
//	@Tags			enrichment
//	@Produce		json
//	@Success		200	{object}	enrich.TickResult
//	@Failure		409	{object}	ErrorResponse
//	@Router			/api/enrichment/tick [post]
func (e *TickEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	res, err := svcctx.DriverFrom(r.Context()).Tick(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (e *TickEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one enrichment tick now",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp enrich.TickResult
			if err := client.Post(cmd.Context(), "/api/enrichment/tick", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// DebugRequest switches debug mode.
type DebugRequest struct {
	Enabled bool `json:"enabled"`
}

// DebugEndpoint handles POST /api/debug.
type DebugEndpoint struct{}

func (e *DebugEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/debug", e.handler
}

func (e *DebugEndpoint) RequiresDocument() bool { return false }

// handler godoc
//
//	@Summary		Show or hide injected text
//	@Tags			debug
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DebugRequest	true	"Debug mode"
//	@Success		200		{object}	DebugRequest
//	@Failure		400		{object}	ErrorResponse
//	@Router			/api/debug [post]
func (e *DebugEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req DebugRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := svcctx.ControllerFrom(r.Context()).SetDebug(r.Context(), req.Enabled); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (e *DebugEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:       "debug on|off",
		Short:     "Show or hide injected text",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var on bool
			switch args[0] {
			case "on":
				on = true
			case "off":
			default:
				return fmt.Errorf("expected on or off, got %q", args[0])
			}
			client := api.NewClient(getServerURL())
			var resp DebugRequest
			if err := client.Post(cmd.Context(), "/api/debug", DebugRequest{Enabled: on}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, enrich.ErrNoDocument), errors.Is(err, enrich.ErrTickInProgress),
		errors.Is(err, enrich.ErrStaleSession), errors.Is(err, enrich.ErrPageBusy):
		return http.StatusConflict
	case errors.Is(err, document.ErrPageOutOfRange):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
