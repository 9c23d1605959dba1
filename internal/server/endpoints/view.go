package endpoints

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/glueous/reader/internal/api"
	"github.com/glueous/reader/internal/enrich"
	"github.com/glueous/reader/internal/svcctx"
)

// ViewResponse is the viewing state the driver schedules from.
type ViewResponse struct {
	enrich.View
	VisibleRadius    int `json:"visible_radius"`
	SelectableRadius int `json:"selectable_radius"`
}

// SetViewRequest moves the viewport. Omitted fields keep their value.
type SetViewRequest struct {
	Current          *int `json:"current,omitempty"`
	VisibleRadius    *int `json:"visible_radius,omitempty"`
	SelectableRadius *int `json:"selectable_radius,omitempty"`
}

func viewResponse(r *http.Request) ViewResponse {
	m := svcctx.ViewFrom(r.Context())
	vr, sr := m.Radii()
	return ViewResponse{View: m.View(), VisibleRadius: vr, SelectableRadius: sr}
}

// GetViewEndpoint handles GET /api/view.
type GetViewEndpoint struct{}

func (e *GetViewEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/view", e.handler
}

func (e *GetViewEndpoint) RequiresDocument() bool { return false }

// handler godoc
//
//	@Summary		Get the viewing state
//	@Tags			view
//	@Produce		json
//	@Success		200	{object}	ViewResponse
//	@Router			/api/view [get]
func (e *GetViewEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewResponse(r))
}

func (e *GetViewEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the viewing state",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ViewResponse
			if err := client.Get(cmd.Context(), "/api/view", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// SetViewEndpoint handles POST /api/view.
type SetViewEndpoint struct{}

func (e *SetViewEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/view", e.handler
}

func (e *SetViewEndpoint) RequiresDocument() bool { return false }

// handler godoc
//
//	@Summary		Move the viewport
//	@Tags			view
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SetViewRequest	true	"New viewing state"
//	@Success		200		{object}	ViewResponse
//	@Failure		400		{object}	ErrorResponse
//	@Router			/api/view [post]
func (e *SetViewEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req SetViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	m := svcctx.ViewFrom(r.Context())
	if req.Current != nil {
		m.SetCurrent(*req.Current)
	}
	if req.VisibleRadius != nil || req.SelectableRadius != nil {
		vr, sr := m.Radii()
		if req.VisibleRadius != nil {
			vr = *req.VisibleRadius
		}
		if req.SelectableRadius != nil {
			sr = *req.SelectableRadius
		}
		m.SetRadii(vr, sr)
	}
	writeJSON(w, http.StatusOK, viewResponse(r))
}

func (e *SetViewEndpoint) Command(getServerURL func() string) *cobra.Command {
	var visible, selectable int
	cmd := &cobra.Command{
		Use:   "goto <page>",
		Short: "Move the viewport to a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			req := SetViewRequest{Current: &page}
			if cmd.Flags().Changed("visible-radius") {
				req.VisibleRadius = &visible
			}
			if cmd.Flags().Changed("selectable-radius") {
				req.SelectableRadius = &selectable
			}
			client := api.NewClient(getServerURL())
			var resp ViewResponse
			if err := client.Post(cmd.Context(), "/api/view", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&visible, "visible-radius", 1, "Pages on each side treated as visible (-1: all)")
	cmd.Flags().IntVar(&selectable, "selectable-radius", 3, "Pages on each side reachable by scrolling (-1: all)")
	return cmd
}
