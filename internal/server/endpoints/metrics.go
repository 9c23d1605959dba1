package endpoints

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/glueous/reader/internal/api"
	"github.com/glueous/reader/internal/metrics"
	"github.com/glueous/reader/internal/svcctx"
)

// MetricsResponse reports recognition call statistics.
type MetricsResponse struct {
	Total    int64                             `json:"total"`
	Overall  *metrics.DetailedStats            `json:"overall"`
	ByEngine map[string]*metrics.DetailedStats `json:"by_engine"`
	Recent   []metrics.Metric                  `json:"recent,omitempty"`
}

// MetricsEndpoint handles GET /api/metrics.
type MetricsEndpoint struct{}

func (e *MetricsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/metrics", e.handler
}

func (e *MetricsEndpoint) RequiresDocument() bool { return false }

// handler godoc
//
//	@Summary		Recognition metrics
//	@Description	Latency and outcome statistics of recognition calls
//	@Tags			metrics
//	@Produce		json
//	@Param			engine	query		string	false	"Filter by engine"
//	@Param			doc		query		string	false	"Filter by document identity"
//	@Param			recent	query		int		false	"Include the most recent calls"
//	@Success		200		{object}	MetricsResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/metrics [get]
func (e *MetricsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	rec := svcctx.MetricsFrom(r.Context())
	if rec == nil {
		writeError(w, http.StatusInternalServerError, "metrics not available")
		return
	}

	q := r.URL.Query()
	f := metrics.Filter{Engine: q.Get("engine")}
	if doc := q.Get("doc"); doc != "" {
		f.ItemPrefix = doc + "#"
	}
	recent := 0
	if s := q.Get("recent"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "recent must be a non-negative integer")
			return
		}
		recent = n
	}

	resp := MetricsResponse{
		Total:    rec.Total(),
		Overall:  rec.GetDetailedStats(f),
		ByEngine: rec.ByEngine(f),
	}
	if recent > 0 {
		resp.Recent = rec.List(f, recent)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *MetricsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var engine, doc string
	var recent int
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show recognition call statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if engine != "" {
				q.Set("engine", engine)
			}
			if doc != "" {
				q.Set("doc", doc)
			}
			if recent > 0 {
				q.Set("recent", strconv.Itoa(recent))
			}
			path := "/api/metrics"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			client := api.NewClient(getServerURL())
			var resp MetricsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&engine, "engine", "", "filter by engine")
	cmd.Flags().StringVar(&doc, "doc", "", "filter by document identity")
	cmd.Flags().IntVar(&recent, "recent", 0, "include the N most recent calls")
	return cmd
}
