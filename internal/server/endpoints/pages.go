package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/glueous/reader/internal/api"
	"github.com/glueous/reader/internal/document"
	"github.com/glueous/reader/internal/enrich"
	"github.com/glueous/reader/internal/svcctx"
)

// PageTextResponse is the extracted text of a page, including injected text.
type PageTextResponse struct {
	Page   int              `json:"page"`
	Text   string           `json:"text"`
	Blocks []document.Block `json:"blocks,omitempty"`
}

// PlainText returns the extracted text.
func (r PageTextResponse) PlainText() string { return r.Text }

// PageSpansResponse lists the recognized spans of a page.
type PageSpansResponse struct {
	Page   int                 `json:"page"`
	State  string              `json:"state"`
	Status string              `json:"status,omitempty"`
	Spans  []document.TextSpan `json:"spans"`
}

// ParseClip parses "x0,y0,x1,y1". An empty string means no clip.
func ParseClip(s string) (*document.Rect, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("clip must be x0,y0,x1,y1, got %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid clip coordinate %q", p)
		}
		v[i] = f
	}
	return &document.Rect{X0: v[0], Y0: v[1], X1: v[2], Y1: v[3]}, nil
}

// pageFrom resolves the {page} path value against the open document.
func pageFrom(r *http.Request) (document.Page, document.PageKey, int, error) {
	n, err := strconv.Atoi(r.PathValue("page"))
	if err != nil {
		return nil, document.PageKey{}, http.StatusBadRequest, fmt.Errorf("invalid page number")
	}
	sess := svcctx.HookFrom(r.Context()).Session()
	if sess == nil {
		return nil, document.PageKey{}, http.StatusConflict, enrich.ErrNoDocument
	}
	page, err := sess.Doc.Page(n)
	if err != nil {
		return nil, document.PageKey{}, http.StatusNotFound, err
	}
	return page, sess.Key(n), 0, nil
}

// PageTextEndpoint handles GET /api/pages/{page}/text.
type PageTextEndpoint struct{}

func (e *PageTextEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/pages/{page}/text", e.handler
}

func (e *PageTextEndpoint) RequiresDocument() bool { return true }

// handler godoc
//
//	@Summary		Extract page text
//	@Description	Native text followed by recognized text, optionally clipped
//	@Tags			pages
//	@Produce		json
//	@Param			page	path		int		true	"Page index (0-based)"
//	@Param			clip	query		string	false	"Clip rectangle x0,y0,x1,y1"
//	@Param			blocks	query		bool	false	"Include structured blocks"
//	@Success		200		{object}	PageTextResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/pages/{page}/text [get]
func (e *PageTextEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	page, key, status, err := pageFrom(r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	clip, err := ParseClip(r.URL.Query().Get("clip"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := PageTextResponse{Page: key.Page, Text: page.Text(clip)}
	if r.URL.Query().Get("blocks") == "true" {
		resp.Blocks = page.Blocks(clip)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *PageTextEndpoint) Command(getServerURL func() string) *cobra.Command {
	var clip string
	var blocks bool
	cmd := &cobra.Command{
		Use:   "text <page>",
		Short: "Extract the text of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if clip != "" {
				q.Set("clip", clip)
			}
			if blocks {
				q.Set("blocks", "true")
			}
			path := "/api/pages/" + url.PathEscape(args[0]) + "/text"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			client := api.NewClient(getServerURL())
			var resp PageTextResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&clip, "clip", "", "Clip rectangle x0,y0,x1,y1 in page coordinates")
	cmd.Flags().BoolVar(&blocks, "blocks", false, "Include structured text blocks")
	return cmd
}

// PageSpansEndpoint handles GET /api/pages/{page}/spans.
type PageSpansEndpoint struct{}

func (e *PageSpansEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/pages/{page}/spans", e.handler
}

func (e *PageSpansEndpoint) RequiresDocument() bool { return true }

// handler godoc
//
//	@Summary		List recognized spans
//	@Description	Cached spans of a page with their confidence
//	@Tags			pages
//	@Produce		json
//	@Param			page	path		int	true	"Page index (0-based)"
//	@Success		200		{object}	PageSpansResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/pages/{page}/spans [get]
func (e *PageSpansEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	_, key, status, err := pageFrom(r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	ctx := r.Context()
	sess := svcctx.HookFrom(ctx).Session()
	if sess == nil {
		writeError(w, http.StatusConflict, enrich.ErrNoDocument.Error())
		return
	}

	resp := PageSpansResponse{
		Page:  key.Page,
		State: sess.States.Get(key).String(),
		Spans: []document.TextSpan{},
	}
	if entry, ok := svcctx.CacheFrom(ctx).Get(key); ok {
		resp.Status = string(entry.Status)
		if entry.Spans != nil {
			resp.Spans = entry.Spans
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *PageSpansEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "spans <page>",
		Short: "List recognized spans of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp PageSpansResponse
			if err := client.Get(cmd.Context(), "/api/pages/"+url.PathEscape(args[0])+"/spans", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
