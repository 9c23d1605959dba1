package endpoints

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/glueous/reader/internal/api"
	"github.com/glueous/reader/internal/document"
	"github.com/glueous/reader/internal/ocrcache"
	"github.com/glueous/reader/internal/svcctx"
)

// CacheDocument summarizes the cached pages of one document.
type CacheDocument struct {
	Identity document.Identity `json:"identity"`
	Done     int               `json:"done"`
	Failed   int               `json:"failed"`
	Spans    int               `json:"spans"`
}

// CacheResponse lists cached documents.
type CacheResponse struct {
	Documents []CacheDocument `json:"documents"`
}

// SummarizeCache counts the cached pages of doc.
func SummarizeCache(cache *ocrcache.Store, doc document.Identity) CacheDocument {
	d := CacheDocument{Identity: doc}
	for _, e := range cache.Entries(doc) {
		switch e.Status {
		case ocrcache.StatusDone:
			d.Done++
		case ocrcache.StatusFailed:
			d.Failed++
		}
		d.Spans += len(e.Spans)
	}
	return d
}

// ListCacheEndpoint handles GET /api/cache.
type ListCacheEndpoint struct{}

func (e *ListCacheEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/cache", e.handler
}

func (e *ListCacheEndpoint) RequiresDocument() bool { return false }

// handler godoc
//
//	@Summary		List cached documents
//	@Tags			cache
//	@Produce		json
//	@Success		200	{object}	CacheResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/cache [get]
func (e *ListCacheEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	cache := svcctx.CacheFrom(r.Context())
	if cache == nil {
		writeError(w, http.StatusInternalServerError, "cache not available")
		return
	}
	resp := CacheResponse{Documents: []CacheDocument{}}
	for _, doc := range cache.Documents() {
		resp.Documents = append(resp.Documents, SummarizeCache(cache, doc))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListCacheEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp CacheResponse
			if err := client.Get(cmd.Context(), "/api/cache", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ClearCacheEndpoint handles DELETE /api/cache?doc=<identity>.
type ClearCacheEndpoint struct{}

func (e *ClearCacheEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/cache", e.handler
}

func (e *ClearCacheEndpoint) RequiresDocument() bool { return false }

// handler godoc
//
//	@Summary		Clear cached results of a document
//	@Description	Clearing the open document also resets its pages
//	@Tags			cache
//	@Param			doc	query	string	true	"Document identity"
//	@Success		204
//	@Failure		400	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/cache [delete]
func (e *ClearCacheEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := r.URL.Query().Get("doc")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "doc is required")
		return
	}
	doc := document.Identity(raw)

	var err error
	if sess := svcctx.HookFrom(ctx).Session(); sess != nil && sess.Identity() == doc {
		err = svcctx.ControllerFrom(ctx).RerunDocument(ctx)
	} else {
		err = svcctx.CacheFrom(ctx).DeleteAll(doc)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *ClearCacheEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <identity>",
		Short: "Clear cached results of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/cache?"+url.Values{"doc": {args[0]}}.Encode(), nil); err != nil {
				return err
			}
			fmt.Printf("Cleared %s\n", args[0])
			return nil
		},
	}
}
