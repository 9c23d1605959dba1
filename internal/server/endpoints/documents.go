package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/glueous/reader/internal/api"
	"github.com/glueous/reader/internal/document"
	"github.com/glueous/reader/internal/enrich"
	"github.com/glueous/reader/internal/svcctx"
)

// DocumentResponse describes the open document.
type DocumentResponse struct {
	Identity document.Identity `json:"identity"`
	Path     string            `json:"path"`
	Pages    int               `json:"pages"`
	OpenedAt time.Time         `json:"opened_at"`
	States   map[string]int    `json:"states"`
}

func documentResponse(sess *enrich.Session) DocumentResponse {
	if sess == nil {
		return DocumentResponse{}
	}
	n := sess.Doc.PageCount()
	states := make(map[string]int)
	for st, count := range sess.States.Counts(sess.Identity(), n) {
		states[st.String()] = count
	}
	return DocumentResponse{
		Identity: sess.Identity(),
		Path:     sess.Path,
		Pages:    n,
		OpenedAt: sess.OpenedAt,
		States:   states,
	}
}

// OpenDocumentRequest is the request body for opening a document.
type OpenDocumentRequest struct {
	Path string `json:"path"`
}

// OpenDocumentEndpoint handles POST /api/documents.
type OpenDocumentEndpoint struct{}

func (e *OpenDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/documents", e.handler
}

func (e *OpenDocumentEndpoint) RequiresDocument() bool { return false }

// handler godoc
//
//	@Summary		Open a document
//	@Description	Opens a PDF, replays cached text and makes it the current document
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenDocumentRequest	true	"Document path"
//	@Success		200		{object}	DocumentResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Router			/api/documents [post]
func (e *OpenDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req OpenDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	ctx := r.Context()
	sess, err := svcctx.HookFrom(ctx).Open(ctx, req.Path)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if v := svcctx.ViewFrom(ctx); v != nil {
		v.SetCurrent(0)
	}
	writeJSON(w, http.StatusOK, documentResponse(sess))
}

func (e *OpenDocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "open <file.pdf>",
		Short: "Open a document on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("invalid path: %w", err)
			}
			client := api.NewClient(getServerURL())
			var resp DocumentResponse
			if err := client.Post(cmd.Context(), "/api/documents", OpenDocumentRequest{Path: path}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetDocumentEndpoint handles GET /api/documents/current.
type GetDocumentEndpoint struct{}

func (e *GetDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/documents/current", e.handler
}

func (e *GetDocumentEndpoint) RequiresDocument() bool { return true }

// handler godoc
//
//	@Summary		Describe the open document
//	@Tags			documents
//	@Produce		json
//	@Success		200	{object}	DocumentResponse
//	@Failure		409	{object}	ErrorResponse
//	@Router			/api/documents/current [get]
func (e *GetDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, documentResponse(svcctx.HookFrom(r.Context()).Session()))
}

func (e *GetDocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Describe the open document",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp DocumentResponse
			if err := client.Get(cmd.Context(), "/api/documents/current", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// CloseDocumentEndpoint handles DELETE /api/documents/current.
type CloseDocumentEndpoint struct{}

func (e *CloseDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/documents/current", e.handler
}

func (e *CloseDocumentEndpoint) RequiresDocument() bool { return true }

// handler godoc
//
//	@Summary		Close the open document
//	@Tags			documents
//	@Success		204
//	@Failure		409	{object}	ErrorResponse
//	@Router			/api/documents/current [delete]
func (e *CloseDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if err := svcctx.HookFrom(r.Context()).Close(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *CloseDocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "close",
		Short: "Close the open document",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/documents/current", nil); err != nil {
				return err
			}
			fmt.Println("Document closed")
			return nil
		},
	}
}
