package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/folio-cms/folio/pkg/audit"
	"github.com/folio-cms/folio/pkg/httputil"
)

// uploadAsset accepts multipart/form-data with a "file" part, or a raw
// request body with a filename query parameter.
func (s *Server) uploadAsset(w http.ResponseWriter, r *http.Request) {
	var content []byte
	var filename, contentType string

	if err := r.ParseMultipartForm(s.cfg.Server.MaxBodyBytes); err == nil {
		file, header, err := r.FormFile("file")
		if err != nil {
			httputil.WriteBadRequest(w, "missing file part")
			return
		}
		defer file.Close()

		content, err = io.ReadAll(file)
		if err != nil {
			httputil.WriteBadRequest(w, "failed to read upload")
			return
		}
		filename = header.Filename
		contentType = header.Header.Get("Content-Type")
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil || len(body) == 0 {
			httputil.WriteBadRequest(w, "empty upload")
			return
		}
		content = body
		filename = httputil.ParseQueryString(r, "filename", "")
		contentType = r.Header.Get("Content-Type")
	}

	if filename == "" {
		httputil.WriteBadRequest(w, "filename is required")
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	requiredPermission := httputil.ParseQueryString(r, "required_permission", "")

	asset, err := s.assets.Upload(r.Context(), content, filename, contentType, requiredPermission, s.actor(r))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	s.recordAudit(r, audit.EventAssetUpload, s.actor(r), "asset:"+asset.Hash, asset.Filename)
	httputil.WriteJSON(w, http.StatusCreated, asset)
}

func (s *Server) downloadAsset(w http.ResponseWriter, r *http.Request) {
	hash, ok := httputil.ParsePathStringOrError(w, r, "hash")
	if !ok {
		return
	}

	asset, body, err := s.assets.Open(r.Context(), hash)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	defer body.Close()

	// Per-asset gate on top of the route-level read permission.
	if asset.RequiredPermission != "" {
		if !permsFrom(r).Has(asset.RequiredPermission) {
			httputil.WriteNotFound(w, "not found")
			return
		}
	}

	w.Header().Set("Content-Type", asset.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(asset.Size, 10))
	w.Header().Set("Content-Disposition", `attachment; filename="`+asset.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, body)
}

func (s *Server) listAssets(w http.ResponseWriter, r *http.Request) {
	items, page, err := s.assets.List(r.Context(), httputil.ParsePagination(r))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteList(w, items, &page)
}

func (s *Server) deleteAsset(w http.ResponseWriter, r *http.Request) {
	hash, ok := httputil.ParsePathStringOrError(w, r, "hash")
	if !ok {
		return
	}
	if err := s.assets.Delete(r.Context(), hash); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	s.recordAudit(r, audit.EventAssetDelete, s.actor(r), "asset:"+hash, "")
	httputil.WriteNoContent(w)
}
