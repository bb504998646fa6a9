// Package logs exposes the message archive for export.
package logs

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/deadhop/engine/internal/store/history"
	"github.com/deadhop/engine/pkg/httpx"
)

// Handler serves archive exports.
type Handler struct {
	hist *history.Store
}

// New creates the logs handler.
func New(hist *history.Store) *Handler {
	return &Handler{hist: hist}
}

// RegisterRoutes mounts the export endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/logs/export", h.handleExport)
}

// handleExport streams the archive for one target as a download.
// Query parameters: target (required), format (jsonl or csv, default
// jsonl), from and to (RFC 3339, optional).
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("target")
	if target == "" {
		httpx.RespondError(w, http.StatusBadRequest, "target query parameter is required")
		return
	}

	format := q.Get("format")
	if format == "" {
		format = "jsonl"
	}
	if format != "jsonl" && format != "csv" {
		httpx.RespondError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
		return
	}

	from, err := parseTimeParam(q.Get("from"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseTimeParam(q.Get("to"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	contentType := "application/jsonl"
	if format == "csv" {
		contentType = "text/csv"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "deadhop-export."+format))

	if err := h.hist.Export(r.Context(), w, target, from, to, format); err != nil {
		// Headers are out; all we can do is log via the response.
		fmt.Fprintf(w, "export error: %v\n", err)
	}
}

func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, want RFC 3339", raw)
	}
	return ts, nil
}
