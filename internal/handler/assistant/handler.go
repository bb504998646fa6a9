// Package assistant exposes the AI helper over HTTP.
package assistant

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	assistantService "github.com/deadhop/engine/internal/service/assistant"
	"github.com/deadhop/engine/pkg/httpx"
)

// Handler serves assistant health, generation, and streaming.
type Handler struct {
	svc *assistantService.Service
}

// New creates the assistant handler.
func New(svc *assistantService.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the assistant endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/assistant/health", h.handleHealth)
	r.Post("/assistant/generate", h.handleGenerate)
	r.Get("/assistant/stream", h.handleStream)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Healthy(r.Context()); err != nil {
		httpx.RespondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type generateRequest struct {
	Query string `json:"query"`
	// Excerpt carries the conversation lines the answer should be
	// grounded on, oldest first.
	Excerpt []string `json:"excerpt"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var payload generateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Query == "" {
		httpx.RespondError(w, http.StatusBadRequest, "query is required")
		return
	}

	response, err := h.svc.Generate(r.Context(), payload.Excerpt, payload.Query)
	if err != nil {
		log.Printf("[assistant] generate: %v", err)
		httpx.RespondError(w, http.StatusBadGateway, "assistant request failed")
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"response": response})
}

// handleStream answers over SSE, one chunk per model delta.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		httpx.RespondError(w, http.StatusBadRequest, "query query parameter is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	stream, err := h.svc.Stream(r.Context(), r.URL.Query()["excerpt"], query)
	if err != nil {
		httpx.RespondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	defer stream.Close()

	httpx.SetupSSEHeaders(w)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			httpx.SendSSEEvent(w, flusher, "done", map[string]string{})
			return
		}
		if err != nil {
			log.Printf("[assistant] stream: %v", err)
			httpx.SendSSEEvent(w, flusher, "error", map[string]string{"error": "stream failed"})
			return
		}
		if chunk.Content == "" {
			continue
		}
		httpx.SendSSEEvent(w, flusher, "chunk", map[string]string{"content": chunk.Content})
	}
}
