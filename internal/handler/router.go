package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	assistantHandler "github.com/deadhop/engine/internal/handler/assistant"
	"github.com/deadhop/engine/internal/handler/bridge"
	"github.com/deadhop/engine/internal/handler/events"
	"github.com/deadhop/engine/internal/handler/logs"
	middlewarePkg "github.com/deadhop/engine/internal/middleware"
	assistantService "github.com/deadhop/engine/internal/service/assistant"
	"github.com/deadhop/engine/internal/session"
	"github.com/deadhop/engine/internal/store/history"
	"github.com/deadhop/engine/internal/store/profiles"
	"github.com/deadhop/engine/pkg/httpx"
)

// NewRouter wires the HTTP bridge to the core services. assistantSvc
// may be nil when no model is configured.
func NewRouter(engine *session.Engine, profileStore *profiles.Store, hist *history.Store, assistantSvc *assistantService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	bridgeHandler := bridge.New(engine, profileStore)
	eventsHandler := events.New(engine)

	r.Route("/api", func(api chi.Router) {
		bridgeHandler.RegisterRoutes(api)
		eventsHandler.RegisterRoutes(api)

		if hist != nil {
			logs.New(hist).RegisterRoutes(api)
		}

		if assistantSvc != nil {
			assistantHandler.New(assistantSvc).RegisterRoutes(api)
		} else {
			api.Get("/assistant/health", func(w http.ResponseWriter, r *http.Request) {
				httpx.RespondError(w, http.StatusServiceUnavailable, "assistant not configured")
			})
		}
	})

	return r
}
