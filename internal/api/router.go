package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/whse-session/internal/config"
	"github.com/yegors/whse-session/internal/uiconfig"
	"github.com/yegors/whse-session/internal/websocket"
	"github.com/yegors/whse-session/internal/whse"
	"github.com/yegors/whse-session/pkg/logger"
)

// Router builds the HTTP routes
type Router struct {
	handler  *Handler
	wsServer *websocket.Server
	config   *config.Config
	logger   *logger.Logger
}

// NewRouter creates a new router
func NewRouter(sessions *whse.Service, registry *uiconfig.Registry, pinger Pinger, wsServer *websocket.Server, cfg *config.Config, log *logger.Logger) *Router {
	return &Router{
		handler:  NewHandler(sessions, registry, pinger, log),
		wsServer: wsServer,
		config:   cfg,
		logger:   log,
	}
}

// Routes returns the HTTP handler serving every route
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(CORS(rt.config.Server.CORSAllowedOrigins))
	r.Use(RequestID)
	r.Use(Logger(rt.logger))
	r.Use(Recovery(rt.logger))

	h := rt.handler

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.GetHealth)

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.EndSession)
			r.Get("/exists", h.SessionExists)
			r.Post("/start", h.StartSession)
			r.Post("/picking", h.StartPicking)
			r.Post("/pick-pack", h.StartPickPack)
			r.Post("/ui-config", h.PublishUIConfig)

			r.Get("/picked-items", h.GetPickedItems)
			r.Get("/picked-items/total", h.GetPickedQtyTotal)
			r.Delete("/picked-items", h.DeletePickedItems)
		})

		r.Get("/ui-config/{key}", h.GetUIConfig)
	})

	if rt.wsServer != nil {
		r.Get("/ws", rt.wsServer.HandleConnection)
	}

	return r
}
