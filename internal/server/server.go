package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/rbaird/canteen/internal/app"
	"github.com/rbaird/canteen/internal/catalog"
	"github.com/rbaird/canteen/internal/handler"
	"github.com/rbaird/canteen/internal/middleware"
	"github.com/rbaird/canteen/internal/store"
	ws "github.com/rbaird/canteen/internal/websocket"
)

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	orchestrator *app.Orchestrator
	appH         *handler.AppHandler
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

// New wires the stores, catalog client and orchestrator together. Every state
// mutation the orchestrator performs is pushed to connected frontends through
// the websocket hub.
func New(db *sql.DB, catalogCfg catalog.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	kv := store.NewKV(db)
	prefsStore := store.NewPreferencesStore(kv, logger.With("component", "preferences"))
	cacheStore := store.NewMenuCacheStore(kv, logger.With("component", "menu_cache"))

	catalogClient := catalog.NewClient(catalogCfg, logger.With("component", "catalog"))

	orch := app.New(catalogClient, prefsStore, cacheStore, logger.With("component", "orchestrator"), func() {
		hub.Broadcast(ws.NewMessage("state", "changed", nil))
	})

	return &Server{
		db:           db,
		hub:          hub,
		orchestrator: orch,
		appH:         handler.NewAppHandler(orch, logger.With("component", "app_handler")),
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// Orchestrator returns the aggregation orchestrator, e.g. for the initial
// refresh at startup.
func (s *Server) Orchestrator() *app.Orchestrator {
	return s.orchestrator
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	mux.HandleFunc("GET /api/state", s.appH.State)
	mux.HandleFunc("GET /api/buildings", s.appH.Buildings)
	mux.HandleFunc("POST /api/refresh", s.rateLimitedHandler(s.appH.Refresh))
	mux.HandleFunc("POST /api/buildings/{id}/toggle", s.appH.ToggleBuilding)
	mux.HandleFunc("GET /api/search", s.appH.Search)
	mux.HandleFunc("PUT /api/settings/filters", s.appH.UpdateFilters)
	mux.HandleFunc("PUT /api/settings/city", s.appH.UpdateCity)
	mux.HandleFunc("GET /api/cache/status", s.appH.CacheStatus)

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	})

	return middleware.RequestLogger(s.logger.With("component", "http"))(corsHandler.Handler(mux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// rateLimitedHandler caps how often one client can force a catalog refresh.
func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
