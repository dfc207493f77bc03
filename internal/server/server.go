package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/G9000/tauri-update-server/internal/config"
	"github.com/G9000/tauri-update-server/pkg/update"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

type ReleaseResolver interface {
	ResolveLatest(ctx context.Context) (*update.Release, error)
	Repository() string
}

type Server struct {
	router   chi.Router
	log      *logrus.Logger
	resolver ReleaseResolver
	config   *config.ServerConfig
	cache    *releaseCache
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSONError(w, r, http.StatusNotFound, fmt.Errorf("not found"))
}

func (s *Server) methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSONError(w, r, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{
		"service":    "tauri update server",
		"stage":      s.config.Stage,
		"version":    s.config.Version,
		"repository": s.resolver.Repository(),
	})
}

func New(log *logrus.Logger, resolver ReleaseResolver, serverCfg *config.ServerConfig) *Server {
	router := chi.NewRouter()
	server := &Server{
		router:   router,
		log:      log,
		resolver: resolver,
		config:   serverCfg,
		cache:    newReleaseCache(serverCfg.CacheTTL),
	}
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(server.logMiddleware)
	router.Use(server.recoverMiddleware)
	router.Use(middleware.Timeout(time.Minute))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: serverCfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
	}))
	router.Use(middleware.GetHead)

	router.NotFound(server.notFoundHandler)
	router.MethodNotAllowed(server.methodNotAllowedHandler)

	router.Get("/", server.indexHandler)

	router.Route("/api", func(r chi.Router) {
		r.Get("/tauri-app", server.checkForUpdate)
		r.Get("/tauri-app/{platform}", server.checkForUpdate)
		r.Get("/tauri-app/{platform}/{current_version}", server.checkForUpdate)
		r.Get("/download/{platform}", server.downloadLatestArtifact)
	})

	return server
}
