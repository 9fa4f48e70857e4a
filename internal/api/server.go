package api

import (
	"net/http"

	"github.com/dgallion1/lawsearch/internal/config"
	"github.com/dgallion1/lawsearch/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Server is the HTTP API server for lawsearch.
type Server struct {
	router chi.Router
	svc    *service.Service
	log    *zap.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(svc *service.Service, log *zap.Logger, cfg config.Config) *Server {
	s := &Server{
		svc: svc,
		log: log,
		cfg: cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/", s.handleRoot)
	r.Get("/api/health", s.handleHealth)

	// Authenticated endpoints. Auth is off when no key is configured.
	r.Group(func(r chi.Router) {
		if s.cfg.LawsearchAPIKey != "" {
			r.Use(AuthMiddleware(s.cfg.LawsearchAPIKey, s.log))
		}

		r.Post("/api/query", s.handleQuery)

		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{runID}", s.handleIngestStatus)

		r.Get("/api/status", s.handleStatus)
		r.Get("/api/divisions", s.handleDivisions)
		r.Get("/api/stats/llm", s.handleLLMStats)

		r.Get("/api/documents", s.handleListDocuments)
		r.Post("/api/documents", s.handleUploadDocuments)
		r.Delete("/api/documents/{name}", s.handleDeleteDocument)
	})

	s.router = r
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "lawsearch",
		"status":  "running",
		"docs":    "POST /api/query with {\"question\": \"...\"}",
	})
}
