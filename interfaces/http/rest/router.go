// Package rest serves the engine over HTTP.
package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"reqgraph/application/protocol"
	"reqgraph/application/services"
	"reqgraph/interfaces/http/rest/handlers"
	"reqgraph/interfaces/http/rest/middleware"
	v1 "reqgraph/interfaces/http/rest/v1"
	pkgerrors "reqgraph/pkg/errors"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RouterConfig carries the router's switches
type RouterConfig struct {
	EnableCORS     bool
	AllowedOrigins []string
	Debug          bool
	RequestTimeout time.Duration
}

// Router creates and configures the HTTP router
type Router struct {
	parser    *protocol.Parser
	turns     *services.TurnService
	processor *services.SuggestionProcessor
	graphs    *services.GraphService
	adjacent  *services.AdjacentNodeService
	tracer    trace.Tracer
	cfg       RouterConfig
	logger    *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	parser *protocol.Parser,
	turns *services.TurnService,
	processor *services.SuggestionProcessor,
	graphs *services.GraphService,
	adjacent *services.AdjacentNodeService,
	tracer trace.Tracer,
	cfg RouterConfig,
	logger *zap.Logger,
) *Router {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return &Router{
		parser:    parser,
		turns:     turns,
		processor: processor,
		graphs:    graphs,
		adjacent:  adjacent,
		tracer:    tracer,
		cfg:       cfg,
		logger:    logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	errs := pkgerrors.NewErrorHandler(rt.logger, rt.cfg.Debug)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Logger(rt.logger))
	router.Use(errs.Middleware)
	if rt.tracer != nil {
		router.Use(middleware.Tracing(rt.tracer))
	}
	router.Use(chimiddleware.Timeout(rt.cfg.RequestTimeout))

	if rt.cfg.EnableCORS {
		origins := rt.cfg.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"http://localhost:3000"}
		}
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", "traceparent"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	router.Get("/health", rt.healthCheck)

	router.Route("/api/v1", v1.Routes(v1.Handlers{
		Suggestions: handlers.NewSuggestionHandler(rt.parser, rt.turns, rt.processor, errs, rt.logger),
		Graphs:      handlers.NewGraphHandler(rt.graphs, errs, rt.logger),
		Nodes:       handlers.NewNodeHandler(rt.adjacent, errs, rt.logger),
	}))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errs.HandleStatus(w, r, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		errs.HandleStatus(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
