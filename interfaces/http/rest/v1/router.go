// Package v1 declares the version 1 REST routes.
package v1

import (
	"reqgraph/interfaces/http/rest/handlers"

	"github.com/go-chi/chi/v5"
)

// Handlers groups the endpoint handlers mounted under /api/v1
type Handlers struct {
	Suggestions *handlers.SuggestionHandler
	Graphs      *handlers.GraphHandler
	Nodes       *handlers.NodeHandler
}

// Routes registers the v1 API on r
func Routes(h Handlers) func(r chi.Router) {
	return func(r chi.Router) {
		r.Post("/protocol/parse", h.Suggestions.Parse)

		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Put("/", h.Graphs.InitializeProject)
			r.Get("/graph", h.Graphs.GetGraph)
			r.Post("/turns", h.Suggestions.Turn)
			r.Post("/suggestions", h.Suggestions.Apply)
			r.Post("/nodes/{nodeID}/adjacent", h.Nodes.CreateAdjacent)
		})
	}
}
