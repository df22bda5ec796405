package handlers

import (
	"net/http"
	"strings"

	"reqgraph/application/services"
	"reqgraph/pkg/common"
	pkgerrors "reqgraph/pkg/errors"
	"reqgraph/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// GraphHandler initializes projects and serves their graphs
type GraphHandler struct {
	graphs *services.GraphService
	errors *pkgerrors.ErrorHandler
	logger *zap.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(graphs *services.GraphService, errors *pkgerrors.ErrorHandler, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{
		graphs: graphs,
		errors: errors,
		logger: logger,
	}
}

// InitializeProjectRequest is the body of PUT /projects/{projectID}
type InitializeProjectRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// InitializeProjectResponse reports the project's root node
type InitializeProjectResponse struct {
	Root    NodeResponse `json:"root"`
	Created bool         `json:"created"`
}

// InitializeProject handles PUT /projects/{projectID}
func (h *GraphHandler) InitializeProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectParam(w, r, h.errors)
	if !ok {
		return
	}

	var req InitializeProjectRequest
	if err := common.ParseJSONBody(w, r, &req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	root, created, err := h.graphs.InitializeProject(r.Context(), projectID, req.Name)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	common.RespondJSON(w, r, status, InitializeProjectResponse{
		Root:    toNodeResponse(root),
		Created: created,
	})
}

// GetGraph handles GET /projects/{projectID}/graph
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectParam(w, r, h.errors)
	if !ok {
		return
	}

	graph, err := h.graphs.GetGraph(r.Context(), projectID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, r, http.StatusOK, toGraphResponse(graph))
}

// projectParam reads and checks the {projectID} path parameter
func projectParam(w http.ResponseWriter, r *http.Request, errs *pkgerrors.ErrorHandler) (string, bool) {
	projectID := strings.TrimSpace(chi.URLParam(r, "projectID"))
	if projectID == "" || len(projectID) > 128 || strings.Contains(projectID, "#") {
		errs.Handle(w, r, pkgerrors.NewValidationError("invalid project id"))
		return "", false
	}
	return projectID, true
}
