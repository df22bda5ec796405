package handlers

import (
	"net/http"
	"strings"

	"reqgraph/application/services"
	"reqgraph/domain/categories"
	"reqgraph/domain/core/valueobjects"
	"reqgraph/pkg/common"
	pkgerrors "reqgraph/pkg/errors"
	"reqgraph/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// NodeHandler handles node-related HTTP requests
type NodeHandler struct {
	adjacent *services.AdjacentNodeService
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(adjacent *services.AdjacentNodeService, errors *pkgerrors.ErrorHandler, logger *zap.Logger) *NodeHandler {
	return &NodeHandler{
		adjacent: adjacent,
		errors:   errors,
		logger:   logger,
	}
}

// CreateAdjacentRequest is the body of the adjacent-node endpoint. Title may
// be empty for singleton categories.
type CreateAdjacentRequest struct {
	Direction string `json:"direction" validate:"required,handle"`
	Category  string `json:"category" validate:"required,category"`
	Title     string `json:"title,omitempty" validate:"max=200"`
}

// CreateAdjacentResponse carries the created node and its edge
type CreateAdjacentResponse struct {
	Node NodeResponse  `json:"node"`
	Edge *EdgeResponse `json:"edge,omitempty"`
}

// CreateAdjacent handles POST /projects/{projectID}/nodes/{nodeID}/adjacent
func (h *NodeHandler) CreateAdjacent(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectParam(w, r, h.errors)
	if !ok {
		return
	}
	sourceID, err := valueobjects.NewNodeIDFromString(chi.URLParam(r, "nodeID"))
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid node id"))
		return
	}

	var req CreateAdjacentRequest
	if err := common.ParseJSONBody(w, r, &req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	category := categories.Category(req.Category)
	if desc, _ := categories.Classify(category); !desc.IsSingleton() && req.Title == "" {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("title is required for "+req.Category))
		return
	}

	result, err := h.adjacent.CreateAdjacent(
		r.Context(),
		projectID,
		sourceID,
		valueobjects.Handle(req.Direction),
		category,
		req.Title,
	)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	resp := CreateAdjacentResponse{Node: toNodeResponse(result.Node)}
	if result.Edge != nil {
		edge := toEdgeResponse(result.Edge)
		resp.Edge = &edge
	}
	common.RespondJSON(w, r, http.StatusCreated, resp)
}
