package handlers

import (
	"time"

	"reqgraph/application/services"
	"reqgraph/domain/categories"
	"reqgraph/domain/core/entities"
	"reqgraph/domain/core/valueobjects"
)

// NodeResponse is the wire form of a node
type NodeResponse struct {
	ID        string                `json:"id"`
	ProjectID string                `json:"projectId"`
	Category  string                `json:"category"`
	ParentID  string                `json:"parentId,omitempty"`
	Title     string                `json:"title"`
	Position  valueobjects.Position `json:"position"`
	Status    string                `json:"status"`
	Metadata  categories.Metadata   `json:"metadata"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
	Version   int                   `json:"version"`
}

// EdgeResponse is the wire form of an edge
type EdgeResponse struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	Target       string    `json:"target"`
	SourceHandle string    `json:"sourceHandle"`
	TargetHandle string    `json:"targetHandle"`
	Type         string    `json:"type"`
	CreatedAt    time.Time `json:"createdAt"`
}

// GraphResponse is a project's full graph
type GraphResponse struct {
	ProjectID string         `json:"projectId"`
	RootID    string         `json:"rootId,omitempty"`
	Nodes     []NodeResponse `json:"nodes"`
	Edges     []EdgeResponse `json:"edges"`
}

func toNodeResponse(n *entities.Node) NodeResponse {
	resp := NodeResponse{
		ID:        n.ID().String(),
		ProjectID: n.ProjectID(),
		Category:  string(n.Category()),
		Title:     n.Title(),
		Position:  n.Position(),
		Status:    string(n.Status()),
		Metadata:  n.Metadata(),
		CreatedAt: n.CreatedAt(),
		UpdatedAt: n.UpdatedAt(),
		Version:   n.Version(),
	}
	if !n.ParentID().IsZero() {
		resp.ParentID = n.ParentID().String()
	}
	return resp
}

func toEdgeResponse(e *entities.Edge) EdgeResponse {
	return EdgeResponse{
		ID:           e.ID.String(),
		Source:       e.SourceID.String(),
		Target:       e.TargetID.String(),
		SourceHandle: e.SourceHandle.String(),
		TargetHandle: e.TargetHandle.String(),
		Type:         string(e.Type),
		CreatedAt:    e.CreatedAt,
	}
}

func toGraphResponse(g *services.Graph) GraphResponse {
	resp := GraphResponse{
		ProjectID: g.ProjectID,
		Nodes:     make([]NodeResponse, 0, len(g.Nodes)),
		Edges:     make([]EdgeResponse, 0, len(g.Edges)),
	}
	if g.Root != nil {
		resp.RootID = g.Root.ID().String()
	}
	for _, n := range g.Nodes {
		resp.Nodes = append(resp.Nodes, toNodeResponse(n))
	}
	for _, e := range g.Edges {
		resp.Edges = append(resp.Edges, toEdgeResponse(e))
	}
	return resp
}
