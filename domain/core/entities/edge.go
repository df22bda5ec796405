package entities

import (
	"fmt"
	"time"

	"reqgraph/domain/core/valueobjects"
	"reqgraph/domain/events"
	pkgerrors "reqgraph/pkg/errors"
)

// EdgeType defines the type of relationship
type EdgeType string

const EdgeTypeParentChild EdgeType = "parent_child"

// Edge is a directed, handle-annotated connection between two nodes. Edges
// are never updated in place.
type Edge struct {
	ID           valueobjects.EdgeID
	ProjectID    string
	SourceID     valueobjects.NodeID
	TargetID     valueobjects.NodeID
	SourceHandle valueobjects.Handle
	TargetHandle valueobjects.Handle
	Type         EdgeType
	CreatedAt    time.Time
}

// EdgeKey is the uniqueness key of an edge within a project
type EdgeKey struct {
	SourceID string
	TargetID string
	Type     EdgeType
}

// NewEdge validates and builds an edge. An empty type defaults to
// parent_child.
func NewEdge(
	projectID string,
	sourceID, targetID valueobjects.NodeID,
	sourceHandle, targetHandle valueobjects.Handle,
	edgeType EdgeType,
) (*Edge, error) {
	if projectID == "" {
		return nil, pkgerrors.NewValidationError("projectID cannot be empty")
	}
	if sourceID.IsZero() || targetID.IsZero() {
		return nil, pkgerrors.NewValidationError("edge endpoints are required")
	}
	if sourceID.Equals(targetID) {
		return nil, pkgerrors.NewValidationError("self-referencing edges are not allowed")
	}
	if !sourceHandle.IsValid() || !targetHandle.IsValid() {
		return nil, pkgerrors.NewValidationError(
			fmt.Sprintf("invalid handle pair %q -> %q", sourceHandle, targetHandle))
	}
	if edgeType == "" {
		edgeType = EdgeTypeParentChild
	}

	return &Edge{
		ID:           valueobjects.NewEdgeID(),
		ProjectID:    projectID,
		SourceID:     sourceID,
		TargetID:     targetID,
		SourceHandle: sourceHandle,
		TargetHandle: targetHandle,
		Type:         edgeType,
		CreatedAt:    time.Now(),
	}, nil
}

// Key returns the (source, target, type) triple
func (e *Edge) Key() EdgeKey {
	return EdgeKey{
		SourceID: e.SourceID.String(),
		TargetID: e.TargetID.String(),
		Type:     e.Type,
	}
}

// CreatedEvent returns the event announcing this edge
func (e *Edge) CreatedEvent() events.DomainEvent {
	return events.NewEdgeCreated(
		e.ID.String(),
		e.ProjectID,
		e.SourceID.String(),
		e.TargetID.String(),
		e.SourceHandle.String(),
		e.TargetHandle.String(),
		string(e.Type),
		e.CreatedAt,
	)
}
