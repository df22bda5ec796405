package services

import (
	"context"
	"errors"
	"time"

	"reqgraph/application/ports"
	"reqgraph/domain/categories"
	"reqgraph/domain/core/entities"
	"reqgraph/domain/core/valueobjects"
	"reqgraph/domain/events"
	domainservices "reqgraph/domain/services"
	pkgerrors "reqgraph/pkg/errors"

	"go.uber.org/zap"
)

// AdjacentNodeResult is the node and edge CreateAdjacent stored
type AdjacentNodeResult struct {
	Node *entities.Node
	Edge *entities.Edge
}

// AdjacentNodeService creates a node next to an existing one, in the compass
// direction the user dragged towards.
type AdjacentNodeService struct {
	store     ports.GraphStore
	edges     *EdgeSynthesizer
	layout    *domainservices.LayoutEngine
	publisher ports.EventPublisher
	logger    *zap.Logger
}

// NewAdjacentNodeService creates a new adjacent node service
func NewAdjacentNodeService(
	store ports.GraphStore,
	edges *EdgeSynthesizer,
	layout *domainservices.LayoutEngine,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *AdjacentNodeService {
	return &AdjacentNodeService{
		store:     store,
		edges:     edges,
		layout:    layout,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateAdjacent places a new node of category beside sourceID and links
// them through the direction handle and its opposite. The node is removed
// again if the edge cannot be stored.
func (s *AdjacentNodeService) CreateAdjacent(
	ctx context.Context,
	projectID string,
	sourceID valueobjects.NodeID,
	direction valueobjects.Handle,
	category categories.Category,
	title string,
) (*AdjacentNodeResult, error) {
	if !direction.IsValid() {
		return nil, pkgerrors.NewValidationError("direction must be one of top, right, bottom, left")
	}
	desc, err := categories.Classify(category)
	if err != nil {
		return nil, err
	}

	source, err := s.store.GetNode(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if source.ProjectID() != projectID {
		return nil, pkgerrors.NewNotFoundError("node")
	}

	if title == "" && desc.IsSingleton() {
		title = desc.DefaultTitle
	}
	metadata := desc.NewMetadata()
	if doc, ok := metadata.(categories.NamedDocument); ok {
		doc.Merge(title, "", nil)
	}

	position := s.layout.DirectionalPosition(source.Position(), direction)
	node, err := entities.NewNode(projectID, category, sourceID, title, position, metadata)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateNode(ctx, node); err != nil {
		if errors.Is(err, pkgerrors.ErrNodeConflict) {
			return nil, pkgerrors.NewConflictError("a " + string(category) + " node with this title already exists").WithCause(err)
		}
		return nil, &pkgerrors.NodeCreationError{ProjectID: projectID, Category: string(category), Title: title, Cause: err}
	}

	pending := node.GetUncommittedEvents()
	node.MarkEventsAsCommitted()

	outcome, err := s.edges.Connect(ctx, projectID, sourceID, Resolution{Node: node, Created: true}, direction, direction.Opposite())
	if err != nil {
		if outcome.RolledBack {
			s.publish(ctx, events.NewNodeRolledBack(node.ID(), projectID, err.Error(), time.Now()))
		}
		return nil, err
	}
	if outcome.Created {
		pending = append(pending, outcome.Edge.CreatedEvent())
	}
	s.publish(ctx, pending...)

	s.logger.Info("Created adjacent node",
		zap.String("projectID", projectID),
		zap.String("sourceID", sourceID.String()),
		zap.String("nodeID", node.ID().String()),
		zap.String("direction", direction.String()),
	)

	return &AdjacentNodeResult{Node: node, Edge: outcome.Edge}, nil
}

func (s *AdjacentNodeService) publish(ctx context.Context, pending ...events.DomainEvent) {
	if s.publisher == nil || len(pending) == 0 {
		return
	}
	if err := s.publisher.PublishBatch(context.WithoutCancel(ctx), pending); err != nil {
		s.logger.Warn("Failed to publish events", zap.Error(err))
	}
}
