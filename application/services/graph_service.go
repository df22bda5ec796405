package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"reqgraph/application/ports"
	"reqgraph/domain/core/entities"
	"reqgraph/domain/core/valueobjects"
	pkgerrors "reqgraph/pkg/errors"

	"go.uber.org/zap"
)

// Graph is a project's full node and edge set
type Graph struct {
	ProjectID string
	Root      *entities.Node
	Nodes     []*entities.Node
	Edges     []*entities.Edge
}

// GraphService initializes projects and reads their graphs back
type GraphService struct {
	store     ports.GraphStore
	publisher ports.EventPublisher
	logger    *zap.Logger
}

// NewGraphService creates a new graph service
func NewGraphService(store ports.GraphStore, publisher ports.EventPublisher, logger *zap.Logger) *GraphService {
	return &GraphService{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// InitializeProject creates the project's root node at the origin. It is a
// no-op returning the existing root when one is already there.
func (s *GraphService) InitializeProject(ctx context.Context, projectID, name string) (*entities.Node, bool, error) {
	existing, err := s.store.GetAnchorNode(ctx, projectID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pkgerrors.ErrNodeNotFound) {
		return nil, false, fmt.Errorf("load root node: %w", err)
	}

	root, err := entities.NewRootNode(projectID, name, valueobjects.Position{})
	if err != nil {
		return nil, false, err
	}
	if err := s.store.CreateNode(ctx, root); err != nil {
		if errors.Is(err, pkgerrors.ErrNodeConflict) {
			existing, lookupErr := s.store.GetAnchorNode(ctx, projectID)
			if lookupErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("create root node: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishBatch(ctx, root.GetUncommittedEvents()); err != nil {
			s.logger.Warn("Failed to publish root creation", zap.Error(err))
		}
	}
	root.MarkEventsAsCommitted()

	s.logger.Info("Project initialized",
		zap.String("projectID", projectID),
		zap.String("rootID", root.ID().String()),
	)
	return root, true, nil
}

// GetGraph returns every node and edge of the project, nodes ordered by
// creation time.
func (s *GraphService) GetGraph(ctx context.Context, projectID string) (*Graph, error) {
	nodes, err := s.store.ListNodes(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	edges, err := s.store.ListEdges(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].CreatedAt().Before(nodes[j].CreatedAt())
	})

	graph := &Graph{ProjectID: projectID, Nodes: nodes, Edges: edges}
	for _, n := range nodes {
		if n.IsRoot() {
			graph.Root = n
			break
		}
	}
	return graph, nil
}
