// Package memory provides an in-process GraphStore for local runs and tests
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"reqgraph/domain/categories"
	"reqgraph/domain/core/entities"
	"reqgraph/domain/core/valueobjects"
	"reqgraph/infrastructure/persistence"
	pkgerrors "reqgraph/pkg/errors"

	"go.uber.org/zap"
)

// GraphStore keeps nodes and edges in maps guarded by one mutex. Every read
// returns a copy so callers cannot mutate stored state.
type GraphStore struct {
	mu     sync.RWMutex
	nodes  map[valueobjects.NodeID]*entities.Node
	guards map[string]valueobjects.NodeID // projectID + uniqueness key
	edges  map[string]*entities.Edge      // projectID + edge key
	logger *zap.Logger
}

// NewGraphStore creates an empty store
func NewGraphStore(logger *zap.Logger) *GraphStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphStore{
		nodes:  make(map[valueobjects.NodeID]*entities.Node),
		guards: make(map[string]valueobjects.NodeID),
		edges:  make(map[string]*entities.Edge),
		logger: logger,
	}
}

func guardKey(projectID, key string) string { return projectID + "|" + key }

// GetAnchorNode returns the project's root node
func (s *GraphStore) GetAnchorNode(ctx context.Context, projectID string) (*entities.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.guards[guardKey(projectID, persistence.UniquenessKey(categories.Root, ""))]
	if !ok {
		return nil, fmt.Errorf("root of project %s: %w", projectID, pkgerrors.ErrNodeNotFound)
	}
	return copyNode(s.nodes[id])
}

// FindNodeByCategory returns the oldest node of category, or nil
func (s *GraphStore) FindNodeByCategory(ctx context.Context, projectID string, category categories.Category) (*entities.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *entities.Node
	for _, n := range s.nodes {
		if n.ProjectID() != projectID || n.Category() != category {
			continue
		}
		if found == nil || n.CreatedAt().Before(found.CreatedAt()) {
			found = n
		}
	}
	if found == nil {
		return nil, nil
	}
	return copyNode(found)
}

// FindNodeByCategoryAndTitle returns the node with this exact title, or nil
func (s *GraphStore) FindNodeByCategoryAndTitle(ctx context.Context, projectID string, category categories.Category, title string) (*entities.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.nodes {
		if n.ProjectID() == projectID && n.Category() == category && n.Title() == title {
			return copyNode(n)
		}
	}
	return nil, nil
}

// GetNode returns a node by ID
func (s *GraphStore) GetNode(ctx context.Context, nodeID valueobjects.NodeID) (*entities.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", nodeID, pkgerrors.ErrNodeNotFound)
	}
	return copyNode(n)
}

// CountChildren counts nodes parented to parentID
func (s *GraphStore) CountChildren(ctx context.Context, projectID string, parentID valueobjects.NodeID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.nodes {
		if n.ProjectID() == projectID && n.ParentID().Equals(parentID) {
			count++
		}
	}
	return count, nil
}

// CreateNode stores a node, claiming its uniqueness slot
func (s *GraphStore) CreateNode(ctx context.Context, node *entities.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored, err := copyNode(node)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[node.ID()]; exists {
		return fmt.Errorf("node %s: %w", node.ID(), pkgerrors.ErrNodeConflict)
	}
	key := guardKey(node.ProjectID(), persistence.NodeUniquenessKey(node))
	if holder, taken := s.guards[key]; taken {
		return fmt.Errorf("%s held by %s: %w", key, holder, pkgerrors.ErrNodeConflict)
	}

	s.guards[key] = node.ID()
	s.nodes[node.ID()] = stored

	s.logger.Debug("Stored node",
		zap.String("nodeID", node.ID().String()),
		zap.String("category", string(node.Category())),
	)
	return nil
}

// UpdateNodeMetadata replaces the metadata document of a node
func (s *GraphStore) UpdateNodeMetadata(ctx context.Context, nodeID valueobjects.NodeID, metadata categories.Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := categories.Clone(metadata)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[nodeID]
	if !ok {
		return fmt.Errorf("node %s: %w", nodeID, pkgerrors.ErrNodeNotFound)
	}
	if err := n.ReplaceMetadata(doc); err != nil {
		return err
	}
	n.MarkEventsAsCommitted()
	return nil
}

// CreateEdge stores an edge unless its (source, target, type) already exists
func (s *GraphStore) CreateEdge(ctx context.Context, edge *entities.Edge) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range []valueobjects.NodeID{edge.SourceID, edge.TargetID} {
		if _, ok := s.nodes[id]; !ok {
			return fmt.Errorf("edge endpoint %s: %w", id, pkgerrors.ErrNodeNotFound)
		}
	}

	key := guardKey(edge.ProjectID, persistence.EdgeKey(edge))
	if _, exists := s.edges[key]; exists {
		return &pkgerrors.EdgeConflictError{
			SourceID: edge.SourceID.String(),
			TargetID: edge.TargetID.String(),
			EdgeType: string(edge.Type),
		}
	}

	stored := *edge
	s.edges[key] = &stored
	return nil
}

// DeleteNode removes a node, its uniqueness slot and its incident edges
func (s *GraphStore) DeleteNode(ctx context.Context, nodeID valueobjects.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[nodeID]
	if !ok {
		return fmt.Errorf("node %s: %w", nodeID, pkgerrors.ErrNodeNotFound)
	}

	key := guardKey(n.ProjectID(), persistence.NodeUniquenessKey(n))
	if holder := s.guards[key]; holder.Equals(nodeID) {
		delete(s.guards, key)
	}
	for k, e := range s.edges {
		if e.SourceID.Equals(nodeID) || e.TargetID.Equals(nodeID) {
			delete(s.edges, k)
		}
	}
	delete(s.nodes, nodeID)

	s.logger.Debug("Deleted node", zap.String("nodeID", nodeID.String()))
	return nil
}

// ListNodes returns the project's nodes oldest first
func (s *GraphStore) ListNodes(ctx context.Context, projectID string) ([]*entities.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entities.Node
	for _, n := range s.nodes {
		if n.ProjectID() != projectID {
			continue
		}
		c, err := copyNode(n)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().Before(out[j].CreatedAt()) })
	return out, nil
}

// ListEdges returns the project's edges oldest first
func (s *GraphStore) ListEdges(ctx context.Context, projectID string) ([]*entities.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entities.Edge
	for _, e := range s.edges {
		if e.ProjectID == projectID {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func copyNode(n *entities.Node) (*entities.Node, error) {
	metadata, err := categories.Clone(n.Metadata())
	if err != nil {
		return nil, fmt.Errorf("copy node %s: %w", n.ID(), err)
	}
	return entities.ReconstructNode(
		n.ID(),
		n.ProjectID(),
		n.Category(),
		n.ParentID(),
		n.Title(),
		n.Position(),
		n.Status(),
		metadata,
		n.CreatedAt(),
		n.UpdatedAt(),
		n.Version(),
	), nil
}
