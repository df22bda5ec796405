package services_test

import (
	"context"
	"testing"

	"reqgraph/application/services"
	"reqgraph/domain/categories"
	"reqgraph/domain/core/entities"
	"reqgraph/domain/core/valueobjects"
	domainservices "reqgraph/domain/services"
	"reqgraph/infrastructure/persistence/memory"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testProject = "project-1"

// faultyStore is the in-memory store with per-method failure injection
type faultyStore struct {
	*memory.GraphStore

	createNodeErr error
	createEdgeErr error
	deleteNodeErr error
	updateErr     error
	anchorErr     error

	// beforeCreateNode runs ahead of every CreateNode, e.g. to let a
	// competing writer take the slot first
	beforeCreateNode func(ctx context.Context)

	createEdgeCalls int
	deleteNodeCalls int
}

func newFaultyStore() *faultyStore {
	return &faultyStore{GraphStore: memory.NewGraphStore(zap.NewNop())}
}

func (s *faultyStore) CreateNode(ctx context.Context, node *entities.Node) error {
	if s.beforeCreateNode != nil {
		s.beforeCreateNode(ctx)
	}
	if s.createNodeErr != nil {
		return s.createNodeErr
	}
	return s.GraphStore.CreateNode(ctx, node)
}

func (s *faultyStore) CreateEdge(ctx context.Context, edge *entities.Edge) error {
	s.createEdgeCalls++
	if s.createEdgeErr != nil {
		return s.createEdgeErr
	}
	return s.GraphStore.CreateEdge(ctx, edge)
}

func (s *faultyStore) DeleteNode(ctx context.Context, nodeID valueobjects.NodeID) error {
	s.deleteNodeCalls++
	if s.deleteNodeErr != nil {
		return s.deleteNodeErr
	}
	return s.GraphStore.DeleteNode(ctx, nodeID)
}

func (s *faultyStore) UpdateNodeMetadata(ctx context.Context, nodeID valueobjects.NodeID, metadata categories.Metadata) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.GraphStore.UpdateNodeMetadata(ctx, nodeID, metadata)
}

func (s *faultyStore) GetAnchorNode(ctx context.Context, projectID string) (*entities.Node, error) {
	if s.anchorErr != nil {
		return nil, s.anchorErr
	}
	return s.GraphStore.GetAnchorNode(ctx, projectID)
}

// engine bundles the services wired over one store
type engine struct {
	store     *faultyStore
	resolver  *services.NodeResolver
	edges     *services.EdgeSynthesizer
	merger    *services.MetadataMerger
	processor *services.SuggestionProcessor
	layout    *domainservices.LayoutEngine
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	logger := zap.NewNop()
	store := newFaultyStore()
	layout := domainservices.NewLayoutEngine(nil)

	e := &engine{
		store:    store,
		layout:   layout,
		resolver: services.NewNodeResolver(store, layout, logger),
		edges:    services.NewEdgeSynthesizer(store, logger),
		merger:   services.NewMetadataMerger(store, logger),
	}
	e.processor = services.NewSuggestionProcessor(e.resolver, e.edges, e.merger, store, nil, nil, nil, logger)
	return e
}

// seedRoot creates the project's anchor node at the origin
func seedRoot(t *testing.T, store *faultyStore, projectID string) *entities.Node {
	t.Helper()
	root, err := entities.NewRootNode(projectID, "My App", valueobjects.Position{})
	require.NoError(t, err)
	require.NoError(t, store.GraphStore.CreateNode(context.Background(), root))
	return root
}

func listEntries(t *testing.T, node *entities.Node) []categories.ListEntry {
	t.Helper()
	list, ok := node.Metadata().(categories.EntryList)
	require.True(t, ok, "expected list metadata on %s node", node.Category())
	return list.Entries()
}

func entryIDs(entries []categories.ListEntry) []int {
	ids := make([]int, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}
