package memory

import (
	"context"
	"sync"
	"testing"

	"reqgraph/domain/categories"
	"reqgraph/domain/core/entities"
	"reqgraph/domain/core/valueobjects"
	pkgerrors "reqgraph/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *GraphStore, projectID string) *entities.Node {
	t.Helper()
	root, err := entities.NewRootNode(projectID, "App", valueobjects.Position{})
	require.NoError(t, err)
	require.NoError(t, s.CreateNode(context.Background(), root))
	return root
}

func TestGraphStore_UniquenessGuards(t *testing.T) {
	s := NewGraphStore(nil)
	root := seed(t, s, "p1")
	ctx := context.Background()

	features, err := entities.NewNode("p1", categories.FeatureSet, root.ID(), "Features", valueobjects.Position{}, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateNode(ctx, features))

	second, err := entities.NewNode("p1", categories.FeatureSet, root.ID(), "More features", valueobjects.Position{}, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, s.CreateNode(ctx, second), pkgerrors.ErrNodeConflict)

	user, err := entities.NewNode("p1", categories.DataEntity, root.ID(), "User", valueobjects.Position{}, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateNode(ctx, user))

	dup, err := entities.NewNode("p1", categories.DataEntity, root.ID(), "User", valueobjects.Position{}, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, s.CreateNode(ctx, dup), pkgerrors.ErrNodeConflict)

	otherRoot := seed(t, s, "p2")
	elsewhere, err := entities.NewNode("p2", categories.FeatureSet, otherRoot.ID(), "Features", valueobjects.Position{}, nil)
	require.NoError(t, err)
	assert.NoError(t, s.CreateNode(ctx, elsewhere), "guards are per project")

	secondRoot, err := entities.NewRootNode("p1", "Again", valueobjects.Position{})
	require.NoError(t, err)
	assert.ErrorIs(t, s.CreateNode(ctx, secondRoot), pkgerrors.ErrNodeConflict)
}

func TestGraphStore_ConcurrentSingletonCreation(t *testing.T) {
	s := NewGraphStore(nil)
	root := seed(t, s, "p1")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			node, err := entities.NewNode("p1", categories.TechStack, root.ID(), "Tech Stack", valueobjects.Position{}, nil)
			if err != nil {
				return
			}
			if s.CreateNode(context.Background(), node) == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	count, err := s.CountChildren(context.Background(), "p1", root.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGraphStore_ReadsReturnCopies(t *testing.T) {
	s := NewGraphStore(nil)
	root := seed(t, s, "p1")
	ctx := context.Background()

	node, err := entities.NewNode("p1", categories.FeatureSet, root.ID(), "Features", valueobjects.Position{}, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateNode(ctx, node))

	got, err := s.GetNode(ctx, node.ID())
	require.NoError(t, err)
	got.Metadata().(*categories.FeatureSetMetadata).Features = append(
		got.Metadata().(*categories.FeatureSetMetadata).Features, categories.ListEntry{ID: 1, Title: "leak"})

	again, err := s.GetNode(ctx, node.ID())
	require.NoError(t, err)
	assert.Empty(t, again.Metadata().(*categories.FeatureSetMetadata).Features)
}

func TestGraphStore_EdgesAndDeletion(t *testing.T) {
	s := NewGraphStore(nil)
	root := seed(t, s, "p1")
	ctx := context.Background()

	user, err := entities.NewNode("p1", categories.DataEntity, root.ID(), "User", valueobjects.Position{}, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateNode(ctx, user))

	edge, err := entities.NewEdge("p1", root.ID(), user.ID(), valueobjects.HandleBottom, valueobjects.HandleTop, "")
	require.NoError(t, err)
	require.NoError(t, s.CreateEdge(ctx, edge))

	dup, err := entities.NewEdge("p1", root.ID(), user.ID(), valueobjects.HandleBottom, valueobjects.HandleTop, "")
	require.NoError(t, err)
	err = s.CreateEdge(ctx, dup)
	var conflict *pkgerrors.EdgeConflictError
	assert.ErrorAs(t, err, &conflict)

	dangling, err := entities.NewEdge("p1", root.ID(), valueobjects.NewNodeID(), valueobjects.HandleBottom, valueobjects.HandleTop, "")
	require.NoError(t, err)
	assert.ErrorIs(t, s.CreateEdge(ctx, dangling), pkgerrors.ErrNodeNotFound)

	require.NoError(t, s.DeleteNode(ctx, user.ID()))

	edges, err := s.ListEdges(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, edges)

	found, err := s.FindNodeByCategoryAndTitle(ctx, "p1", categories.DataEntity, "User")
	require.NoError(t, err)
	assert.Nil(t, found)

	recreated, err := entities.NewNode("p1", categories.DataEntity, root.ID(), "User", valueobjects.Position{}, nil)
	require.NoError(t, err)
	assert.NoError(t, s.CreateNode(ctx, recreated), "deleting a node frees its slot")

	assert.ErrorIs(t, s.DeleteNode(ctx, user.ID()), pkgerrors.ErrNodeNotFound)
}

func TestGraphStore_UpdateNodeMetadata(t *testing.T) {
	s := NewGraphStore(nil)
	root := seed(t, s, "p1")
	ctx := context.Background()

	flow, err := entities.NewNode("p1", categories.UserFlow, root.ID(), "Checkout", valueobjects.Position{}, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateNode(ctx, flow))

	doc := &categories.UserFlowMetadata{}
	doc.Merge("Checkout", "Pay for the cart", nil)
	require.NoError(t, s.UpdateNodeMetadata(ctx, flow.ID(), doc))

	got, err := s.GetNode(ctx, flow.ID())
	require.NoError(t, err)
	assert.Equal(t, "Pay for the cart", got.Metadata().(*categories.UserFlowMetadata).Description)
	assert.Equal(t, 2, got.Version())

	err = s.UpdateNodeMetadata(ctx, flow.ID(), &categories.DataEntityMetadata{})
	assert.True(t, pkgerrors.IsValidation(err), "schema must match the node category")

	assert.ErrorIs(t, s.UpdateNodeMetadata(ctx, valueobjects.NewNodeID(), doc), pkgerrors.ErrNodeNotFound)
}

func TestGraphStore_AnchorLookup(t *testing.T) {
	s := NewGraphStore(nil)
	ctx := context.Background()

	_, err := s.GetAnchorNode(ctx, "p1")
	assert.ErrorIs(t, err, pkgerrors.ErrNodeNotFound)

	root := seed(t, s, "p1")
	got, err := s.GetAnchorNode(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, got.ID().Equals(root.ID()))

	missing, err := s.FindNodeByCategory(ctx, "p1", categories.TechStack)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
