package services_test

import (
	"context"
	"testing"

	"reqgraph/application/protocol"
	"reqgraph/application/services"
	"reqgraph/domain/categories"
	"reqgraph/domain/core/valueobjects"
	pkgerrors "reqgraph/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGraphService_InitializeProjectIsIdempotent(t *testing.T) {
	e := newEngine(t)
	graphs := services.NewGraphService(e.store, nil, zap.NewNop())
	ctx := context.Background()

	root, created, err := graphs.InitializeProject(ctx, testProject, "Storefront")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, root.IsRoot())
	assert.Equal(t, categories.Root, root.Category())
	assert.Equal(t, valueobjects.Position{}, root.Position())

	again, created, err := graphs.InitializeProject(ctx, testProject, "Renamed")
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, again.ID().Equals(root.ID()))
	assert.Equal(t, "Storefront", again.Title())
}

func TestGraphService_GetGraph(t *testing.T) {
	e := newEngine(t)
	graphs := services.NewGraphService(e.store, nil, zap.NewNop())
	ctx := context.Background()

	root, _, err := graphs.InitializeProject(ctx, testProject, "Storefront")
	require.NoError(t, err)
	e.processor.Apply(ctx, testProject, dataEntityGroup())

	graph, err := graphs.GetGraph(ctx, testProject)

	require.NoError(t, err)
	require.NotNil(t, graph.Root)
	assert.True(t, graph.Root.ID().Equals(root.ID()))
	assert.Len(t, graph.Nodes, 3)
	assert.Len(t, graph.Edges, 2)
	assert.True(t, graph.Nodes[0].IsRoot(), "nodes are ordered oldest first")

	empty, err := graphs.GetGraph(ctx, "other-project")
	require.NoError(t, err)
	assert.Nil(t, empty.Root)
	assert.Empty(t, empty.Nodes)
}

func TestTurnService_Ingest(t *testing.T) {
	e := newEngine(t)
	seedRoot(t, e.store, testProject)
	turns := services.NewTurnService(protocol.NewParser(4, zap.NewNop()), e.processor, zap.NewNop())
	ctx := context.Background()

	text := "Here are some entities to start with.\n\n" +
		"OPTIONS:\n1. Add auth\n2. Add search\n\n" +
		`SUGGESTIONS: {"type":"data-entity","items":[{"title":"User"},{"title":"Order"}]}`

	t.Run("applies suggestions", func(t *testing.T) {
		result := turns.Ingest(ctx, testProject, text, 2)

		assert.Equal(t, "Here are some entities to start with.", result.DisplayMessage)
		assert.Equal(t, []string{"Add auth", "Add search"}, result.Options)
		require.NotNil(t, result.Report)
		assert.Equal(t, 2, result.Report.NodesCreated)
	})

	t.Run("default threshold drops short options", func(t *testing.T) {
		result := turns.Ingest(ctx, testProject, text, 0)

		assert.Empty(t, result.Options)
		require.NotNil(t, result.Report)
		assert.Zero(t, result.Report.NodesCreated)
	})

	t.Run("malformed block applies nothing", func(t *testing.T) {
		result := turns.Ingest(ctx, testProject, `Sure. SUGGESTIONS: {"type": "data-entity", "items": [}`, 0)

		assert.Nil(t, result.Report)
		assert.Nil(t, result.Suggestions)
		var parseErr *pkgerrors.ProtocolParseError
		assert.ErrorAs(t, result.SuggestionsErr, &parseErr)
		assert.Equal(t, "Sure.", result.DisplayMessage)
	})
}

func TestAdjacentNodeService_CreateAdjacent(t *testing.T) {
	tests := []struct {
		direction valueobjects.Handle
		position  valueobjects.Position
	}{
		{valueobjects.HandleRight, valueobjects.Position{X: 360, Y: 0}},
		{valueobjects.HandleLeft, valueobjects.Position{X: -360, Y: 0}},
		{valueobjects.HandleTop, valueobjects.Position{X: 0, Y: -200}},
		{valueobjects.HandleBottom, valueobjects.Position{X: 0, Y: 200}},
	}

	for _, tt := range tests {
		t.Run(tt.direction.String(), func(t *testing.T) {
			e := newEngine(t)
			root := seedRoot(t, e.store, testProject)
			adjacent := services.NewAdjacentNodeService(e.store, e.edges, e.layout, nil, zap.NewNop())

			result, err := adjacent.CreateAdjacent(context.Background(), testProject, root.ID(), tt.direction, categories.UserFlow, "Checkout")

			require.NoError(t, err)
			assert.Equal(t, tt.position, result.Node.Position())
			assert.True(t, result.Node.ParentID().Equals(root.ID()))
			require.NotNil(t, result.Edge)
			assert.Equal(t, tt.direction, result.Edge.SourceHandle)
			assert.Equal(t, tt.direction.Opposite(), result.Edge.TargetHandle)
		})
	}
}

func TestAdjacentNodeService_Errors(t *testing.T) {
	e := newEngine(t)
	root := seedRoot(t, e.store, testProject)
	adjacent := services.NewAdjacentNodeService(e.store, e.edges, e.layout, nil, zap.NewNop())
	ctx := context.Background()

	t.Run("invalid direction", func(t *testing.T) {
		_, err := adjacent.CreateAdjacent(ctx, testProject, root.ID(), valueobjects.Handle("diagonal"), categories.UserFlow, "A")
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("source in another project", func(t *testing.T) {
		_, err := adjacent.CreateAdjacent(ctx, "other", root.ID(), valueobjects.HandleTop, categories.UserFlow, "A")
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("second singleton conflicts", func(t *testing.T) {
		_, err := adjacent.CreateAdjacent(ctx, testProject, root.ID(), valueobjects.HandleRight, categories.FeatureSet, "")
		require.NoError(t, err)

		_, err = adjacent.CreateAdjacent(ctx, testProject, root.ID(), valueobjects.HandleLeft, categories.FeatureSet, "")
		assert.True(t, pkgerrors.IsConflict(err))
	})

	t.Run("edge failure removes the node", func(t *testing.T) {
		e.store.createEdgeErr = assert.AnError
		defer func() { e.store.createEdgeErr = nil }()

		_, err := adjacent.CreateAdjacent(ctx, testProject, root.ID(), valueobjects.HandleBottom, categories.DataEntity, "Invoice")

		require.Error(t, err)
		node, lookupErr := e.store.FindNodeByCategoryAndTitle(ctx, testProject, categories.DataEntity, "Invoice")
		require.NoError(t, lookupErr)
		assert.Nil(t, node)
	})
}
