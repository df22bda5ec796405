package services_test

import (
	"context"
	"errors"
	"testing"

	"reqgraph/domain/categories"
	"reqgraph/domain/core/entities"
	"reqgraph/domain/core/valueobjects"
	"reqgraph/domain/suggestions"
	pkgerrors "reqgraph/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataMerger_SubIDsStartAtOne(t *testing.T) {
	e := newEngine(t)
	seedRoot(t, e.store, testProject)
	ctx := context.Background()

	res, err := e.resolver.ResolveTargetNode(ctx, testProject, categories.FeatureSet, "")
	require.NoError(t, err)

	_, err = e.merger.MergeSuggestion(ctx, res.Node.ID(), categories.FeatureSet, suggestions.Item{Title: "Login"})
	require.NoError(t, err)
	_, err = e.merger.MergeSuggestion(ctx, res.Node.ID(), categories.FeatureSet, suggestions.Item{
		Title:       "Search",
		Description: "Full-text search",
		Metadata:    map[string]any{"priority": "high", "id": 99.0},
	})
	require.NoError(t, err)

	stored, err := e.store.GetNode(ctx, res.Node.ID())
	require.NoError(t, err)
	entries := listEntries(t, stored)
	assert.Equal(t, []int{1, 2}, entryIDs(entries))
	assert.Equal(t, "Search", entries[1].Title)
	assert.Equal(t, "Full-text search", entries[1].Description)
	assert.Equal(t, map[string]any{"priority": "high"}, entries[1].Extra)
}

func TestMetadataMerger_SubIDFollowsMaximum(t *testing.T) {
	e := newEngine(t)
	root := seedRoot(t, e.store, testProject)
	ctx := context.Background()

	node, err := entities.NewNode(testProject, categories.TechStack, root.ID(), "Tech Stack", valueobjects.Position{}, &categories.TechStackMetadata{
		Technologies: []categories.ListEntry{
			{ID: 5, Title: "Go"},
			{ID: 2, Title: "Postgres"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, e.store.CreateNode(ctx, node))

	merged, err := e.merger.MergeSuggestion(ctx, node.ID(), categories.TechStack, suggestions.Item{Title: "Redis"})

	require.NoError(t, err)
	assert.Equal(t, []int{5, 2, 6}, entryIDs(listEntries(t, merged)))
	assert.Len(t, merged.GetUncommittedEvents(), 1)
}

func TestMetadataMerger_ShallowMergeKeepsUnmentionedFields(t *testing.T) {
	e := newEngine(t)
	seedRoot(t, e.store, testProject)
	ctx := context.Background()

	res, err := e.resolver.ResolveTargetNode(ctx, testProject, categories.DataEntity, "User")
	require.NoError(t, err)

	_, err = e.merger.MergeSuggestion(ctx, res.Node.ID(), categories.DataEntity, suggestions.Item{
		Title:       "User",
		Description: "A registered account",
		Metadata:    map[string]any{"fields": []any{"id", "email"}, "owner": "auth"},
	})
	require.NoError(t, err)
	_, err = e.merger.MergeSuggestion(ctx, res.Node.ID(), categories.DataEntity, suggestions.Item{
		Title:    "User",
		Metadata: map[string]any{"owner": "accounts"},
	})
	require.NoError(t, err)

	stored, err := e.store.GetNode(ctx, res.Node.ID())
	require.NoError(t, err)
	doc, ok := stored.Metadata().(*categories.DataEntityMetadata)
	require.True(t, ok)
	assert.Equal(t, "User", doc.Name)
	assert.Equal(t, "A registered account", doc.Description)
	assert.Equal(t, "accounts", doc.Attributes["owner"])
	assert.Equal(t, []any{"id", "email"}, doc.Attributes["fields"])
}

func TestMetadataMerger_Errors(t *testing.T) {
	e := newEngine(t)
	seedRoot(t, e.store, testProject)
	ctx := context.Background()

	flow, err := e.resolver.ResolveTargetNode(ctx, testProject, categories.UserFlow, "Checkout")
	require.NoError(t, err)

	t.Run("unknown node", func(t *testing.T) {
		_, err := e.merger.MergeSuggestion(ctx, valueobjects.NewNodeID(), categories.UserFlow, suggestions.Item{Title: "x"})
		var target *pkgerrors.MetadataMergeError
		require.ErrorAs(t, err, &target)
		assert.ErrorIs(t, err, pkgerrors.ErrNodeNotFound)
	})

	t.Run("category mismatch", func(t *testing.T) {
		_, err := e.merger.MergeSuggestion(ctx, flow.Node.ID(), categories.DataEntity, suggestions.Item{Title: "Checkout"})
		var target *pkgerrors.MetadataMergeError
		require.ErrorAs(t, err, &target)
		assert.Contains(t, err.Error(), "user-flow")
	})

	t.Run("store write fails", func(t *testing.T) {
		e.store.updateErr = errors.New("provisioned throughput exceeded")
		defer func() { e.store.updateErr = nil }()

		_, err := e.merger.MergeSuggestion(ctx, flow.Node.ID(), categories.UserFlow, suggestions.Item{Title: "Checkout"})
		assert.Equal(t, "MetadataMerge", pkgerrors.Kind(err))
	})
}
