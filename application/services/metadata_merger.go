package services

import (
	"context"
	"fmt"
	"strings"

	"reqgraph/application/ports"
	"reqgraph/domain/categories"
	"reqgraph/domain/core/entities"
	"reqgraph/domain/core/valueobjects"
	"reqgraph/domain/suggestions"
	pkgerrors "reqgraph/pkg/errors"

	"go.uber.org/zap"
)

// MetadataMerger folds suggestion items into a node's metadata document.
// Writes are last-write-wins; there is no version check.
type MetadataMerger struct {
	store  ports.GraphStore
	logger *zap.Logger
}

// NewMetadataMerger creates a new metadata merger
func NewMetadataMerger(store ports.GraphStore, logger *zap.Logger) *MetadataMerger {
	return &MetadataMerger{
		store:  store,
		logger: logger,
	}
}

// MergeSuggestion applies one item to the node and writes the whole document
// back. Singleton categories get a new list entry numbered max(ids)+1;
// multi-instance categories are shallow-merged, keeping fields the item
// does not mention.
func (m *MetadataMerger) MergeSuggestion(
	ctx context.Context,
	nodeID valueobjects.NodeID,
	category categories.Category,
	item suggestions.Item,
) (*entities.Node, error) {
	desc, err := categories.Classify(category)
	if err != nil {
		return nil, err
	}

	fail := func(cause error) error {
		return &pkgerrors.MetadataMergeError{NodeID: nodeID.String(), Category: string(category), Cause: cause}
	}

	node, err := m.store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, fail(err)
	}
	if node.Category() != category {
		return nil, fail(fmt.Errorf("node is a %s node", node.Category()))
	}

	next, err := categories.Clone(node.Metadata())
	if err != nil {
		return nil, fail(err)
	}

	title := strings.TrimSpace(item.Title)
	switch {
	case desc.IsSingleton():
		list, ok := next.(categories.EntryList)
		if !ok {
			return nil, fail(fmt.Errorf("%s metadata has no %s list", category, desc.ListField))
		}
		entries := list.Entries()
		id := categories.NextEntryID(entries)
		list.SetEntries(append(entries, categories.NewListEntry(id, title, item.Description, item.Metadata)))
		m.logger.Debug("Appending list entry",
			zap.String("nodeID", nodeID.String()),
			zap.String("field", desc.ListField),
			zap.Int("entryID", id),
		)
	default:
		doc, ok := next.(categories.NamedDocument)
		if !ok {
			return nil, fail(fmt.Errorf("%s metadata is not a document", category))
		}
		doc.Merge(title, item.Description, item.Metadata)
	}

	if err := node.ReplaceMetadata(next); err != nil {
		return nil, fail(err)
	}
	if err := m.store.UpdateNodeMetadata(ctx, nodeID, next); err != nil {
		return nil, fail(err)
	}

	return node, nil
}
