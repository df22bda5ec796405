// Package persistence holds the key scheme shared by the graph store
// backends.
package persistence

import (
	"fmt"

	"reqgraph/domain/categories"
	"reqgraph/domain/core/entities"
)

// UniquenessKey names the slot a node occupies in its project. Two nodes with
// the same key cannot coexist: the root and every singleton category hold one
// slot per project, multi-instance categories one slot per title.
func UniquenessKey(category categories.Category, title string) string {
	if category == categories.Root {
		return "UNIQUE#root"
	}
	if desc, err := categories.Classify(category); err == nil && !desc.IsSingleton() {
		return fmt.Sprintf("UNIQUE#%s#%s", category, title)
	}
	return fmt.Sprintf("UNIQUE#%s", category)
}

// NodeUniquenessKey is UniquenessKey for an existing node
func NodeUniquenessKey(node *entities.Node) string {
	return UniquenessKey(node.Category(), node.Title())
}

// EdgeKey identifies an edge within its project by (source, target, type)
func EdgeKey(edge *entities.Edge) string {
	k := edge.Key()
	return fmt.Sprintf("EDGE#%s#%s#%s", k.SourceID, k.TargetID, k.Type)
}
