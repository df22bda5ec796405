// Package categories holds the closed table of requirement-node categories.
// Every category-specific behavior (cardinality, default title, edge handles,
// metadata schema) is declared here and nowhere else.
package categories

import (
	"sort"

	"reqgraph/domain/core/valueobjects"
	pkgerrors "reqgraph/pkg/errors"
)

// Category is the closed tag identifying a kind of requirement node
type Category string

const (
	FeatureSet Category = "feature-set"
	TechStack  Category = "tech-stack"
	DataEntity Category = "data-entity"
	UserFlow   Category = "user-flow"

	// Root tags the project's anchor node. It is not a suggestion category.
	Root Category = "root"
)

// Cardinality tells whether a project may hold one or many nodes of a category
type Cardinality string

const (
	Singleton     Cardinality = "singleton"
	MultiInstance Cardinality = "multi-instance"
)

// Descriptor is the static declaration of one category
type Descriptor struct {
	Category     Category
	Cardinality  Cardinality
	DefaultTitle string
	SourceHandle valueobjects.Handle
	TargetHandle valueobjects.Handle

	// ListField names the list held in a singleton node's metadata.
	ListField string
	// NameField names the canonical title-derived field of a multi-instance
	// node's metadata document.
	NameField string

	newMetadata func() Metadata
}

// IsSingleton reports whether the category allows one node per project
func (d Descriptor) IsSingleton() bool {
	return d.Cardinality == Singleton
}

// NewMetadata returns the empty metadata shell for a fresh node
func (d Descriptor) NewMetadata() Metadata {
	return d.newMetadata()
}

var registry = map[Category]Descriptor{
	FeatureSet: {
		Category:     FeatureSet,
		Cardinality:  Singleton,
		DefaultTitle: "Features",
		SourceHandle: valueobjects.HandleRight,
		TargetHandle: valueobjects.HandleLeft,
		ListField:    "features",
		newMetadata:  func() Metadata { return &FeatureSetMetadata{Features: []ListEntry{}} },
	},
	TechStack: {
		Category:     TechStack,
		Cardinality:  Singleton,
		DefaultTitle: "Tech Stack",
		SourceHandle: valueobjects.HandleLeft,
		TargetHandle: valueobjects.HandleRight,
		ListField:    "technologies",
		newMetadata:  func() Metadata { return &TechStackMetadata{Technologies: []ListEntry{}} },
	},
	DataEntity: {
		Category:     DataEntity,
		Cardinality:  MultiInstance,
		DefaultTitle: "Data Entity",
		SourceHandle: valueobjects.HandleBottom,
		TargetHandle: valueobjects.HandleTop,
		NameField:    "entityName",
		newMetadata:  func() Metadata { return &DataEntityMetadata{} },
	},
	UserFlow: {
		Category:     UserFlow,
		Cardinality:  MultiInstance,
		DefaultTitle: "User Flow",
		SourceHandle: valueobjects.HandleTop,
		TargetHandle: valueobjects.HandleBottom,
		NameField:    "flowName",
		newMetadata:  func() Metadata { return &UserFlowMetadata{} },
	},
}

// Classify returns the descriptor for a category tag or an
// UnknownCategoryError.
func Classify(category Category) (Descriptor, error) {
	d, ok := registry[category]
	if !ok {
		return Descriptor{}, &pkgerrors.UnknownCategoryError{Category: string(category)}
	}
	return d, nil
}

// All returns every descriptor ordered by category tag
func All() []Descriptor {
	out := make([]Descriptor, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// IsKnown reports whether the tag is a suggestion category
func IsKnown(category Category) bool {
	_, ok := registry[category]
	return ok
}
