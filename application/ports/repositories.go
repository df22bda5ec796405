package ports

import (
	"context"
	"time"

	"reqgraph/domain/categories"
	"reqgraph/domain/core/entities"
	"reqgraph/domain/core/valueobjects"
	"reqgraph/domain/events"
	"reqgraph/domain/suggestions"
)

// GraphStore is the persistent node/edge store the engine writes to.
// This is a port in hexagonal architecture - the engine doesn't know about the implementation.
//
// Each call is isolated on its own; the store offers no transaction spanning
// a node creation followed by an edge creation.
type GraphStore interface {
	// GetAnchorNode returns the project's unparented root node, or an error
	// wrapping errors.ErrNodeNotFound.
	GetAnchorNode(ctx context.Context, projectID string) (*entities.Node, error)

	// FindNodeByCategory returns any node of the category, or nil if none
	FindNodeByCategory(ctx context.Context, projectID string, category categories.Category) (*entities.Node, error)

	// FindNodeByCategoryAndTitle returns the node with exactly this title, or nil
	FindNodeByCategoryAndTitle(ctx context.Context, projectID string, category categories.Category, title string) (*entities.Node, error)

	// GetNode retrieves a node by its ID, or an error wrapping errors.ErrNodeNotFound
	GetNode(ctx context.Context, nodeID valueobjects.NodeID) (*entities.Node, error)

	// CountChildren counts nodes whose parent is parentID
	CountChildren(ctx context.Context, projectID string, parentID valueobjects.NodeID) (int, error)

	// CreateNode persists a new node. A second node for a singleton category,
	// or for an existing (multi-instance category, title) pair, fails with an
	// error wrapping errors.ErrNodeConflict.
	CreateNode(ctx context.Context, node *entities.Node) error

	// UpdateNodeMetadata replaces a node's metadata document (last write wins)
	UpdateNodeMetadata(ctx context.Context, nodeID valueobjects.NodeID, metadata categories.Metadata) error

	// CreateEdge persists a new edge. A duplicate (source, target, type) fails
	// with *errors.EdgeConflictError.
	CreateEdge(ctx context.Context, edge *entities.Edge) error

	// DeleteNode removes a node and the edges touching it
	DeleteNode(ctx context.Context, nodeID valueobjects.NodeID) error

	// ListNodes returns every node of a project
	ListNodes(ctx context.Context, projectID string) ([]*entities.Node, error)

	// ListEdges returns every edge of a project
	ListEdges(ctx context.Context, projectID string) ([]*entities.Edge, error)
}

// ProjectLocker serializes suggestion processing per project. The returned
// unlock function must be called exactly once.
type ProjectLocker interface {
	Lock(ctx context.Context, projectID string) (unlock func(), err error)
}

// EventPublisher publishes domain events
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Notifier is the side channel that reports suggestion failures to the user
type Notifier interface {
	ItemFailed(ctx context.Context, projectID string, category categories.Category, position int, item suggestions.Item, err error)
	GroupFailed(ctx context.Context, projectID string, group suggestions.Group, err error)
}

// RunMetrics is what one suggestion run reports to monitoring
type RunMetrics struct {
	ProjectID    string
	Category     string
	Applied      int
	Failed       int
	Skipped      int
	NodesCreated int
	EdgesCreated int
	RolledBack   int
	GroupFailed  bool
	Duration     time.Duration
}

// MetricsRecorder receives per-run counters
type MetricsRecorder interface {
	RecordSuggestionRun(ctx context.Context, run RunMetrics)
}
