package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reqgraph/application/ports"
	"reqgraph/domain/categories"
	"reqgraph/domain/core/entities"
	domainservices "reqgraph/domain/services"
	pkgerrors "reqgraph/pkg/errors"

	"go.uber.org/zap"
)

// Resolution is the node a suggestion item targets
type Resolution struct {
	Node    *entities.Node
	Created bool
	// Anchor is set when the resolver had to load the project root
	Anchor *entities.Node
}

// NodeResolver finds or creates the node a suggestion item belongs to
type NodeResolver struct {
	store  ports.GraphStore
	layout *domainservices.LayoutEngine
	logger *zap.Logger
}

// NewNodeResolver creates a new node resolver
func NewNodeResolver(store ports.GraphStore, layout *domainservices.LayoutEngine, logger *zap.Logger) *NodeResolver {
	return &NodeResolver{
		store:  store,
		layout: layout,
		logger: logger,
	}
}

// ResolveTargetNode returns the existing node for (category[, title]) or
// creates it under the project root.
//
// Singleton categories match on category alone and new nodes get the
// category's default title. Multi-instance categories match on the exact
// title.
func (r *NodeResolver) ResolveTargetNode(ctx context.Context, projectID string, category categories.Category, title string) (Resolution, error) {
	desc, err := categories.Classify(category)
	if err != nil {
		return Resolution{}, err
	}

	title = strings.TrimSpace(title)
	existing, err := r.lookup(ctx, projectID, desc, title)
	if err != nil {
		return Resolution{}, err
	}
	if existing != nil {
		r.logger.Debug("Resolved existing node",
			zap.String("projectID", projectID),
			zap.String("category", string(category)),
			zap.String("nodeID", existing.ID().String()),
		)
		return Resolution{Node: existing}, nil
	}

	anchor, err := r.store.GetAnchorNode(ctx, projectID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNodeNotFound) {
			return Resolution{}, &pkgerrors.RootNodeMissingError{ProjectID: projectID}
		}
		return Resolution{}, fmt.Errorf("load root node: %w", err)
	}

	nodeTitle := title
	if desc.IsSingleton() {
		nodeTitle = desc.DefaultTitle
	}

	childCount, err := r.store.CountChildren(ctx, projectID, anchor.ID())
	if err != nil {
		r.logger.Warn("Failed to count root children, placing as first child",
			zap.String("projectID", projectID),
			zap.Error(err),
		)
		childCount = 0
	}
	position := r.layout.RadialPosition(anchor.Position(), childCount)

	metadata := desc.NewMetadata()
	if doc, ok := metadata.(categories.NamedDocument); ok {
		doc.Merge(nodeTitle, "", nil)
	}

	node, err := entities.NewNode(projectID, category, anchor.ID(), nodeTitle, position, metadata)
	if err != nil {
		return Resolution{}, &pkgerrors.NodeCreationError{
			ProjectID: projectID,
			Category:  string(category),
			Title:     nodeTitle,
			Cause:     err,
		}
	}

	if err := r.store.CreateNode(ctx, node); err != nil {
		if errors.Is(err, pkgerrors.ErrNodeConflict) {
			// another writer created it between our lookup and create
			winner, lookupErr := r.lookup(ctx, projectID, desc, title)
			if lookupErr == nil && winner != nil {
				r.logger.Info("Node created concurrently, using existing",
					zap.String("projectID", projectID),
					zap.String("category", string(category)),
					zap.String("nodeID", winner.ID().String()),
				)
				return Resolution{Node: winner, Anchor: anchor}, nil
			}
		}
		return Resolution{}, &pkgerrors.NodeCreationError{
			ProjectID: projectID,
			Category:  string(category),
			Title:     nodeTitle,
			Cause:     err,
		}
	}

	r.logger.Info("Created node for suggestion",
		zap.String("projectID", projectID),
		zap.String("category", string(category)),
		zap.String("nodeID", node.ID().String()),
		zap.String("title", nodeTitle),
		zap.Float64("x", position.X),
		zap.Float64("y", position.Y),
	)

	return Resolution{Node: node, Created: true, Anchor: anchor}, nil
}

func (r *NodeResolver) lookup(ctx context.Context, projectID string, desc categories.Descriptor, title string) (*entities.Node, error) {
	var (
		node *entities.Node
		err  error
	)
	if desc.IsSingleton() {
		node, err = r.store.FindNodeByCategory(ctx, projectID, desc.Category)
	} else {
		node, err = r.store.FindNodeByCategoryAndTitle(ctx, projectID, desc.Category, title)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s node: %w", desc.Category, err)
	}
	return node, nil
}
